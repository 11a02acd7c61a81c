// Package factors converts raw OHLCV series into the daily factor table and
// the per-minute composite uptrend score. Every daily factor is lagged one
// bar: day t's factors never see day t's own close. That lag is a hard
// invariant of the pipeline, not an optimization.
package factors

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantmill/uptrend/internal/calendar"
	"github.com/quantmill/uptrend/internal/series"
)

// ErrInsufficientHistory is returned when the daily series is shorter than
// the longest factor lookback. The caller must supply more warm-up history;
// a year of calendar days ahead of the first simulated day is the working
// recommendation.
var ErrInsufficientHistory = errors.New("insufficient daily history")

// DailyFactors is the per-day factor table computed once at day start.
// All frames are one-bar lagged.
type DailyFactors struct {
	Calendar *calendar.Calendar

	MA          map[int]*series.Frame // close moving averages, by period
	RollingHigh map[int]*series.Frame // trailing high-price maxima, by period
	Cond1       *series.Bool          // price-action gate

	// Average volume per traded minute over the short (5d) and long (10d)
	// baseline windows. The short baseline feeds the intraday volume
	// ratio; the long one, scaled back to a daily volume, feeds the
	// volume-expansion sub-score.
	AvgVolPerMinShort *series.Frame
	AvgVolPerMinLong  *series.Frame
}

// PrepareDailyFactors computes the full lagged factor table from raw daily
// bars. It fails when fewer bars than the longest lookback are available.
func PrepareDailyFactors(closeF, highF, volumeF *series.Frame, cfg Config) (*DailyFactors, error) {
	if closeF.NumDates() < maxLookback {
		return nil, fmt.Errorf("%w: %d daily bars, need at least %d", ErrInsufficientHistory, closeF.NumDates(), maxLookback)
	}
	cal, err := calendar.New(closeF.Dates())
	if err != nil {
		return nil, fmt.Errorf("factors: %w", err)
	}

	df := &DailyFactors{
		Calendar:    cal,
		MA:          make(map[int]*series.Frame, len(maPeriods)),
		RollingHigh: make(map[int]*series.Frame, len(highPeriods)),
	}
	for _, p := range maPeriods {
		df.MA[p] = closeF.RollingMean(p).Shift(1)
	}
	for _, p := range highPeriods {
		df.RollingHigh[p] = highF.RollingMax(p).Shift(1)
	}
	df.Cond1 = buyCondition1(closeF, cfg).Shift(1)

	perMinute := 1.0 / calendar.SessionMinutes
	short := float64(cfg.BaselineWindowShort)
	long := float64(cfg.BaselineWindowLong)
	df.AvgVolPerMinShort = volumeF.RollingSum(cfg.BaselineWindowShort).Scale(perMinute / short).Shift(1)
	df.AvgVolPerMinLong = volumeF.RollingSum(cfg.BaselineWindowLong).Scale(perMinute / long).Shift(1)

	return df, nil
}

// buyCondition1 marks days where the close rose for N consecutive sessions
// or the trailing M-day return exceeds the threshold. NaN closes never
// satisfy either leg.
func buyCondition1(closeF *series.Frame, cfg Config) *series.Bool {
	out := series.NewBool(closeF.Dates())
	ret := closeF.PctChange(cfg.ReturnDays)
	for _, sym := range closeF.Symbols() {
		col := closeF.Column(sym)
		retCol := ret.Column(sym)
		flags := make([]bool, len(col))
		for i := range col {
			if consecutiveUp(col, i, cfg.ConsecutiveUpDays) {
				flags[i] = true
				continue
			}
			flags[i] = retCol[i] > cfg.ReturnPct // NaN compares false
		}
		out.SetColumn(sym, flags)
	}
	return out
}

// consecutiveUp reports whether the close rose on each of the last n
// sessions ending at index i.
func consecutiveUp(col []float64, i, n int) bool {
	if i-n < 0 {
		return false
	}
	for j := i - n + 1; j <= i; j++ {
		if math.IsNaN(col[j]) || math.IsNaN(col[j-1]) || col[j] <= col[j-1] {
			return false
		}
	}
	return true
}
