package factors

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/calendar"
)

// MinuteBar is the per-minute observation the engine consumes.
type MinuteBar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

// accumulator carries the monotone intraday totals for one symbol. It is
// reset once per trading day and only ever incremented.
type accumulator struct {
	volume float64
	amount float64
}

// Engine owns the intraday state: cumulative volume/amount per symbol, the
// latest composite score, and the latest volume-surge gate outcome. It is
// single-owner, single-threaded by design; the bar callback drives it.
type Engine struct {
	cfg   Config
	daily *DailyFactors
	log   zerolog.Logger

	day    string
	acc    map[string]*accumulator
	scores map[string]Score
	cond2  map[string]bool
}

// NewEngine wires an engine to a prepared daily factor table.
func NewEngine(daily *DailyFactors, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		daily:  daily,
		log:    log.With().Str("component", "factors").Logger(),
		acc:    map[string]*accumulator{},
		scores: map[string]Score{},
		cond2:  map[string]bool{},
	}
}

// Daily exposes the lagged factor table.
func (e *Engine) Daily() *DailyFactors { return e.daily }

// Day returns the trading date the intraday state belongs to.
func (e *Engine) Day() string { return e.day }

// ResetDay zeroes the intraday state for a new trading date. It must run
// exactly once at the first tick of each date, before any UpdateMinute.
func (e *Engine) ResetDay(date string, symbols []string) {
	e.day = date
	e.acc = make(map[string]*accumulator, len(symbols))
	for _, sym := range symbols {
		e.acc[sym] = &accumulator{}
	}
	e.scores = make(map[string]Score, len(symbols))
	e.cond2 = make(map[string]bool, len(symbols))
	e.log.Debug().Str("date", date).Int("symbols", len(symbols)).Msg("intraday state reset")
}

// UpdateMinute folds one minute of bars into the intraday state: cumulative
// totals, the volume-surge gate, and the composite score. Ticks outside the
// trading session are skipped whole; symbols with a missing or zero volume
// baseline are skipped individually and never abort the loop.
func (e *Engine) UpdateMinute(date, timestamp string, bars map[string]MinuteBar) {
	minutes := calendar.MinutesSinceOpen(timestamp)
	if minutes <= 0 {
		return // lunch gap or pre/post-market bar
	}
	if !e.daily.Calendar.Contains(date) {
		e.log.Debug().Str("date", date).Msg("date off factor table, minute update skipped")
		return
	}

	for sym, bar := range bars {
		acc, tracked := e.acc[sym]
		if !tracked {
			continue
		}
		if math.IsNaN(bar.Close) || bar.Close <= 0 {
			continue
		}

		acc.volume += bar.Volume
		acc.amount += bar.Amount

		baseline := e.daily.AvgVolPerMinShort.At(date, sym)
		if math.IsNaN(baseline) || baseline <= 0 {
			// Insufficient history for this symbol; intentional no-op.
			continue
		}

		ratio := (acc.volume / float64(minutes)) / baseline
		e.cond2[sym] = e.volumeSurge(ratio, acc.amount, minutes)
		e.scores[sym] = e.scoreSymbol(date, sym, bar.Close, acc.volume)
	}
}

// volumeSurge evaluates buy condition 2 with the early/late window split.
func (e *Engine) volumeSurge(ratio, cumAmount float64, minutes int) bool {
	if minutes <= e.cfg.EarlyMinutes {
		return ratio > e.cfg.EarlyVolumeRatio && cumAmount > e.cfg.EarlyAmount
	}
	return ratio > e.cfg.LateVolumeRatio && cumAmount > e.cfg.LateAmount
}

// scoreSymbol computes the composite score for one symbol from the day's
// lagged factors and the intraday cumulative volume. NaN factor values fail
// their comparisons and contribute nothing; they are deliberately not
// filtered out beforehand.
func (e *Engine) scoreSymbol(date, sym string, price, cumVolume float64) Score {
	ma := make(map[int]float64, len(maPeriods))
	for _, p := range maPeriods {
		ma[p] = e.daily.MA[p].At(date, sym)
	}
	high := make(map[int]float64, len(highPeriods))
	for _, p := range highPeriods {
		high[p] = e.daily.RollingHigh[p].At(date, sym)
	}
	avgDailyVol := e.daily.AvgVolPerMinLong.At(date, sym) * calendar.SessionMinutes
	return ComputeScore(price, cumVolume, ma, high, avgDailyVol)
}

// Scores returns the latest composite score per symbol.
func (e *Engine) Scores() map[string]Score { return e.scores }

// VolumeSurge returns the latest buy-condition-2 outcome per symbol.
func (e *Engine) VolumeSurge() map[string]bool { return e.cond2 }

// Cumulative returns the intraday volume/amount totals for one symbol.
func (e *Engine) Cumulative(sym string) (volume, amount float64, ok bool) {
	acc, found := e.acc[sym]
	if !found {
		return 0, 0, false
	}
	return acc.volume, acc.amount, true
}
