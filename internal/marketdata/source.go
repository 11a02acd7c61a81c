// Package marketdata loads the bars the strategy consumes: forward-adjusted
// daily history for the factor warmup and minute bars for the live or
// replayed session. Dates are YYYYMMDD strings throughout; prices are
// forward-ratio adjusted so factor windows never straddle a corporate
// action discontinuity.
package marketdata

import (
	"context"
	"fmt"
	"math"

	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/series"
)

// DailySet is aligned per-field history for a universe: one column per
// symbol, one row per trading date, NaN where a symbol did not trade.
type DailySet struct {
	Dates  []string
	Open   *series.Frame
	High   *series.Frame
	Low    *series.Frame
	Close  *series.Frame
	Volume *series.Frame
}

// MinuteTick is one minute of the session across the universe.
type MinuteTick struct {
	Timestamp string // YYYYMMDDHHMMSS
	Bars      map[string]factors.MinuteBar
}

// Source supplies history and session data. Implementations return what
// they have; a missing symbol shows up as NaN columns, not an error.
type Source interface {
	// DailyBars loads [from, to] inclusive for the symbols.
	DailyBars(ctx context.Context, symbols []string, from, to string) (*DailySet, error)
	// MinuteBars streams one date's session in timestamp order.
	MinuteBars(ctx context.Context, date string, symbols []string) ([]MinuteTick, error)
	// TradingDates lists the trading calendar inside [from, to].
	TradingDates(ctx context.Context, from, to string) ([]string, error)
}

// dailyBuilder accumulates scattered per-symbol rows into aligned frames.
type dailyBuilder struct {
	dates   []string
	dateIdx map[string]int
	cols    map[string]map[string][]float64 // field -> symbol -> values
}

func newDailyBuilder(dates []string, symbols []string) *dailyBuilder {
	b := &dailyBuilder{
		dates:   dates,
		dateIdx: make(map[string]int, len(dates)),
		cols:    make(map[string]map[string][]float64, 5),
	}
	for i, d := range dates {
		b.dateIdx[d] = i
	}
	for _, field := range []string{"open", "high", "low", "close", "volume"} {
		m := make(map[string][]float64, len(symbols))
		for _, sym := range symbols {
			col := make([]float64, len(dates))
			for i := range col {
				col[i] = math.NaN()
			}
			m[sym] = col
		}
		b.cols[field] = m
	}
	return b
}

func (b *dailyBuilder) set(field, date, symbol string, v float64) {
	i, ok := b.dateIdx[date]
	if !ok {
		return
	}
	if col, ok := b.cols[field][symbol]; ok {
		col[i] = v
	}
}

func (b *dailyBuilder) build() (*DailySet, error) {
	frames := make(map[string]*series.Frame, 5)
	for field, cols := range b.cols {
		f, err := series.NewFrame(b.dates, cols)
		if err != nil {
			return nil, fmt.Errorf("marketdata: build %s frame: %w", field, err)
		}
		frames[field] = f
	}
	return &DailySet{
		Dates:  b.dates,
		Open:   frames["open"],
		High:   frames["high"],
		Low:    frames["low"],
		Close:  frames["close"],
		Volume: frames["volume"],
	}, nil
}
