// Package series provides date-indexed, per-symbol value tables for factor
// computation. A Frame is the typed replacement for the loosely shaped
// tabular data the strategy consumes: one ascending trading-date axis shared
// by every symbol column, with NaN marking missing observations.
package series

import (
	"fmt"
	"math"
	"sort"
)

// Frame holds one float64 value per (trading date, symbol). Dates are
// YYYYMMDD strings in ascending order. Missing values are NaN.
type Frame struct {
	dates   []string
	dateIdx map[string]int
	cols    map[string][]float64
}

// NewFrame builds a frame from a shared date axis and per-symbol columns.
// Every column must match the date axis length.
func NewFrame(dates []string, cols map[string][]float64) (*Frame, error) {
	if !sort.StringsAreSorted(dates) {
		return nil, fmt.Errorf("series: dates not ascending")
	}
	idx := make(map[string]int, len(dates))
	for i, d := range dates {
		if _, dup := idx[d]; dup {
			return nil, fmt.Errorf("series: duplicate date %s", d)
		}
		idx[d] = i
	}
	for sym, vals := range cols {
		if len(vals) != len(dates) {
			return nil, fmt.Errorf("series: column %s has %d values for %d dates", sym, len(vals), len(dates))
		}
	}
	return &Frame{dates: dates, dateIdx: idx, cols: cols}, nil
}

// AppendDates returns a copy whose date axis is extended with the given
// trailing dates, filled with NaN. Dates already on the axis or not after
// its last entry are skipped. A lagged factor table built on the extended
// axis carries completed-day values onto a session date that has no bar yet.
func (f *Frame) AppendDates(dates ...string) *Frame {
	extra := make([]string, 0, len(dates))
	last := ""
	if len(f.dates) > 0 {
		last = f.dates[len(f.dates)-1]
	}
	for _, d := range dates {
		if d > last {
			extra = append(extra, d)
			last = d
		}
	}
	if len(extra) == 0 {
		return f
	}
	axis := append(append([]string(nil), f.dates...), extra...)
	cols := make(map[string][]float64, len(f.cols))
	for sym, vals := range f.cols {
		col := make([]float64, len(axis))
		copy(col, vals)
		for i := len(vals); i < len(col); i++ {
			col[i] = math.NaN()
		}
		cols[sym] = col
	}
	out, _ := NewFrame(axis, cols)
	return out
}

// Empty returns a frame with the given date axis and no columns.
func Empty(dates []string) *Frame {
	f, _ := NewFrame(dates, map[string][]float64{})
	return f
}

// Dates returns the trading-date axis.
func (f *Frame) Dates() []string { return f.dates }

// Symbols returns the column keys in unspecified order.
func (f *Frame) Symbols() []string {
	out := make([]string, 0, len(f.cols))
	for s := range f.cols {
		out = append(out, s)
	}
	return out
}

// NumDates returns the length of the date axis.
func (f *Frame) NumDates() int { return len(f.dates) }

// HasDate reports whether the date is on the axis.
func (f *Frame) HasDate(date string) bool {
	_, ok := f.dateIdx[date]
	return ok
}

// At returns the value for (date, symbol), NaN if either is unknown.
func (f *Frame) At(date, symbol string) float64 {
	i, ok := f.dateIdx[date]
	if !ok {
		return math.NaN()
	}
	col, ok := f.cols[symbol]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Column returns the raw column for a symbol, nil if absent.
func (f *Frame) Column(symbol string) []float64 { return f.cols[symbol] }

// SetColumn installs or replaces a column. The slice length must match the
// date axis; mismatches are a programming error and panic.
func (f *Frame) SetColumn(symbol string, vals []float64) {
	if len(vals) != len(f.dates) {
		panic(fmt.Sprintf("series: column %s length %d != %d dates", symbol, len(vals), len(f.dates)))
	}
	f.cols[symbol] = vals
}

// Shift returns a copy lagged by n bars: the value at date t becomes the
// value observed at t-n. The first n rows of every column are NaN. This is
// the mechanism behind the one-bar look-ahead guard.
func (f *Frame) Shift(n int) *Frame {
	out := Empty(f.dates)
	for sym, col := range f.cols {
		shifted := make([]float64, len(col))
		for i := range shifted {
			if i < n {
				shifted[i] = math.NaN()
			} else {
				shifted[i] = col[i-n]
			}
		}
		out.cols[sym] = shifted
	}
	return out
}

// apply runs a windowed reduction over every column. Rows with fewer than
// window preceding observations (including the row itself) yield NaN, which
// mirrors a strict min-periods rolling computation.
func (f *Frame) apply(window int, reduce func(win []float64) float64) *Frame {
	out := Empty(f.dates)
	for sym, col := range f.cols {
		vals := make([]float64, len(col))
		for i := range col {
			if i+1 < window {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = reduce(col[i+1-window : i+1])
		}
		out.cols[sym] = vals
	}
	return out
}

// RollingMean computes the strict trailing mean over window bars.
func (f *Frame) RollingMean(window int) *Frame {
	return f.apply(window, func(win []float64) float64 {
		sum := 0.0
		for _, v := range win {
			sum += v // NaN propagates, matching strict min-periods
		}
		return sum / float64(window)
	})
}

// RollingMax computes the strict trailing maximum over window bars.
func (f *Frame) RollingMax(window int) *Frame {
	return f.apply(window, func(win []float64) float64 {
		max := math.Inf(-1)
		for _, v := range win {
			if math.IsNaN(v) {
				return math.NaN()
			}
			if v > max {
				max = v
			}
		}
		return max
	})
}

// RollingSum computes the strict trailing sum over window bars.
func (f *Frame) RollingSum(window int) *Frame {
	return f.apply(window, func(win []float64) float64 {
		sum := 0.0
		for _, v := range win {
			sum += v
		}
		return sum
	})
}

// PctChange returns the percentage change versus n bars earlier, in percent.
func (f *Frame) PctChange(n int) *Frame {
	out := Empty(f.dates)
	for sym, col := range f.cols {
		vals := make([]float64, len(col))
		for i := range col {
			if i < n || col[i-n] == 0 {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = (col[i]/col[i-n] - 1) * 100
		}
		out.cols[sym] = vals
	}
	return out
}

// Scale returns a copy with every value multiplied by k.
func (f *Frame) Scale(k float64) *Frame {
	out := Empty(f.dates)
	for sym, col := range f.cols {
		vals := make([]float64, len(col))
		for i, v := range col {
			vals[i] = v * k
		}
		out.cols[sym] = vals
	}
	return out
}
