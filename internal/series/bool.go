package series

// Bool holds one boolean per (trading date, symbol). Missing entries read
// as false, which keeps gate evaluation total without nil checks.
type Bool struct {
	dates   []string
	dateIdx map[string]int
	cols    map[string][]bool
}

// NewBool builds a boolean table on the given date axis.
func NewBool(dates []string) *Bool {
	idx := make(map[string]int, len(dates))
	for i, d := range dates {
		idx[d] = i
	}
	return &Bool{dates: dates, dateIdx: idx, cols: map[string][]bool{}}
}

// Dates returns the trading-date axis.
func (b *Bool) Dates() []string { return b.dates }

// At returns the flag for (date, symbol); unknown date or symbol is false.
func (b *Bool) At(date, symbol string) bool {
	i, ok := b.dateIdx[date]
	if !ok {
		return false
	}
	col, ok := b.cols[symbol]
	if !ok {
		return false
	}
	return col[i]
}

// Set assigns the flag for (date, symbol); unknown dates are ignored.
func (b *Bool) Set(date, symbol string, v bool) {
	i, ok := b.dateIdx[date]
	if !ok {
		return
	}
	col, ok := b.cols[symbol]
	if !ok {
		col = make([]bool, len(b.dates))
		b.cols[symbol] = col
	}
	col[i] = v
}

// SetColumn installs a full column for a symbol.
func (b *Bool) SetColumn(symbol string, vals []bool) {
	if len(vals) != len(b.dates) {
		panic("series: bool column length mismatch")
	}
	b.cols[symbol] = vals
}

// Shift returns a copy lagged by n bars; the first n rows become false.
func (b *Bool) Shift(n int) *Bool {
	out := NewBool(b.dates)
	for sym, col := range b.cols {
		shifted := make([]bool, len(col))
		for i := n; i < len(col); i++ {
			shifted[i] = col[i-n]
		}
		out.cols[sym] = shifted
	}
	return out
}
