// Package calendar provides the trading-day index and the intraday session
// clock. Holding periods are measured in trading days against this index;
// calendar-day subtraction over-counts weekends and holidays and is not
// offered.
package calendar

import (
	"fmt"
	"sort"
)

// Calendar is an ascending index of trading dates (YYYYMMDD).
type Calendar struct {
	dates []string
	idx   map[string]int
}

// New builds a calendar from the daily bar date axis.
func New(dates []string) (*Calendar, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("calendar: empty date axis")
	}
	if !sort.StringsAreSorted(dates) {
		return nil, fmt.Errorf("calendar: dates not ascending")
	}
	idx := make(map[string]int, len(dates))
	for i, d := range dates {
		idx[d] = i
	}
	return &Calendar{dates: dates, idx: idx}, nil
}

// Dates returns the underlying trading dates.
func (c *Calendar) Dates() []string { return c.dates }

// Contains reports whether the date is a known trading day.
func (c *Calendar) Contains(date string) bool {
	_, ok := c.idx[date]
	return ok
}

// position returns the number of trading days strictly before date for
// dates off the index, or the exact index for dates on it.
func (c *Calendar) position(date string) int {
	if i, ok := c.idx[date]; ok {
		return i
	}
	return sort.SearchStrings(c.dates, date)
}

// TradingDaysBetween counts trading days from one date to another. Both
// endpoints may fall off the index (weekend restarts, data gaps); they are
// located by insertion position in that case.
func (c *Calendar) TradingDaysBetween(from, to string) int {
	return c.position(to) - c.position(from)
}

// Next returns the trading day after date, or empty when date is the last.
func (c *Calendar) Next(date string) string {
	i := c.position(date)
	if c.Contains(date) {
		i++
	}
	if i >= len(c.dates) {
		return ""
	}
	return c.dates[i]
}
