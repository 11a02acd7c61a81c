package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsUnsorted(t *testing.T) {
	_, err := New([]string{"20240105", "20240104"})
	assert.Error(t, err)
}

func TestTradingDaysBetween(t *testing.T) {
	cal, err := New([]string{"20240102", "20240103", "20240104", "20240108", "20240109"})
	require.NoError(t, err)

	assert.Equal(t, 0, cal.TradingDaysBetween("20240102", "20240102"))
	assert.Equal(t, 2, cal.TradingDaysBetween("20240102", "20240104"))
	// Weekend gap counts as one trading day, not four calendar days.
	assert.Equal(t, 1, cal.TradingDaysBetween("20240104", "20240108"))
	// Off-calendar endpoints snap to position, keeping the count usable.
	assert.Equal(t, 3, cal.TradingDaysBetween("20240102", "20240107"))
}

func TestNext(t *testing.T) {
	cal, err := New([]string{"20240102", "20240103", "20240108"})
	require.NoError(t, err)

	assert.Equal(t, "20240103", cal.Next("20240102"))
	assert.Equal(t, "20240108", cal.Next("20240103"))
	assert.Equal(t, "", cal.Next("20240108"))
}

func TestMinutesSinceOpen_SessionClock(t *testing.T) {
	cases := []struct {
		ts   string
		want int
	}{
		{"20240102093000", 1},    // open
		{"20240102095900", 30},   // end of early window
		{"20240102100000", 31},   // first minute of the 10 o'clock hour
		{"20240102103500", 66},
		{"20240102113000", 121},  // morning close
		{"20240102130000", 121},  // afternoon open collapses the lunch gap
		{"20240102134500", 166},
		{"20240102140000", 181},
		{"20240102145900", 240},
		{"20240102150000", 241},  // closing auction print
		{"20240102092900", 0},    // pre-open
		{"20240102120000", 0},    // lunch
		{"20240102150100", 0},    // post-close
		{"20240102113100", 0},    // between morning close and lunch
		{"bogus", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MinutesSinceOpen(c.ts), "timestamp %s", c.ts)
	}
}

func TestTimeOfDayMinutesAndParseClock(t *testing.T) {
	assert.Equal(t, 600, TimeOfDayMinutes("20240102100000"))
	assert.Equal(t, -1, TimeOfDayMinutes("short"))

	assert.Equal(t, 600, ParseClock("10:00"))
	assert.Equal(t, 569, ParseClock("09:29"))
	assert.Equal(t, -1, ParseClock("10-00"))
	assert.Equal(t, -1, ParseClock("25:00"))
}

func TestDatePart(t *testing.T) {
	assert.Equal(t, "20240102", DatePart("20240102093000"))
	assert.Equal(t, "", DatePart("2024"))
}
