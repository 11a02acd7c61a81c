package factors

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/uptrend/internal/calendar"
	"github.com/quantmill/uptrend/internal/series"
)

const (
	testDate = "20240110"
	testSym  = "600000.SH"
)

// testDailyFactors builds a one-date factor table with hand-set values:
// descending MAs under a price of 10, highs below 10, 1000 vol/min short
// baseline and 500 vol/min long baseline (120k average daily volume).
func testDailyFactors(t *testing.T) *DailyFactors {
	t.Helper()
	dates := []string{testDate}
	cal, err := calendar.New(dates)
	require.NoError(t, err)

	frame := func(v float64) *series.Frame {
		f, err := series.NewFrame(dates, map[string][]float64{testSym: {v}})
		require.NoError(t, err)
		return f
	}

	df := &DailyFactors{
		Calendar:    cal,
		MA:          map[int]*series.Frame{5: frame(9), 10: frame(8), 20: frame(7), 30: frame(6), 60: frame(5), 120: frame(4)},
		RollingHigh: map[int]*series.Frame{20: frame(9.5), 40: frame(9), 60: frame(8.5), 80: frame(8), 100: frame(7.5)},
		Cond1:       series.NewBool(dates),

		AvgVolPerMinShort: frame(1000),
		AvgVolPerMinLong:  frame(500),
	}
	df.Cond1.Set(testDate, testSym, true)
	return df
}

func newTestEngine(t *testing.T) *Engine {
	e := NewEngine(testDailyFactors(t), DefaultConfig(), zerolog.Nop())
	e.ResetDay(testDate, []string{testSym})
	return e
}

func TestEngine_AccumulatesAcrossTicks(t *testing.T) {
	e := newTestEngine(t)

	e.UpdateMinute(testDate, testDate+"093500", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 50_000, Amount: 20_000_000},
	})
	vol, amt, ok := e.Cumulative(testSym)
	require.True(t, ok)
	assert.Equal(t, 50_000.0, vol)
	assert.Equal(t, 20_000_000.0, amt)

	e.UpdateMinute(testDate, testDate+"093900", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 70_000, Amount: 20_000_000},
	})
	vol, amt, _ = e.Cumulative(testSym)
	assert.Equal(t, 120_000.0, vol)
	assert.Equal(t, 40_000_000.0, amt)
}

func TestEngine_EarlyWindowSurge(t *testing.T) {
	e := newTestEngine(t)

	// Minute 5: ratio (50k/5)/1000 = 10 > 8 but amount below the 30M floor.
	e.UpdateMinute(testDate, testDate+"093500", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 50_000, Amount: 20_000_000},
	})
	assert.False(t, e.VolumeSurge()[testSym])

	// Minute 10: ratio (120k/10)/1000 = 12 and 40M cumulative amount.
	e.UpdateMinute(testDate, testDate+"093900", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 70_000, Amount: 20_000_000},
	})
	assert.True(t, e.VolumeSurge()[testSym])
}

func TestEngine_LateWindowThresholds(t *testing.T) {
	e := newTestEngine(t)

	// Minute 35 (10:04): late window. Ratio (140k/35)/1000 = 4 > 3 but the
	// amount floor rises to 50M.
	e.UpdateMinute(testDate, testDate+"100400", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 140_000, Amount: 45_000_000},
	})
	assert.False(t, e.VolumeSurge()[testSym])

	e.UpdateMinute(testDate, testDate+"100500", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 10_000, Amount: 10_000_000},
	})
	assert.True(t, e.VolumeSurge()[testSym])
}

func TestEngine_ScoresFromLaggedFactors(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateMinute(testDate, testDate+"093900", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 120_000, Amount: 40_000_000},
	})

	s, ok := e.Scores()[testSym]
	require.True(t, ok)
	// MAs and highs all below price, arrangement fully descending, and the
	// cumulative volume matches the average daily volume exactly (no
	// expansion multiple reached).
	assert.Equal(t, 15, s.Total)
	assert.Equal(t, 0, s.Detail.VolumeExpansion)
}

func TestEngine_SkipsOutOfSessionTicks(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateMinute(testDate, testDate+"120000", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 99_999, Amount: 1},
	})
	vol, _, _ := e.Cumulative(testSym)
	assert.Equal(t, 0.0, vol)
	assert.Empty(t, e.Scores())
}

func TestEngine_SkipsUntrackedAndBadBars(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateMinute(testDate, testDate+"093500", map[string]MinuteBar{
		"999999.SZ": {Close: 10, Volume: 1000, Amount: 1000},
		testSym:     {Close: math.NaN(), Volume: 1000, Amount: 1000},
	})
	vol, _, _ := e.Cumulative(testSym)
	assert.Equal(t, 0.0, vol)
	_, _, tracked := e.Cumulative("999999.SZ")
	assert.False(t, tracked)
}

func TestEngine_MissingBaselineAccumulatesButNeverSignals(t *testing.T) {
	df := testDailyFactors(t)
	empty, err := series.NewFrame([]string{testDate}, map[string][]float64{testSym: {math.NaN()}})
	require.NoError(t, err)
	df.AvgVolPerMinShort = empty

	e := NewEngine(df, DefaultConfig(), zerolog.Nop())
	e.ResetDay(testDate, []string{testSym})
	e.UpdateMinute(testDate, testDate+"093500", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 50_000, Amount: 20_000_000},
	})

	vol, _, _ := e.Cumulative(testSym)
	assert.Equal(t, 50_000.0, vol)
	assert.Empty(t, e.VolumeSurge())
	assert.Empty(t, e.Scores())
}

func TestEngine_ResetDayClearsState(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateMinute(testDate, testDate+"093500", map[string]MinuteBar{
		testSym: {Close: 10, Volume: 50_000, Amount: 20_000_000},
	})
	e.ResetDay(testDate, []string{testSym})

	vol, _, _ := e.Cumulative(testSym)
	assert.Equal(t, 0.0, vol)
	assert.Empty(t, e.Scores())
	assert.Equal(t, testDate, e.Day())
}
