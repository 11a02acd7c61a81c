package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dates(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "202401" + string(rune('0'+(i+1)/10)) + string(rune('0'+(i+1)%10))
	}
	return out
}

func TestNewFrame_RejectsUnsortedAndRagged(t *testing.T) {
	_, err := NewFrame([]string{"20240102", "20240101"}, nil)
	assert.Error(t, err)

	_, err = NewFrame([]string{"20240101", "20240102"}, map[string][]float64{
		"AAA": {1.0},
	})
	assert.Error(t, err)
}

func TestFrame_AtUnknownIsNaN(t *testing.T) {
	f, err := NewFrame([]string{"20240101"}, map[string][]float64{"AAA": {10}})
	require.NoError(t, err)

	assert.Equal(t, 10.0, f.At("20240101", "AAA"))
	assert.True(t, math.IsNaN(f.At("20240101", "BBB")))
	assert.True(t, math.IsNaN(f.At("20240102", "AAA")))
}

func TestFrame_ShiftLagsByN(t *testing.T) {
	ds := dates(4)
	f, err := NewFrame(ds, map[string][]float64{"AAA": {1, 2, 3, 4}})
	require.NoError(t, err)

	lagged := f.Shift(1)
	assert.True(t, math.IsNaN(lagged.At(ds[0], "AAA")))
	assert.Equal(t, 1.0, lagged.At(ds[1], "AAA"))
	assert.Equal(t, 3.0, lagged.At(ds[3], "AAA"))
	// Source frame untouched.
	assert.Equal(t, 1.0, f.At(ds[0], "AAA"))
}

func TestFrame_RollingMeanStrictWindow(t *testing.T) {
	ds := dates(5)
	f, err := NewFrame(ds, map[string][]float64{"AAA": {2, 4, 6, 8, 10}})
	require.NoError(t, err)

	m := f.RollingMean(3)
	assert.True(t, math.IsNaN(m.At(ds[0], "AAA")))
	assert.True(t, math.IsNaN(m.At(ds[1], "AAA")))
	assert.InDelta(t, 4.0, m.At(ds[2], "AAA"), 1e-12)
	assert.InDelta(t, 8.0, m.At(ds[4], "AAA"), 1e-12)
}

func TestFrame_RollingMeanNaNPropagates(t *testing.T) {
	ds := dates(4)
	f, err := NewFrame(ds, map[string][]float64{"AAA": {2, math.NaN(), 6, 8}})
	require.NoError(t, err)

	m := f.RollingMean(2)
	assert.True(t, math.IsNaN(m.At(ds[1], "AAA")))
	assert.True(t, math.IsNaN(m.At(ds[2], "AAA")))
	assert.InDelta(t, 7.0, m.At(ds[3], "AAA"), 1e-12)
}

func TestFrame_RollingMaxAndSum(t *testing.T) {
	ds := dates(4)
	f, err := NewFrame(ds, map[string][]float64{"AAA": {3, 1, 5, 2}})
	require.NoError(t, err)

	assert.Equal(t, 5.0, f.RollingMax(3).At(ds[3], "AAA"))
	assert.Equal(t, 8.0, f.RollingSum(3).At(ds[3], "AAA"))
}

func TestFrame_PctChangeIsPercent(t *testing.T) {
	ds := dates(4)
	f, err := NewFrame(ds, map[string][]float64{"AAA": {100, 110, 121, 133.1}})
	require.NoError(t, err)

	pc := f.PctChange(3)
	assert.True(t, math.IsNaN(pc.At(ds[2], "AAA")))
	assert.InDelta(t, 33.1, pc.At(ds[3], "AAA"), 1e-9)
}

func TestFrame_AppendDates(t *testing.T) {
	ds := dates(2)
	f, err := NewFrame(ds, map[string][]float64{"AAA": {1, 2}})
	require.NoError(t, err)

	ext := f.AppendDates(ds[1], "20240115") // existing date skipped
	assert.Equal(t, 3, ext.NumDates())
	assert.True(t, math.IsNaN(ext.At("20240115", "AAA")))
	assert.Equal(t, 2.0, ext.At(ds[1], "AAA"))

	// No-op append returns the same axis length.
	assert.Equal(t, 2, f.AppendDates(ds[0]).NumDates())
}

func TestBool_UnknownIsFalse(t *testing.T) {
	b := NewBool([]string{"20240101", "20240102"})
	b.Set("20240101", "AAA", true)

	assert.True(t, b.At("20240101", "AAA"))
	assert.False(t, b.At("20240102", "AAA"))
	assert.False(t, b.At("20240101", "BBB"))
	assert.False(t, b.At("20240103", "AAA"))
}

func TestBool_Shift(t *testing.T) {
	b := NewBool([]string{"20240101", "20240102"})
	b.SetColumn("AAA", []bool{true, false})

	s := b.Shift(1)
	assert.False(t, s.At("20240101", "AAA"))
	assert.True(t, s.At("20240102", "AAA"))
}
