package factors

import "math"

// ScoreDetail is the per-component breakdown of the composite score. Each
// component contributes at most five points.
type ScoreDetail struct {
	PriceAboveMA    int `json:"price_above_ma"`
	NewHigh         int `json:"new_high"`
	Arrangement     int `json:"arrangement"`
	VolumeExpansion int `json:"volume_expansion"`
}

// Score is the 0-20 composite uptrend score with its breakdown.
type Score struct {
	Total  int         `json:"total"`
	Detail ScoreDetail `json:"detail"`
}

// ComputeScore scores one symbol from its lagged daily factors and the
// intraday cumulative volume. Comparisons against NaN evaluate false, so a
// missing factor silently forfeits its point rather than erroring.
func ComputeScore(price, cumVolume float64, ma, high map[int]float64, avgDailyVolume float64) Score {
	var d ScoreDetail
	for _, p := range scoreMAPeriods {
		if price > at(ma, p) {
			d.PriceAboveMA++
		}
	}
	for _, p := range highPeriods {
		if price > at(high, p) {
			d.NewHigh++
		}
	}
	for _, pair := range arrangementPairs {
		if at(ma, pair[0]) > at(ma, pair[1]) {
			d.Arrangement++
		}
	}
	for _, mult := range volumeMultiples {
		if cumVolume > avgDailyVolume*mult {
			d.VolumeExpansion++
		}
	}
	return Score{
		Total:  d.PriceAboveMA + d.NewHigh + d.Arrangement + d.VolumeExpansion,
		Detail: d,
	}
}

// at reads a factor value, mapping an absent period to NaN so the
// comparison above fails instead of matching against zero.
func at(m map[int]float64, p int) float64 {
	v, ok := m[p]
	if !ok {
		return math.NaN()
	}
	return v
}
