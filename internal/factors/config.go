package factors

import "fmt"

// Score component definitions. The composite uptrend score is the sum of
// four 5-point sub-scores; each slice below contributes one point per
// satisfied entry.
var (
	// maPeriods are the moving averages prepared daily. The first five
	// feed the price-above-MA sub-score; the 120 is used only in the
	// arrangement pairs.
	maPeriods = []int{5, 10, 20, 30, 60, 120}

	// scoreMAPeriods feed the price-above-MA sub-score.
	scoreMAPeriods = []int{5, 10, 20, 30, 60}

	// highPeriods feed the new-high-breakout sub-score.
	highPeriods = []int{20, 40, 60, 80, 100}

	// arrangementPairs feed the MA-arrangement sub-score: one point when
	// the shorter average sits above the longer one.
	arrangementPairs = [][2]int{{5, 10}, {10, 20}, {20, 30}, {30, 60}, {60, 120}}

	// volumeMultiples feed the volume-expansion sub-score: one point when
	// cumulative volume exceeds the 10-day average daily volume by the
	// multiple.
	volumeMultiples = []float64{3, 4, 5, 6, 7}
)

// maxLookback is the longest factor window; callers must supply at least
// this many daily bars of warm-up history.
const maxLookback = 120

// Config holds the tunable buy-condition thresholds. The score component
// definitions above are part of the score's identity and are not
// configurable.
type Config struct {
	// Buy condition 1: consecutive-up-days OR short-window return.
	ConsecutiveUpDays int     `yaml:"consecutive_up_days"`
	ReturnDays        int     `yaml:"return_days"`
	ReturnPct         float64 `yaml:"return_pct"` // percent, e.g. 6.0

	// Buy condition 2: intraday volume-surge gate. The early window is
	// stricter on volume ratio and looser on cumulative amount.
	EarlyMinutes     int     `yaml:"early_minutes"`
	EarlyVolumeRatio float64 `yaml:"early_volume_ratio"`
	EarlyAmount      float64 `yaml:"early_amount"`
	LateVolumeRatio  float64 `yaml:"late_volume_ratio"`
	LateAmount       float64 `yaml:"late_amount"`

	// Volume-per-minute baseline windows, in trading days.
	BaselineWindowShort int `yaml:"baseline_window_short"`
	BaselineWindowLong  int `yaml:"baseline_window_long"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		ConsecutiveUpDays:   5,
		ReturnDays:          3,
		ReturnPct:           6.0,
		EarlyMinutes:        30,
		EarlyVolumeRatio:    8,
		EarlyAmount:         30_000_000,
		LateVolumeRatio:     3,
		LateAmount:          50_000_000,
		BaselineWindowShort: 5,
		BaselineWindowLong:  10,
	}
}

// Validate rejects malformed thresholds before any trading begins.
func (c Config) Validate() error {
	if c.ConsecutiveUpDays <= 0 || c.ReturnDays <= 0 {
		return fmt.Errorf("factors: buy condition 1 windows must be positive")
	}
	if c.EarlyMinutes <= 0 {
		return fmt.Errorf("factors: early window boundary must be positive")
	}
	if c.EarlyVolumeRatio <= 0 || c.LateVolumeRatio <= 0 {
		return fmt.Errorf("factors: volume ratio thresholds must be positive")
	}
	if c.EarlyAmount <= 0 || c.LateAmount <= 0 {
		return fmt.Errorf("factors: amount thresholds must be positive")
	}
	if c.BaselineWindowShort <= 0 || c.BaselineWindowLong <= 0 {
		return fmt.Errorf("factors: baseline windows must be positive")
	}
	return nil
}
