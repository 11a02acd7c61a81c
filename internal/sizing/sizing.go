// Package sizing maps the discrete uptrend score to a capital-allocation
// fraction and a target-profit fraction via lookup tables keyed on even
// scores. The two tables are symmetric in the reference configuration but
// configured independently.
package sizing

import (
	"fmt"
	"sort"
)

// Tables holds both score-keyed lookups plus lookup policy.
type Tables struct {
	Position map[int]float64 `yaml:"position"` // score -> fraction of total capital
	Target   map[int]float64 `yaml:"target"`   // score -> target-profit fraction

	// RoundOddDown folds odd scores onto the even key below before
	// lookup. Off, odd scores fall through to the defaults.
	RoundOddDown bool `yaml:"round_odd_down"`

	// MinScore is the smallest score that sizes at all; below it the
	// position fraction is zero.
	MinScore int `yaml:"min_score"`

	DefaultFraction float64 `yaml:"default_fraction"`
	DefaultTarget   float64 `yaml:"default_target"`
}

// DefaultTables returns the reference configuration.
func DefaultTables() Tables {
	return Tables{
		Position: map[int]float64{
			8: 0.02, 10: 0.025, 12: 0.03, 14: 0.035, 16: 0.04, 18: 0.045, 20: 0.05,
		},
		Target: map[int]float64{
			8: 0.02, 10: 0.025, 12: 0.03, 14: 0.035, 16: 0.04, 18: 0.045, 20: 0.05,
		},
		RoundOddDown:    true,
		MinScore:        8,
		DefaultFraction: 0.02,
		DefaultTarget:   0.02,
	}
}

// Validate rejects malformed tables before trading begins: empty or
// out-of-domain keys, non-positive fractions, or disjoint key domains
// between the two tables.
func (t Tables) Validate() error {
	if len(t.Position) == 0 || len(t.Target) == 0 {
		return fmt.Errorf("sizing: empty lookup table")
	}
	for name, table := range map[string]map[int]float64{"position": t.Position, "target": t.Target} {
		for score, frac := range table {
			if score%2 != 0 || score < 0 || score > 20 {
				return fmt.Errorf("sizing: %s table key %d outside even 0-20 domain", name, score)
			}
			if frac <= 0 || frac >= 1 {
				return fmt.Errorf("sizing: %s table fraction %.4f for score %d out of (0,1)", name, frac, score)
			}
		}
	}
	overlap := false
	for score := range t.Position {
		if _, ok := t.Target[score]; ok {
			overlap = true
			break
		}
	}
	if !overlap {
		return fmt.Errorf("sizing: position and target tables share no score keys")
	}
	if t.DefaultFraction <= 0 || t.DefaultTarget <= 0 {
		return fmt.Errorf("sizing: defaults must be positive")
	}
	return nil
}

// normalize maps a raw score onto the table key domain: round odd scores
// down when configured, clamp above the largest key.
func (t Tables) normalize(score int, table map[int]float64) int {
	if t.RoundOddDown && score%2 != 0 {
		score--
	}
	max := maxKey(table)
	if score > max {
		score = max
	}
	return score
}

// PositionFraction returns the capital fraction for a score; zero below
// the minimum, the default for keys missing from the table.
func (t Tables) PositionFraction(score int) float64 {
	if score < t.MinScore {
		return 0
	}
	key := t.normalize(score, t.Position)
	if frac, ok := t.Position[key]; ok {
		return frac
	}
	return t.DefaultFraction
}

// TargetProfit returns the target-profit fraction for a score; the default
// applies below the minimum or for keys missing from the table.
func (t Tables) TargetProfit(score int) float64 {
	if score < t.MinScore {
		return t.DefaultTarget
	}
	key := t.normalize(score, t.Target)
	if target, ok := t.Target[key]; ok {
		return target
	}
	return t.DefaultTarget
}

func maxKey(table map[int]float64) int {
	keys := make([]int, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys[len(keys)-1]
}
