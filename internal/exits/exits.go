// Package exits decides when an open position closes. Per tick each
// holding is checked against a fixed-priority ladder: target profit, then
// stop loss, then the holding-period limit. The first match wins even when
// several would fire on the same tick.
package exits

import (
	"fmt"

	"github.com/quantmill/uptrend/internal/calendar"
)

// Reason identifies the exit trigger, in priority order.
type Reason int

const (
	NoExit Reason = iota
	TargetProfit
	StopLoss
	MaxHoldDays
	// Fallback reasons flag holdings without ledger metadata (e.g. after
	// a restart) so operators can see the gap in the audit trail.
	TargetProfitFallback
	StopLossFallback
)

func (r Reason) String() string {
	switch r {
	case NoExit:
		return "no_exit"
	case TargetProfit:
		return "target_profit"
	case StopLoss:
		return "stop_loss"
	case MaxHoldDays:
		return "max_hold_days"
	case TargetProfitFallback:
		return "target_profit_no_metadata"
	case StopLossFallback:
		return "stop_loss_no_metadata"
	default:
		return "unknown"
	}
}

// Position is the exit-relevant slice of one holding. CostBasis comes from
// the broker (ground truth for P&L); BuyDate and TargetProfit come from
// the ledger record when one exists.
type Position struct {
	Symbol       string
	CostBasis    float64
	BuyDate      string
	TargetProfit float64
	HasRecord    bool
}

// Decision is the outcome of one check, with the triggering numbers for
// the audit log.
type Decision struct {
	Exit      bool
	Reason    Reason
	PctChange float64
	HoldDays  int
}

// Detail renders the decision's numeric context for logging.
func (d Decision) Detail() string {
	return fmt.Sprintf("pct=%.4f hold_days=%d", d.PctChange, d.HoldDays)
}

// Config holds the global exit thresholds.
type Config struct {
	StopLoss       float64 `yaml:"stop_loss"`      // e.g. -0.03
	MaxHoldDays    int     `yaml:"max_hold_days"`  // trading days
	FallbackTarget float64 `yaml:"fallback_target"` // untracked holdings
	FallbackStop   float64 `yaml:"fallback_stop"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		StopLoss:       -0.03,
		MaxHoldDays:    3,
		FallbackTarget: 0.02,
		FallbackStop:   -0.03,
	}
}

// Validate rejects inverted thresholds at startup.
func (c Config) Validate() error {
	if c.StopLoss >= 0 || c.FallbackStop >= 0 {
		return fmt.Errorf("exits: stop loss must be negative")
	}
	if c.MaxHoldDays <= 0 {
		return fmt.Errorf("exits: max hold days must be positive")
	}
	if c.FallbackTarget <= 0 {
		return fmt.Errorf("exits: fallback target must be positive")
	}
	return nil
}

// Evaluator applies the exit ladder. Hold days are counted on the trading
// calendar; calendar-day arithmetic over-counts weekends and is wrong here.
type Evaluator struct {
	cfg Config
	cal *calendar.Calendar
}

// NewEvaluator builds an evaluator on the trading calendar.
func NewEvaluator(cfg Config, cal *calendar.Calendar) *Evaluator {
	return &Evaluator{cfg: cfg, cal: cal}
}

// Check evaluates one position at the current price and date. A
// non-positive cost basis or price makes every ratio meaningless, so the
// position is held.
func (e *Evaluator) Check(pos Position, currentPrice float64, currentDate string) Decision {
	if pos.CostBasis <= 0 || currentPrice <= 0 {
		return Decision{}
	}
	pct := (currentPrice - pos.CostBasis) / pos.CostBasis

	if !pos.HasRecord {
		// Conservative fallback for metadata gaps.
		switch {
		case pct >= e.cfg.FallbackTarget:
			return Decision{Exit: true, Reason: TargetProfitFallback, PctChange: pct}
		case pct <= e.cfg.FallbackStop:
			return Decision{Exit: true, Reason: StopLossFallback, PctChange: pct}
		default:
			return Decision{PctChange: pct}
		}
	}

	holdDays := e.cal.TradingDaysBetween(pos.BuyDate, currentDate)
	d := Decision{PctChange: pct, HoldDays: holdDays}
	switch {
	case pct >= pos.TargetProfit:
		d.Exit, d.Reason = true, TargetProfit
	case pct <= e.cfg.StopLoss:
		d.Exit, d.Reason = true, StopLoss
	case holdDays > e.cfg.MaxHoldDays:
		d.Exit, d.Reason = true, MaxHoldDays
	}
	return d
}
