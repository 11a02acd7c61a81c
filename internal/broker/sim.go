package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SimConfig parameterizes the backtest fill model.
type SimConfig struct {
	InitialCash    float64 `yaml:"initial_cash"`
	CommissionRate float64 `yaml:"commission_rate"` // per side, e.g. 0.0003
	MinCommission  float64 `yaml:"min_commission"`  // currency floor per order
	StampTaxRate   float64 `yaml:"stamp_tax_rate"`  // sell side only
}

// DefaultSimConfig returns a conventional A-share fee model.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		InitialCash:    1_000_000,
		CommissionRate: 0.0003,
		MinCommission:  5,
		StampTaxRate:   0.0005,
	}
}

type simPosition struct {
	volume    int64
	available int64
	costTotal float64 // cash spent, fees included
	buyDate   string
}

// Sim is the in-memory backtest gateway. Orders fill immediately at the
// order price; availability follows T+1: shares bought on day t become
// sellable when AdvanceDay moves past t. Mark prices drive float P&L and
// total-asset valuation.
type Sim struct {
	mu        sync.Mutex
	cfg       SimConfig
	log       zerolog.Logger
	cash      float64
	positions map[string]*simPosition
	marks     map[string]float64
	day       string
}

// NewSim builds a simulator holding only cash.
func NewSim(cfg SimConfig, log zerolog.Logger) *Sim {
	return &Sim{
		cfg:       cfg,
		log:       log.With().Str("component", "sim_gateway").Logger(),
		cash:      cfg.InitialCash,
		positions: map[string]*simPosition{},
		marks:     map[string]float64{},
	}
}

// AdvanceDay rolls the simulator to a new trading date, releasing T+1
// holds from prior days.
func (s *Sim) AdvanceDay(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.day = date
	for _, pos := range s.positions {
		if pos.buyDate < date {
			pos.available = pos.volume
		}
	}
}

// MarkPrices updates the valuation prices used for float P&L and total
// asset. Zero or negative marks are ignored, keeping the last good mark.
func (s *Sim) MarkPrices(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, px := range prices {
		if px > 0 {
			s.marks[sym] = px
		}
	}
}

func (s *Sim) commission(amount float64) float64 {
	fee := amount * s.cfg.CommissionRate
	if fee < s.cfg.MinCommission {
		fee = s.cfg.MinCommission
	}
	return fee
}

// Buy fills a buy order at the given price, debiting cash plus commission.
func (s *Sim) Buy(_ context.Context, _, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price <= 0 || volume <= 0 {
		return "", fmt.Errorf("%w: %s price=%.2f volume=%d", ErrOrderRejected, symbol, price, volume)
	}
	amount := price * float64(volume)
	cost := amount + s.commission(amount)
	if cost > s.cash {
		return "", fmt.Errorf("%w: %s needs %.2f, cash %.2f", ErrOrderRejected, symbol, cost, s.cash)
	}
	s.cash -= cost
	pos, held := s.positions[symbol]
	if !held {
		pos = &simPosition{buyDate: s.day}
		s.positions[symbol] = pos
	}
	pos.volume += volume
	pos.costTotal += cost
	pos.buyDate = s.day
	s.marks[symbol] = price

	id := uuid.NewString()
	s.log.Debug().Str("order_id", id).Str("symbol", symbol).Str("tag", tag).Str("remark", remark).
		Float64("price", price).Int64("volume", volume).Msg("sim buy filled")
	return id, nil
}

// Sell fills a sell order for up to the available volume, crediting cash
// net of commission and stamp tax.
func (s *Sim) Sell(_ context.Context, _, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, held := s.positions[symbol]
	if !held || price <= 0 || volume <= 0 || volume > pos.available {
		avail := int64(0)
		if held {
			avail = pos.available
		}
		return "", fmt.Errorf("%w: %s sell volume=%d available=%d", ErrOrderRejected, symbol, volume, avail)
	}
	amount := price * float64(volume)
	proceeds := amount - s.commission(amount) - amount*s.cfg.StampTaxRate
	s.cash += proceeds
	pos.volume -= volume
	pos.available -= volume
	if pos.volume == 0 {
		delete(s.positions, symbol)
	} else {
		pos.costTotal *= float64(pos.volume) / float64(pos.volume+volume)
	}
	s.marks[symbol] = price

	id := uuid.NewString()
	s.log.Debug().Str("order_id", id).Str("symbol", symbol).Str("tag", tag).Str("remark", remark).
		Float64("price", price).Int64("volume", volume).Msg("sim sell filled")
	return id, nil
}

// Holdings returns the simulated position set.
func (s *Sim) Holdings(_ context.Context, _ string) (map[string]Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Holding, len(s.positions))
	for sym, pos := range s.positions {
		unitCost := pos.costTotal / float64(pos.volume)
		mark, marked := s.marks[sym]
		pnl := 0.0
		if marked {
			pnl = (mark - unitCost) * float64(pos.volume)
		}
		out[sym] = Holding{
			Symbol:    sym,
			Volume:    pos.volume,
			Available: pos.available,
			Cost:      unitCost,
			FloatPnL:  pnl,
		}
	}
	return out, nil
}

// Cash returns available cash.
func (s *Sim) Cash(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash, nil
}

// TotalAsset returns cash plus positions marked at the latest prices.
func (s *Sim) TotalAsset(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.cash
	for sym, pos := range s.positions {
		if mark, ok := s.marks[sym]; ok {
			total += mark * float64(pos.volume)
		} else {
			total += pos.costTotal
		}
	}
	return total, nil
}
