// Package trading owns the per-tick order flow. The Coordinator is the
// strategy context constructed once per run: it replaces the source
// system's global mutable state and is passed nothing implicitly. Within a
// tick the order is fixed (reconcile, sells, refetch, buys) so that sells
// free capital and slots for buys on the same tick.
package trading

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/calendar"
	"github.com/quantmill/uptrend/internal/exits"
	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/gates"
	"github.com/quantmill/uptrend/internal/ledger"
	"github.com/quantmill/uptrend/internal/metrics"
	"github.com/quantmill/uptrend/internal/series"
	"github.com/quantmill/uptrend/internal/sizing"
)

// Config holds the coordinator's trading constraints.
type Config struct {
	Account       string  `yaml:"account"`
	StrategyName  string  `yaml:"strategy_name"`
	NoTradeBefore string  `yaml:"no_trade_before"` // HH:MM, buys only
	MinTicket     float64 `yaml:"min_ticket"`      // currency floor per order
	CashCapRatio  float64 `yaml:"cash_cap_ratio"`  // cap per buy vs available cash
	LotSize       int64   `yaml:"lot_size"`
	MaxPositions  int     `yaml:"max_positions"`   // 0 = uncapped
	MinBuyScore   int     `yaml:"min_buy_score"`   // score gate for new entries
}

// DefaultConfig returns the reference constraints for intraday runs.
func DefaultConfig() Config {
	return Config{
		StrategyName:  "uptrend",
		NoTradeBefore: "10:00",
		MinTicket:     10_000,
		CashCapRatio:  0.95,
		LotSize:       100,
		MaxPositions:  0,
		MinBuyScore:   10,
	}
}

// Validate rejects unusable constraints at startup.
func (c Config) Validate() error {
	if calendar.ParseClock(c.NoTradeBefore) < 0 {
		return fmt.Errorf("trading: bad no_trade_before %q", c.NoTradeBefore)
	}
	if c.MinTicket <= 0 || c.LotSize <= 0 {
		return fmt.Errorf("trading: min ticket and lot size must be positive")
	}
	if c.CashCapRatio <= 0 || c.CashCapRatio > 1 {
		return fmt.Errorf("trading: cash cap ratio out of (0,1]")
	}
	if c.MinBuyScore < 0 || c.MinBuyScore > 20 {
		return fmt.Errorf("trading: min buy score %d outside 0-20", c.MinBuyScore)
	}
	return nil
}

// TickResult reports what one tick did.
type TickResult struct {
	Buys  int
	Sells int
}

// Coordinator drives one strategy instance. Single-threaded by contract:
// the engine's bar callback is the only caller.
type Coordinator struct {
	cfg     Config
	engine  *factors.Engine
	gate    *gates.Gate
	sizer   sizing.Tables
	exiter  *exits.Evaluator
	led     *ledger.Ledger
	gw      broker.Gateway
	met     *metrics.Set
	listing *series.Bool
	log     zerolog.Logger

	day        string
	openPrices map[string]float64
}

// New wires a coordinator. listing is the pre-computed listing-age filter
// aligned to the factor calendar.
func New(cfg Config, engine *factors.Engine, gate *gates.Gate, sizer sizing.Tables,
	exiter *exits.Evaluator, led *ledger.Ledger, gw broker.Gateway,
	listing *series.Bool, met *metrics.Set, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		engine:  engine,
		gate:    gate,
		sizer:   sizer,
		exiter:  exiter,
		led:     led,
		gw:      gw,
		met:     met,
		listing: listing,
		log:     log.With().Str("component", "coordinator").Str("strategy", cfg.StrategyName).Logger(),
	}
}

// BeginDay switches the coordinator and factor engine to a new trading
// date. Must run before the date's first RunTick; openPrices feed the
// mark-to-market valuation used for sizing.
func (c *Coordinator) BeginDay(date string, symbols []string, openPrices map[string]float64) {
	c.day = date
	c.openPrices = openPrices
	c.engine.ResetDay(date, symbols)
	c.log.Info().Str("date", date).Int("symbols", len(symbols)).Msg("trading day started")
}

// ObserveOpens records each symbol's first-seen open price for the day.
// Live sessions have no open-price snapshot at day start, so the map
// passed to BeginDay fills in as bars arrive.
func (c *Coordinator) ObserveOpens(bars map[string]factors.MinuteBar) {
	for sym, bar := range bars {
		if _, seen := c.openPrices[sym]; !seen && bar.Open > 0 {
			c.openPrices[sym] = bar.Open
		}
	}
}

// RunTick processes one minute: factor update, reconciliation, exits,
// then entries. Per-symbol failures are isolated; only a failed holdings
// read aborts the tick, because reconciling against a missing snapshot
// would wrongly purge the ledger.
func (c *Coordinator) RunTick(ctx context.Context, date, timestamp string, bars map[string]factors.MinuteBar) (TickResult, error) {
	var res TickResult
	if date != c.day {
		return res, fmt.Errorf("trading: tick date %s without BeginDay (current %s)", date, c.day)
	}
	c.met.TicksProcessed.Inc()

	c.engine.UpdateMinute(date, timestamp, bars)

	holdings, err := c.gw.Holdings(ctx, c.cfg.Account)
	if err != nil {
		c.log.Warn().Err(err).Str("date", date).Str("time", timestamp).Msg("holdings read failed, tick skipped")
		return res, nil
	}
	recon := c.led.Reconcile(holdings)
	c.met.ReconcileDrops.Add(float64(recon.Removed))
	c.met.OrphanHoldings.Set(float64(recon.Orphaned))
	c.met.OpenPositions.Set(float64(c.led.Count()))

	prices := make(map[string]float64, len(bars))
	for sym, bar := range bars {
		if bar.Close > 0 {
			prices[sym] = bar.Close
		}
	}

	res.Sells = c.runSells(ctx, date, timestamp, holdings, prices)

	cash, err := c.gw.Cash(ctx, c.cfg.Account)
	if err != nil {
		c.log.Warn().Err(err).Msg("cash read failed, buys skipped")
		return res, nil
	}
	c.met.AvailableCash.Set(cash)

	if calendar.TimeOfDayMinutes(timestamp) < calendar.ParseClock(c.cfg.NoTradeBefore) {
		return res, nil
	}
	if cash < c.cfg.MinTicket {
		return res, nil
	}

	res.Buys = c.runBuys(ctx, date, timestamp, bars, cash)
	c.met.OpenPositions.Set(float64(c.led.Count()))
	return res, nil
}

// runSells issues sell orders for every triggered exit with sellable
// shares. A rejection logs and moves on; it never aborts the loop.
func (c *Coordinator) runSells(ctx context.Context, date, timestamp string,
	holdings map[string]broker.Holding, prices map[string]float64) int {

	decisions := c.gate.SellCandidates(date, holdings, prices, c.led, c.exiter)
	sold := 0
	for _, sd := range decisions {
		holding := holdings[sd.Symbol]
		c.met.ExitsByReason.WithLabelValues(sd.Decision.Reason.String()).Inc()
		if holding.Available <= 0 {
			// T+1: bought today, sellable tomorrow.
			c.log.Info().Str("symbol", sd.Symbol).Str("date", date).Str("time", timestamp).
				Str("reason", sd.Decision.Reason.String()).Int64("volume", holding.Volume).
				Msg("exit triggered but no sellable volume, deferred")
			continue
		}
		price := prices[sd.Symbol]
		_, err := c.gw.Sell(ctx, c.cfg.Account, sd.Symbol, price, holding.Available,
			c.cfg.StrategyName, "sell_"+sd.Decision.Reason.String())
		if err != nil {
			c.met.OrdersRejected.WithLabelValues("sell").Inc()
			c.log.Warn().Err(err).Str("symbol", sd.Symbol).Float64("price", price).
				Int64("volume", holding.Available).Msg("sell order failed")
			continue
		}
		c.met.OrdersIssued.WithLabelValues("sell").Inc()
		c.log.Info().Str("symbol", sd.Symbol).Str("date", date).Str("time", timestamp).
			Float64("price", price).Int64("volume", holding.Available).
			Str("reason", sd.Decision.Reason.String()).Str("detail", sd.Decision.Detail()).
			Msg("position closed")
		c.led.RecordSell(sd.Symbol)
		sold++
	}
	return sold
}

// runBuys walks the candidate list in score order, depleting the working
// cash estimate after each fill so later candidates in the same tick see
// the reduced capacity without a synchronous gateway round trip.
func (c *Coordinator) runBuys(ctx context.Context, date, timestamp string,
	bars map[string]factors.MinuteBar, cash float64) int {

	candidates, funnel := c.gate.BuyCandidates(date, c.engine.Scores(), c.engine.VolumeSurge(),
		c.engine.Daily().Cond1, c.listing)
	c.publishFunnel(funnel)
	if len(candidates) == 0 {
		return 0
	}
	c.log.Debug().Str("date", date).Str("time", timestamp).
		Int("scanned", funnel.Scanned).Int("cond1", funnel.PassedCond1).
		Int("cond2", funnel.PassedCond2).Int("score", funnel.PassedScore).
		Int("listing", funnel.PassedListing).Int("st", funnel.PassedST).
		Msg("buy funnel")

	holdings, err := c.gw.Holdings(ctx, c.cfg.Account)
	if err != nil {
		c.log.Warn().Err(err).Msg("post-sell holdings read failed, buys skipped")
		return 0
	}
	positions := len(holdings)
	holdingValue := 0.0
	for sym, h := range holdings {
		holdingValue += float64(h.Volume) * c.openPrices[sym]
	}

	bought := 0
	for _, cand := range candidates {
		if cash < c.cfg.MinTicket {
			break
		}
		if c.cfg.MaxPositions > 0 && positions >= c.cfg.MaxPositions {
			c.log.Debug().Int("max", c.cfg.MaxPositions).Msg("position slots full, remaining candidates skipped")
			break
		}
		if _, held := holdings[cand.Symbol]; held {
			continue
		}
		price := bars[cand.Symbol].Open
		if price <= 0 {
			continue
		}
		frac := c.sizer.PositionFraction(cand.Score)
		if frac <= 0 {
			continue
		}
		amount := frac * (cash + holdingValue)
		if cap := cash * c.cfg.CashCapRatio; amount > cap {
			amount = cap
		}
		if amount < c.cfg.MinTicket {
			c.log.Debug().Str("symbol", cand.Symbol).Float64("amount", amount).Msg("sized below ticket floor, skipped")
			continue
		}
		lot := float64(c.cfg.LotSize)
		volume := int64(math.Floor(amount/price/lot)) * c.cfg.LotSize
		if volume < c.cfg.LotSize {
			continue
		}
		_, err := c.gw.Buy(ctx, c.cfg.Account, cand.Symbol, price, volume,
			c.cfg.StrategyName, fmt.Sprintf("buy_score_%d", cand.Score))
		if err != nil {
			c.met.OrdersRejected.WithLabelValues("buy").Inc()
			c.log.Warn().Err(err).Str("symbol", cand.Symbol).Float64("price", price).
				Int64("volume", volume).Int("score", cand.Score).Msg("buy order failed")
			continue
		}
		spent := price * float64(volume)
		c.met.OrdersIssued.WithLabelValues("buy").Inc()
		c.log.Info().Str("symbol", cand.Symbol).Str("date", date).Str("time", timestamp).
			Float64("price", price).Int64("volume", volume).Int("score", cand.Score).
			Float64("amount", spent).Msg("position opened")
		c.led.RecordBuy(ledger.Record{
			Symbol:       cand.Symbol,
			BuyDate:      date,
			BuyTime:      timestamp,
			BuyPrice:     price,
			BuyVolume:    volume,
			BuyAmount:    spent,
			Score:        cand.Score,
			ScoreDetail:  cand.Detail,
			TargetProfit: c.sizer.TargetProfit(cand.Score),
		})
		// Same-tick sequential depletion: later candidates see the
		// reduced capacity immediately.
		cash -= spent
		holdingValue += spent
		positions++
		bought++
	}
	return bought
}

func (c *Coordinator) publishFunnel(f gates.Funnel) {
	c.met.FunnelStage.WithLabelValues("scanned").Set(float64(f.Scanned))
	c.met.FunnelStage.WithLabelValues("cond1").Set(float64(f.PassedCond1))
	c.met.FunnelStage.WithLabelValues("cond2").Set(float64(f.PassedCond2))
	c.met.FunnelStage.WithLabelValues("score").Set(float64(f.PassedScore))
	c.met.FunnelStage.WithLabelValues("listing").Set(float64(f.PassedListing))
	c.met.FunnelStage.WithLabelValues("st").Set(float64(f.PassedST))
}
