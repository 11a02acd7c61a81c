// Package app assembles the strategy from configuration: data sources,
// factor tables, gateway, coordinator and the ops surface. The cmd layer
// stays thin; everything testable lives here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/config"
	"github.com/quantmill/uptrend/internal/exits"
	"github.com/quantmill/uptrend/internal/export"
	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/gates"
	"github.com/quantmill/uptrend/internal/ledger"
	ledgerpg "github.com/quantmill/uptrend/internal/ledger/postgres"
	"github.com/quantmill/uptrend/internal/marketdata"
	"github.com/quantmill/uptrend/internal/metrics"
	"github.com/quantmill/uptrend/internal/ops"
	"github.com/quantmill/uptrend/internal/series"
	"github.com/quantmill/uptrend/internal/trading"
)

// App is one assembled strategy instance.
type App struct {
	Cfg      config.Config
	Log      zerolog.Logger
	Source   marketdata.Source
	Bars     *marketdata.DailySet
	Daily    *factors.DailyFactors
	Engine   *factors.Engine
	Listing  *series.Bool
	Gateway  broker.Gateway
	Sim      *broker.Sim // set in sim mode only
	Ledger   *ledger.Ledger
	Coord    *trading.Coordinator
	Registry *prometheus.Registry
	Metrics  *metrics.Set

	recorder *tradeRecorder
	closers  []func() error
}

// Trades returns the fill log recorded so far.
func (a *App) Trades() []export.TradeRow { return a.recorder.Trades() }

// Build wires every component. The daily warmup history is loaded from
// warmupFrom through warmupTo inclusive. sessions lists the trading dates
// to be run; any session past warmupTo is appended to the factor axis so
// the lagged factors have a row to land on.
func Build(ctx context.Context, cfg config.Config, warmupFrom, warmupTo string, sessions []string, log zerolog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	ch, err := marketdata.OpenClickHouse(ctx, cfg.Data.ClickHouse, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ch.Close)
	a.Source = ch
	if cfg.Data.CacheEnabled {
		cached := marketdata.NewCachedSource(ch, cfg.Data.Cache, log)
		a.closers = append(a.closers, cached.Close)
		a.Source = cached
	}

	set, err := a.Source.DailyBars(ctx, cfg.Universe.Symbols, warmupFrom, warmupTo)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Bars = set
	closeF := set.Close.AppendDates(sessions...)
	highF := set.High.AppendDates(sessions...)
	volumeF := set.Volume.AppendDates(sessions...)
	a.Daily, err = factors.PrepareDailyFactors(closeF, highF, volumeF, cfg.Factors)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = factors.NewEngine(a.Daily, cfg.Factors, log)

	instruments, err := marketdata.LoadInstruments(cfg.Data.InstrumentsFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Listing = marketdata.ListingFilter(instruments, a.Daily.Calendar, cfg.Universe.MinListingDays)

	st := gates.STTable{}
	if cfg.Data.STFile != "" {
		st, err = marketdata.LoadSTPeriods(cfg.Data.STFile)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var store ledger.Store
	if cfg.Ledger.PostgresDSN != "" {
		pg, err := ledgerpg.Open(cfg.Ledger.PostgresDSN, 5*time.Second)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		store = pg
	}
	a.Ledger = ledger.New(store, log)
	if err := a.Ledger.Restore(); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: ledger restore: %w", err)
	}

	var base broker.Gateway
	switch cfg.Broker.Mode {
	case "live":
		base = broker.NewLive(cfg.Broker.Live, log)
	default:
		a.Sim = broker.NewSim(cfg.Broker.Sim, log)
		base = a.Sim
	}
	a.recorder = newTradeRecorder(base)
	a.Gateway = a.recorder

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector())
	a.Metrics = metrics.New(a.Registry)

	gate := gates.New(cfg.Trading.MinBuyScore, st, log)
	exiter := exits.NewEvaluator(cfg.Exits, a.Daily.Calendar)
	a.Coord = trading.New(cfg.Trading, a.Engine, gate, cfg.Sizing, exiter,
		a.Ledger, a.Gateway, a.Listing, a.Metrics, log)
	return a, nil
}

// OpsServer builds the operational HTTP server when configured, else nil.
func (a *App) OpsServer() *ops.Server {
	if a.Cfg.Ops.Addr == "" {
		return nil
	}
	return ops.New(a.Cfg.Ops.Addr, a.Registry, a.Ledger, a.Log)
}

// Close releases every held resource in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
