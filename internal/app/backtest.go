package app

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/config"
	"github.com/quantmill/uptrend/internal/export"
)

// RunBacktest replays minute bars for [from, to] through the full tick
// loop against the simulated gateway, then writes the trade log, equity
// curve and open-position snapshot to outDir.
func RunBacktest(ctx context.Context, cfg config.Config, from, to, outDir string, log zerolog.Logger) error {
	if cfg.Broker.Mode != "sim" {
		return fmt.Errorf("app: backtest requires broker.mode sim, got %s", cfg.Broker.Mode)
	}
	warmupFrom, err := shiftDate(from, -cfg.Universe.WarmupDays)
	if err != nil {
		return err
	}
	a, err := Build(ctx, cfg, warmupFrom, to, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var sessions []string
	for _, d := range a.Daily.Calendar.Dates() {
		if d >= from && d <= to {
			sessions = append(sessions, d)
		}
	}
	if len(sessions) == 0 {
		return fmt.Errorf("app: no trading dates in [%s, %s]", from, to)
	}
	log.Info().Str("from", from).Str("to", to).Int("sessions", len(sessions)).Msg("backtest starting")

	var equity []export.EquityRow
	for _, date := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.runSimSession(ctx, date); err != nil {
			return err
		}
		cash, _ := a.Gateway.Cash(ctx, cfg.Trading.Account)
		asset, _ := a.Gateway.TotalAsset(ctx, cfg.Trading.Account)
		equity = append(equity, export.EquityRow{
			Date: date, Cash: cash, TotalAsset: asset, Positions: a.Ledger.Count(),
		})
		log.Info().Str("date", date).Float64("cash", cash).Float64("total_asset", asset).
			Int("positions", a.Ledger.Count()).Msg("session done")
	}

	if err := export.WriteTrades(filepath.Join(outDir, "trades.csv"), a.Trades()); err != nil {
		return fmt.Errorf("app: write trades: %w", err)
	}
	if err := export.WriteEquity(filepath.Join(outDir, "equity.csv"), equity); err != nil {
		return fmt.Errorf("app: write equity: %w", err)
	}
	if err := export.WritePositions(filepath.Join(outDir, "positions.csv"), a.Ledger.All()); err != nil {
		return fmt.Errorf("app: write positions: %w", err)
	}
	log.Info().Str("dir", outDir).Int("trades", len(a.Trades())).Msg("backtest artifacts written")
	return nil
}

// runSimSession replays one date through the coordinator.
func (a *App) runSimSession(ctx context.Context, date string) error {
	a.Sim.AdvanceDay(date)

	opens := make(map[string]float64, len(a.Cfg.Universe.Symbols))
	for _, sym := range a.Cfg.Universe.Symbols {
		if v := a.Bars.Open.At(date, sym); !math.IsNaN(v) && v > 0 {
			opens[sym] = v
		}
	}
	a.Coord.BeginDay(date, a.Cfg.Universe.Symbols, opens)

	ticks, err := a.Source.MinuteBars(ctx, date, a.Cfg.Universe.Symbols)
	if err != nil {
		return fmt.Errorf("app: minute bars for %s: %w", date, err)
	}
	for _, tick := range ticks {
		marks := make(map[string]float64, len(tick.Bars))
		for sym, bar := range tick.Bars {
			if bar.Close > 0 {
				marks[sym] = bar.Close
			}
		}
		a.Sim.MarkPrices(marks)
		a.recorder.SetNow(date, tick.Timestamp)
		if _, err := a.Coord.RunTick(ctx, date, tick.Timestamp, tick.Bars); err != nil {
			return err
		}
	}
	return nil
}

// shiftDate moves a YYYYMMDD date by n calendar days.
func shiftDate(date string, n int) (string, error) {
	t, err := time.Parse("20060102", date)
	if err != nil {
		return "", fmt.Errorf("app: bad date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format("20060102"), nil
}
