package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/calendar"
	"github.com/quantmill/uptrend/internal/config"
	"github.com/quantmill/uptrend/internal/marketdata"
)

// RunLive trades today's session from the websocket minute feed. Warmup
// history runs through yesterday; today's factor row carries yesterday's
// completed values via the one-bar lag.
func RunLive(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	today := time.Now().Format("20060102")
	yesterday, err := shiftDate(today, -1)
	if err != nil {
		return err
	}
	warmupFrom, err := shiftDate(today, -cfg.Universe.WarmupDays)
	if err != nil {
		return err
	}
	a, err := Build(ctx, cfg, warmupFrom, yesterday, []string{today}, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if srv := a.OpsServer(); srv != nil {
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("ops server stopped")
			}
		}()
	}

	feed := marketdata.NewFeed(cfg.Data.Feed, log)
	feedErr := make(chan error, 1)
	go func() { feedErr <- feed.Run(ctx) }()

	log.Info().Str("date", today).Int("symbols", len(cfg.Universe.Symbols)).Msg("live session starting")
	day := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-feedErr:
			return err
		case tick, ok := <-feed.Ticks():
			if !ok {
				return <-feedErr
			}
			date := calendar.DatePart(tick.Timestamp)
			if !a.Daily.Calendar.Contains(date) {
				log.Warn().Str("date", date).Msg("tick outside factor calendar, skipped")
				continue
			}
			if date != day {
				day = date
				a.Coord.BeginDay(date, cfg.Universe.Symbols, make(map[string]float64))
			}
			a.Coord.ObserveOpens(tick.Bars)
			a.recorder.SetNow(date, tick.Timestamp)
			if _, err := a.Coord.RunTick(ctx, date, tick.Timestamp, tick.Bars); err != nil {
				return err
			}
			log.Debug().Str("time", tick.Timestamp).Int("bars", len(tick.Bars)).Msg("tick processed")
		}
	}
}
