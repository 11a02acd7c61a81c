package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantmill/uptrend/internal/app"
	"github.com/quantmill/uptrend/internal/config"
)

const (
	appName = "uptrend"
	version = "v0.4.0"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Intraday momentum strategy runner",
		Long:    "Scores daily uptrend strength per symbol and trades the intraday volume-surge confirmation, with ledger-tracked exits.",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/uptrend.yaml", "path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay minute bars through the strategy against the simulated broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			outDir, _ := cmd.Flags().GetString("out")
			cfg, log, err := setup(configPath, logLevel)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			ctx, stop := signalContext()
			defer stop()
			return app.RunBacktest(ctx, cfg, from, to, outDir, log)
		},
	}
	backtestCmd.Flags().String("from", "", "first session date, YYYYMMDD")
	backtestCmd.Flags().String("to", "", "last session date, YYYYMMDD")
	backtestCmd.Flags().String("out", "out", "artifact output directory")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Trade today's session from the minute-bar feed",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup(configPath, logLevel)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			err = app.RunLive(ctx, cfg, log)
			if err == context.Canceled {
				log.Info().Msg("shutdown requested")
				return nil
			}
			return err
		},
	}

	rootCmd.AddCommand(backtestCmd, liveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the root logger. Console output when
// stderr is a terminal, JSON otherwise.
func setup(configPath, levelOverride string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	level := cfg.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("bad log level %q: %w", level, err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	var log zerolog.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	log = log.Level(lvl).With().Timestamp().Str("app", appName).Logger()
	return cfg, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
