// Package config loads and validates the whole runtime configuration from
// one YAML file. Defaults come first, the file overrides them, and
// validation fails fast: a bad threshold at startup is a config bug, not
// something to discover mid-session.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/exits"
	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/marketdata"
	"github.com/quantmill/uptrend/internal/sizing"
	"github.com/quantmill/uptrend/internal/trading"
)

// UniverseConfig selects the tradeable symbols and the history window.
type UniverseConfig struct {
	Symbols        []string `yaml:"symbols"`
	WarmupDays     int      `yaml:"warmup_days"`      // calendar days of daily history
	MinListingDays int      `yaml:"min_listing_days"` // calendar days since listing
}

// DataConfig wires the bar store, cache, live feed and reference files.
type DataConfig struct {
	ClickHouse      marketdata.ClickHouseConfig `yaml:"clickhouse"`
	Cache           marketdata.CacheConfig      `yaml:"cache"`
	CacheEnabled    bool                        `yaml:"cache_enabled"`
	Feed            marketdata.FeedConfig       `yaml:"feed"`
	InstrumentsFile string                      `yaml:"instruments_file"`
	STFile          string                      `yaml:"st_file"`
}

// BrokerConfig selects the order gateway.
type BrokerConfig struct {
	Mode string            `yaml:"mode"` // sim or live
	Sim  broker.SimConfig  `yaml:"sim"`
	Live broker.LiveConfig `yaml:"live"`
}

// LedgerConfig controls position-record persistence.
type LedgerConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"` // empty = in-memory only
}

// OpsConfig controls the operational HTTP endpoint.
type OpsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// Config is the full runtime configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Universe UniverseConfig `yaml:"universe"`
	Data     DataConfig     `yaml:"data"`
	Broker   BrokerConfig   `yaml:"broker"`
	Trading  trading.Config `yaml:"trading"`
	Factors  factors.Config `yaml:"factors"`
	Sizing   sizing.Tables  `yaml:"sizing"`
	Exits    exits.Config   `yaml:"exits"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Ops      OpsConfig      `yaml:"ops"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Universe: UniverseConfig{WarmupDays: 365, MinListingDays: 120},
		Data: DataConfig{
			ClickHouse: marketdata.DefaultClickHouseConfig(),
			Cache:      marketdata.DefaultCacheConfig(),
			Feed:       marketdata.DefaultFeedConfig(),
		},
		Broker:  BrokerConfig{Mode: "sim", Sim: broker.DefaultSimConfig(), Live: broker.DefaultLiveConfig()},
		Trading: trading.DefaultConfig(),
		Factors: factors.DefaultConfig(),
		Sizing:  sizing.DefaultTables(),
		Exits:   exits.DefaultConfig(),
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section and returns the first problem.
func (c Config) Validate() error {
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("config: universe.symbols is empty")
	}
	if c.Universe.WarmupDays <= 0 {
		return fmt.Errorf("config: universe.warmup_days must be positive")
	}
	if c.Universe.MinListingDays < 0 {
		return fmt.Errorf("config: universe.min_listing_days must not be negative")
	}
	switch c.Broker.Mode {
	case "sim":
	case "live":
		if c.Broker.Live.BaseURL == "" {
			return fmt.Errorf("config: broker.live.base_url required in live mode")
		}
		if c.Trading.Account == "" {
			return fmt.Errorf("config: trading.account required in live mode")
		}
	default:
		return fmt.Errorf("config: broker.mode %q must be sim or live", c.Broker.Mode)
	}
	if err := c.Data.ClickHouse.Validate(); err != nil {
		return err
	}
	if err := c.Trading.Validate(); err != nil {
		return err
	}
	if err := c.Factors.Validate(); err != nil {
		return err
	}
	if err := c.Sizing.Validate(); err != nil {
		return err
	}
	if err := c.Exits.Validate(); err != nil {
		return err
	}
	return nil
}
