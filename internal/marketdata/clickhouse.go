package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/factors"
)

// ClickHouseConfig locates the bar store.
type ClickHouseConfig struct {
	Addr        string        `yaml:"addr"`
	Database    string        `yaml:"database"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DailyTable  string        `yaml:"daily_table"`
	MinuteTable string        `yaml:"minute_table"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DefaultClickHouseConfig returns a local single-node setup.
func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Addr:        "localhost:9000",
		Database:    "marketdata",
		DailyTable:  "daily_bars",
		MinuteTable: "minute_bars",
		DialTimeout: 5 * time.Second,
	}
}

// Validate rejects an unlocatable store at startup.
func (c ClickHouseConfig) Validate() error {
	if c.Addr == "" || c.Database == "" {
		return fmt.Errorf("marketdata: clickhouse addr and database are required")
	}
	if c.DailyTable == "" || c.MinuteTable == "" {
		return fmt.Errorf("marketdata: clickhouse table names are required")
	}
	return nil
}

// ClickHouseSource reads adjusted bars from ClickHouse. The daily table is
// expected to carry forward-adjusted prices; raw volume is unadjusted.
type ClickHouseSource struct {
	conn clickhouse.Conn
	cfg  ClickHouseConfig
	log  zerolog.Logger
}

// OpenClickHouse connects and pings the store.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig, log zerolog.Logger) (*ClickHouseSource, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("marketdata: clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("marketdata: clickhouse ping: %w", err)
	}
	return &ClickHouseSource{
		conn: conn,
		cfg:  cfg,
		log:  log.With().Str("component", "clickhouse_source").Logger(),
	}, nil
}

// Close releases the connection pool.
func (s *ClickHouseSource) Close() error { return s.conn.Close() }

// TradingDates lists distinct daily-bar dates inside [from, to].
func (s *ClickHouseSource) TradingDates(ctx context.Context, from, to string) ([]string, error) {
	q := fmt.Sprintf(
		"SELECT DISTINCT trade_date FROM %s WHERE trade_date >= ? AND trade_date <= ? ORDER BY trade_date",
		s.cfg.DailyTable)
	rows, err := s.conn.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("marketdata: trading dates: %w", err)
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("marketdata: trading dates scan: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// DailyBars loads aligned per-symbol history for [from, to].
func (s *ClickHouseSource) DailyBars(ctx context.Context, symbols []string, from, to string) (*DailySet, error) {
	dates, err := s.TradingDates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("marketdata: no trading dates in [%s, %s]", from, to)
	}
	builder := newDailyBuilder(dates, symbols)

	q := fmt.Sprintf(
		"SELECT trade_date, symbol, open, high, low, close, volume FROM %s "+
			"WHERE trade_date >= ? AND trade_date <= ? AND symbol IN (?) "+
			"ORDER BY trade_date, symbol",
		s.cfg.DailyTable)
	rows, err := s.conn.Query(ctx, q, from, to, symbols)
	if err != nil {
		return nil, fmt.Errorf("marketdata: daily bars: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var (
			date, sym                      string
			open, high, low, closePx, vol float64
		)
		if err := rows.Scan(&date, &sym, &open, &high, &low, &closePx, &vol); err != nil {
			return nil, fmt.Errorf("marketdata: daily bars scan: %w", err)
		}
		builder.set("open", date, sym, open)
		builder.set("high", date, sym, high)
		builder.set("low", date, sym, low)
		builder.set("close", date, sym, closePx)
		builder.set("volume", date, sym, vol)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marketdata: daily bars rows: %w", err)
	}
	s.log.Debug().Int("rows", n).Int("dates", len(dates)).Int("symbols", len(symbols)).
		Str("from", from).Str("to", to).Msg("daily bars loaded")
	return builder.build()
}

// MinuteBars loads one session grouped into per-minute ticks, ascending.
func (s *ClickHouseSource) MinuteBars(ctx context.Context, date string, symbols []string) ([]MinuteTick, error) {
	q := fmt.Sprintf(
		"SELECT bar_time, symbol, open, high, low, close, volume, amount FROM %s "+
			"WHERE trade_date = ? AND symbol IN (?) ORDER BY bar_time, symbol",
		s.cfg.MinuteTable)
	rows, err := s.conn.Query(ctx, q, date, symbols)
	if err != nil {
		return nil, fmt.Errorf("marketdata: minute bars: %w", err)
	}
	defer rows.Close()

	byTime := make(map[string]map[string]factors.MinuteBar)
	for rows.Next() {
		var (
			ts, sym                                string
			open, high, low, closePx, vol, amount float64
		)
		if err := rows.Scan(&ts, &sym, &open, &high, &low, &closePx, &vol, &amount); err != nil {
			return nil, fmt.Errorf("marketdata: minute bars scan: %w", err)
		}
		bars, ok := byTime[ts]
		if !ok {
			bars = make(map[string]factors.MinuteBar)
			byTime[ts] = bars
		}
		bars[sym] = factors.MinuteBar{Open: open, High: high, Low: low, Close: closePx, Volume: vol, Amount: amount}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marketdata: minute bars rows: %w", err)
	}

	stamps := make([]string, 0, len(byTime))
	for ts := range byTime {
		stamps = append(stamps, ts)
	}
	sort.Strings(stamps)
	out := make([]MinuteTick, 0, len(stamps))
	for _, ts := range stamps {
		out = append(out, MinuteTick{Timestamp: ts, Bars: byTime[ts]})
	}
	return out, nil
}
