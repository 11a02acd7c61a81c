// Package postgres persists ledger records so a restarted live session
// does not fall back to conservative exits for every open position.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/ledger"
)

// Schema is the table the store expects. Applied out of band.
const Schema = `
CREATE TABLE IF NOT EXISTS position_records (
    symbol        TEXT PRIMARY KEY,
    buy_date      TEXT NOT NULL,
    buy_time      TEXT NOT NULL,
    buy_price     DOUBLE PRECISION NOT NULL,
    buy_volume    BIGINT NOT NULL,
    buy_amount    DOUBLE PRECISION NOT NULL,
    buy_fee       DOUBLE PRECISION NOT NULL,
    score         INTEGER NOT NULL,
    score_detail  JSONB NOT NULL,
    target_profit DOUBLE PRECISION NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a write-through ledger.Store on PostgreSQL.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects and verifies the database.
func Open(dsn string, timeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger store: connect: %w", err)
	}
	return &Store{db: db, timeout: timeout}, nil
}

// NewStore wraps an existing connection, mainly for tests.
func NewStore(db *sqlx.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// Save upserts one record keyed by symbol.
func (s *Store) Save(rec ledger.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	detail, err := json.Marshal(rec.ScoreDetail)
	if err != nil {
		return fmt.Errorf("ledger store: marshal detail: %w", err)
	}
	query := `
		INSERT INTO position_records
		(symbol, buy_date, buy_time, buy_price, buy_volume, buy_amount, buy_fee, score, score_detail, target_profit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (symbol) DO UPDATE SET
			buy_date = EXCLUDED.buy_date,
			buy_time = EXCLUDED.buy_time,
			buy_price = EXCLUDED.buy_price,
			buy_volume = EXCLUDED.buy_volume,
			buy_amount = EXCLUDED.buy_amount,
			buy_fee = EXCLUDED.buy_fee,
			score = EXCLUDED.score,
			score_detail = EXCLUDED.score_detail,
			target_profit = EXCLUDED.target_profit,
			updated_at = now()`
	if _, err := s.db.ExecContext(ctx, query,
		rec.Symbol, rec.BuyDate, rec.BuyTime, rec.BuyPrice, rec.BuyVolume,
		rec.BuyAmount, rec.BuyFee, rec.Score, detail, rec.TargetProfit); err != nil {
		return fmt.Errorf("ledger store: save %s: %w", rec.Symbol, err)
	}
	return nil
}

// Delete removes a record by symbol; deleting an absent row is fine.
func (s *Store) Delete(symbol string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM position_records WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("ledger store: delete %s: %w", symbol, err)
	}
	return nil
}

type recordRow struct {
	Symbol       string  `db:"symbol"`
	BuyDate      string  `db:"buy_date"`
	BuyTime      string  `db:"buy_time"`
	BuyPrice     float64 `db:"buy_price"`
	BuyVolume    int64   `db:"buy_volume"`
	BuyAmount    float64 `db:"buy_amount"`
	BuyFee       float64 `db:"buy_fee"`
	Score        int     `db:"score"`
	ScoreDetail  []byte  `db:"score_detail"`
	TargetProfit float64 `db:"target_profit"`
}

// LoadAll returns every persisted record.
func (s *Store) LoadAll() ([]ledger.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT symbol, buy_date, buy_time, buy_price, buy_volume, buy_amount, buy_fee, score, score_detail, target_profit FROM position_records`); err != nil {
		return nil, fmt.Errorf("ledger store: load: %w", err)
	}
	out := make([]ledger.Record, 0, len(rows))
	for _, row := range rows {
		var detail factors.ScoreDetail
		if err := json.Unmarshal(row.ScoreDetail, &detail); err != nil {
			return nil, fmt.Errorf("ledger store: decode detail for %s: %w", row.Symbol, err)
		}
		out = append(out, ledger.Record{
			Symbol:       row.Symbol,
			BuyDate:      row.BuyDate,
			BuyTime:      row.BuyTime,
			BuyPrice:     row.BuyPrice,
			BuyVolume:    row.BuyVolume,
			BuyAmount:    row.BuyAmount,
			BuyFee:       row.BuyFee,
			Score:        row.Score,
			ScoreDetail:  detail,
			TargetProfit: row.TargetProfit,
		})
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }
