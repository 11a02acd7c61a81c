// Package ledger tracks the strategy's own entry metadata per open
// position, independent of the broker's records, and keeps the two views
// reconciled. The broker is ground truth: orphaned ledger entries are
// removed, broker positions without metadata are reported, never invented.
package ledger

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/factors"
)

// Record is the entry metadata for one strategy-opened position. At most
// one record exists per symbol at any time.
type Record struct {
	Symbol       string              `json:"symbol" db:"symbol"`
	BuyDate      string              `json:"buy_date" db:"buy_date"`
	BuyTime      string              `json:"buy_time" db:"buy_time"`
	BuyPrice     float64             `json:"buy_price" db:"buy_price"`
	BuyVolume    int64               `json:"buy_volume" db:"buy_volume"`
	BuyAmount    float64             `json:"buy_amount" db:"buy_amount"`
	BuyFee       float64             `json:"buy_fee" db:"buy_fee"`
	Score        int                 `json:"score" db:"score"`
	ScoreDetail  factors.ScoreDetail `json:"score_detail"`
	TargetProfit float64             `json:"target_profit" db:"target_profit"`
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Removed  int      // ledger entries dropped because the broker no longer holds them
	Orphaned int      // broker positions with no ledger metadata
	Orphans  []string // the orphaned symbols, for conservative-exit handling
}

// Store persists records across process restarts. The in-memory ledger is
// authoritative during a run; the store is write-through.
type Store interface {
	Save(rec Record) error
	Delete(symbol string) error
	LoadAll() ([]Record, error)
}

// Ledger is the in-memory record set. Single strategy instance, single
// owner; the mutex only guards against the ops server reading while the
// tick loop writes.
type Ledger struct {
	mu    sync.RWMutex
	recs  map[string]Record
	store Store
	log   zerolog.Logger
}

// New builds an empty ledger. store may be nil for purely in-memory runs
// (backtests).
func New(store Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		recs:  map[string]Record{},
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

// Restore loads persisted records, typically at live-session start.
func (l *Ledger) Restore() error {
	if l.store == nil {
		return nil
	}
	recs, err := l.store.LoadAll()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range recs {
		l.recs[rec.Symbol] = rec
	}
	l.log.Info().Int("records", len(recs)).Msg("ledger restored from store")
	return nil
}

// RecordBuy inserts entry metadata on a confirmed buy fill. A duplicate
// while the position is still open should be impossible given the
// coordinator's held-symbol filter; the ledger defends by overwriting with
// a warning rather than layering.
func (l *Ledger) RecordBuy(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, exists := l.recs[rec.Symbol]; exists {
		l.log.Warn().Str("symbol", rec.Symbol).Str("prev_buy_date", old.BuyDate).
			Str("buy_date", rec.BuyDate).Msg("duplicate buy while position open, overwriting record")
	}
	l.recs[rec.Symbol] = rec
	l.persistSave(rec)
}

// RecordSell removes the record on a confirmed sell fill. Selling an
// untracked symbol is a no-op: the broker may hold legacy positions this
// instance never opened.
func (l *Ledger) RecordSell(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.recs[symbol]; !exists {
		return
	}
	delete(l.recs, symbol)
	l.persistDelete(symbol)
}

// Reconcile aligns the record set with broker holdings: records for
// symbols the broker no longer holds are removed (closed outside this
// ledger's knowledge), broker holdings without records are reported as
// orphans. Run once per tick, before any evaluation.
func (l *Ledger) Reconcile(holdings map[string]broker.Holding) ReconcileResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res ReconcileResult
	for sym := range l.recs {
		if _, held := holdings[sym]; !held {
			delete(l.recs, sym)
			l.persistDelete(sym)
			res.Removed++
			l.log.Warn().Str("symbol", sym).Msg("position gone from broker, ledger record removed")
		}
	}
	for sym := range holdings {
		if _, tracked := l.recs[sym]; !tracked {
			res.Orphaned++
			res.Orphans = append(res.Orphans, sym)
		}
	}
	if res.Orphaned > 0 {
		l.log.Warn().Strs("symbols", res.Orphans).Msg("broker holdings without ledger metadata, conservative exits apply")
	}
	return res
}

// Get returns the record for a symbol.
func (l *Ledger) Get(symbol string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.recs[symbol]
	return rec, ok
}

// All returns a copy of the record set.
func (l *Ledger) All() map[string]Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Record, len(l.recs))
	for sym, rec := range l.recs {
		out[sym] = rec
	}
	return out
}

// Count returns the number of tracked positions.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.recs)
}

func (l *Ledger) persistSave(rec Record) {
	if l.store == nil {
		return
	}
	if err := l.store.Save(rec); err != nil {
		l.log.Error().Err(err).Str("symbol", rec.Symbol).Msg("ledger store save failed")
	}
}

func (l *Ledger) persistDelete(symbol string) {
	if l.store == nil {
		return
	}
	if err := l.store.Delete(symbol); err != nil {
		l.log.Error().Err(err).Str("symbol", symbol).Msg("ledger store delete failed")
	}
}
