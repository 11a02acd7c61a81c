package app

import (
	"context"
	"sync"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/export"
)

// tradeRecorder decorates a gateway and keeps the fill log for export.
// The runner stamps the session clock before each tick; gateway calls
// carry no timestamp of their own.
type tradeRecorder struct {
	broker.Gateway

	mu   sync.Mutex
	date string
	time string
	rows []export.TradeRow
}

func newTradeRecorder(gw broker.Gateway) *tradeRecorder {
	return &tradeRecorder{Gateway: gw}
}

// SetNow stamps the clock applied to subsequent fills.
func (r *tradeRecorder) SetNow(date, timestamp string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.date, r.time = date, timestamp
}

// Trades returns the fill log in order.
func (r *tradeRecorder) Trades() []export.TradeRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]export.TradeRow(nil), r.rows...)
}

func (r *tradeRecorder) record(side, symbol string, price float64, volume int64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, export.TradeRow{
		Date:   r.date,
		Time:   r.time,
		Symbol: symbol,
		Side:   side,
		Price:  price,
		Volume: volume,
		Amount: price * float64(volume),
		Reason: reason,
	})
}

func (r *tradeRecorder) Buy(ctx context.Context, account, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	id, err := r.Gateway.Buy(ctx, account, symbol, price, volume, tag, remark)
	if err == nil {
		r.record("buy", symbol, price, volume, remark)
	}
	return id, err
}

func (r *tradeRecorder) Sell(ctx context.Context, account, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	id, err := r.Gateway.Sell(ctx, account, symbol, price, volume, tag, remark)
	if err == nil {
		r.record("sell", symbol, price, volume, remark)
	}
	return id, err
}
