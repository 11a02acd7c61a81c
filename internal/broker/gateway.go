// Package broker models the execution side: an explicit Gateway capability
// set with two concrete implementations, a backtest simulator and a live
// bridge adapter. The implementation is chosen at construction time; no
// mode-string branching inside methods.
package broker

import (
	"context"
	"errors"
)

// ErrOrderRejected marks a gateway-declined order (limit-up/limit-down,
// suspension, insufficient margin). It is recoverable: the candidate loop
// logs it and moves on.
var ErrOrderRejected = errors.New("order rejected")

// Holding is the broker's authoritative view of one position. Available is
// the T+1-sellable share count; shares bought today stay unavailable until
// the next session.
type Holding struct {
	Symbol    string  `json:"symbol"`
	Volume    int64   `json:"volume"`
	Available int64   `json:"available"`
	Cost      float64 `json:"cost"`
	FloatPnL  float64 `json:"float_pnl"`
}

// Gateway is the execution capability set the strategy consumes. Orders
// carry a strategy tag so multi-strategy accounts can be queried
// selectively.
type Gateway interface {
	Buy(ctx context.Context, account, symbol string, price float64, volume int64, tag, remark string) (orderID string, err error)
	Sell(ctx context.Context, account, symbol string, price float64, volume int64, tag, remark string) (orderID string, err error)
	Holdings(ctx context.Context, account string) (map[string]Holding, error)
	Cash(ctx context.Context, account string) (float64, error)
	TotalAsset(ctx context.Context, account string) (float64, error)
}
