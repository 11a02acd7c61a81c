// Package metrics exposes the strategy's observability counters. One Set
// per strategy instance, registered on a caller-supplied registry so tests
// can isolate theirs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set holds every metric the tick loop updates.
type Set struct {
	FunnelStage    *prometheus.GaugeVec
	OrdersIssued   *prometheus.CounterVec
	OrdersRejected *prometheus.CounterVec
	ExitsByReason  *prometheus.CounterVec
	ReconcileDrops prometheus.Counter
	OrphanHoldings prometheus.Gauge
	OpenPositions  prometheus.Gauge
	AvailableCash  prometheus.Gauge
	TicksProcessed prometheus.Counter
}

// New registers and returns a metric set.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		FunnelStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uptrend_buy_funnel_symbols",
			Help: "Symbols surviving each buy-funnel stage on the latest tick",
		}, []string{"stage"}),
		OrdersIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptrend_orders_issued_total",
			Help: "Orders accepted by the gateway, by side",
		}, []string{"side"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptrend_orders_rejected_total",
			Help: "Orders declined by the gateway, by side",
		}, []string{"side"}),
		ExitsByReason: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptrend_exits_total",
			Help: "Exit signals issued, by reason",
		}, []string{"reason"}),
		ReconcileDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uptrend_reconcile_removed_total",
			Help: "Ledger records removed because the broker no longer held the symbol",
		}),
		OrphanHoldings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptrend_orphan_holdings",
			Help: "Broker holdings lacking ledger metadata on the latest tick",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptrend_open_positions",
			Help: "Positions tracked by the ledger",
		}),
		AvailableCash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptrend_available_cash",
			Help: "Available cash as of the latest tick",
		}),
		TicksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uptrend_ticks_total",
			Help: "Minute ticks processed",
		}),
	}
	reg.MustRegister(
		s.FunnelStage, s.OrdersIssued, s.OrdersRejected, s.ExitsByReason,
		s.ReconcileDrops, s.OrphanHoldings, s.OpenPositions, s.AvailableCash,
		s.TicksProcessed,
	)
	return s
}
