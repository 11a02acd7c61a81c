package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndCollects(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.TicksProcessed.Inc()
	s.OrdersIssued.WithLabelValues("buy").Inc()
	s.OrdersIssued.WithLabelValues("buy").Inc()
	s.ExitsByReason.WithLabelValues("target_profit").Inc()
	s.FunnelStage.WithLabelValues("scanned").Set(1200)
	s.AvailableCash.Set(965_000)

	fams, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(fams))
	for _, f := range fams {
		byName[f.GetName()] = f
	}

	require.Contains(t, byName, "uptrend_ticks_total")
	assert.Equal(t, 1.0, byName["uptrend_ticks_total"].Metric[0].GetCounter().GetValue())

	require.Contains(t, byName, "uptrend_orders_issued_total")
	assert.Equal(t, 2.0, byName["uptrend_orders_issued_total"].Metric[0].GetCounter().GetValue())
	assert.Equal(t, "buy", byName["uptrend_orders_issued_total"].Metric[0].Label[0].GetValue())

	require.Contains(t, byName, "uptrend_buy_funnel_symbols")
	assert.Equal(t, 1200.0, byName["uptrend_buy_funnel_symbols"].Metric[0].GetGauge().GetValue())

	require.Contains(t, byName, "uptrend_available_cash")
	assert.Equal(t, 965_000.0, byName["uptrend_available_cash"].Metric[0].GetGauge().GetValue())
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
