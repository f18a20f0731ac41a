package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	base, err := NewPrometheusObserver(reg)
	require.NoError(t, err)

	o := base.ForRun("tsla-default")
	o.ObserveTransaction(domain.Transaction{Symbol: "TSLA", Type: domain.TransactionBuy})
	o.ObserveTransaction(domain.Transaction{Symbol: "TSLA", Type: domain.TransactionRejectedBuy, Reason: domain.ReasonGridSpacing})
	o.ObserveOrderEvent(domain.OrderEvent{Symbol: "TSLA", Side: domain.SideSell, To: domain.OrderActive, Reason: "activated"})
	o.ObserveQuestionable(domain.QuestionableEvent{Symbol: "TSLA"})

	assert.Equal(t, 2.0, counterTotal(t, reg, "trailgrid_transactions_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "trailgrid_rejections_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "trailgrid_order_transitions_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "trailgrid_questionable_events_total"))

	_, err = NewPrometheusObserver(reg)
	require.Error(t, err, "collectors cannot be registered twice")
}
