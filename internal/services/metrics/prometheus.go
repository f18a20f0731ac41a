package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// PrometheusObserver counts engine activity as prometheus metrics.
// Register one per process; runs are told apart by the run label.
type PrometheusObserver struct {
	run          string
	transactions *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	questionable *prometheus.CounterVec
}

// NewPrometheusObserver creates the collectors and registers them with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trailgrid_transactions_total",
				Help: "Executed and rejected transactions",
			},
			[]string{"run", "symbol", "type"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trailgrid_rejections_total",
				Help: "Rejected orders split by reason",
			},
			[]string{"run", "symbol", "reason"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trailgrid_order_transitions_total",
				Help: "Trailing order state transitions and stop adjustments",
			},
			[]string{"run", "side", "to", "reason"},
		),
		questionable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trailgrid_questionable_events_total",
				Help: "Days where one symbol both sold and bought",
			},
			[]string{"run", "symbol"},
		),
	}

	for _, c := range []prometheus.Collector{o.transactions, o.rejections, o.transitions, o.questionable} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// ForRun returns an observer that labels everything with run.
func (o *PrometheusObserver) ForRun(run string) *PrometheusObserver {
	clone := *o
	clone.run = run
	return &clone
}

// ObserveTransaction counts a transaction.
func (o *PrometheusObserver) ObserveTransaction(tx domain.Transaction) {
	o.transactions.WithLabelValues(o.run, tx.Symbol, string(tx.Type)).Inc()
	if tx.IsRejection() {
		o.rejections.WithLabelValues(o.run, tx.Symbol, tx.Reason).Inc()
	}
}

// ObserveOrderEvent counts an order transition.
func (o *PrometheusObserver) ObserveOrderEvent(ev domain.OrderEvent) {
	o.transitions.WithLabelValues(o.run, ev.Side.String(), ev.To.String(), ev.Reason).Inc()
}

// ObserveQuestionable counts a same-day sell and buy.
func (o *PrometheusObserver) ObserveQuestionable(ev domain.QuestionableEvent) {
	o.questionable.WithLabelValues(o.run, ev.Symbol).Inc()
}
