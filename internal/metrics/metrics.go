package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aqura-labs/pushrelay/internal/processor"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	Delivered *prometheus.CounterVec
	Retried   prometheus.Counter
	Failed    prometheus.Counter

	QueueDepth         *prometheus.GaugeVec
	SubscriptionsTotal *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_notifications_delivered_total",
			Help: "Total number of successfully delivered notifications.",
		}, []string{"channel"}),

		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_notifications_retried_total",
			Help: "Total number of delivery attempts that were rescheduled.",
		}),

		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_notifications_failed_total",
			Help: "Total number of permanently failed queue entries.",
		}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "push_queue_depth",
			Help: "Current number of queue entries by status.",
		}, []string{"status"}),

		SubscriptionsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "push_subscriptions",
			Help: "Current number of registered subscriptions by state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.Delivered,
		m.Retried,
		m.Failed,
		m.QueueDepth,
		m.SubscriptionsTotal,
	)

	return m
}

// ProcessorHooks returns the callbacks expected by processor.MetricHooks.
// Centralises the prometheus observation calls so processor.go stays
// import-free.
func (m *Metrics) ProcessorHooks() processor.MetricHooks {
	return processor.MetricHooks{
		Retried: func() { m.Retried.Inc() },
		Failed:  func() { m.Failed.Inc() },
	}
}

// DelivererHook returns the callback for delivery.Deliverer.OnDelivered.
func (m *Metrics) DelivererHook() func(channel string) {
	return func(channel string) {
		m.Delivered.WithLabelValues(channel).Inc()
	}
}
