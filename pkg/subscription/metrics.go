package subscription

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the billing engine's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	WebhooksTotal        *prometheus.CounterVec
	WebhookDuration      *prometheus.HistogramVec
	ProcessorErrorsTotal *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec
	SweptTotal           *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhooks_total",
				Help: "Webhook notifications by provider and reconciliation outcome",
			},
			[]string{"provider", "outcome"},
		),
		WebhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_webhook_duration_seconds",
				Help:    "Time spent reconciling a webhook notification",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ProcessorErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_processor_errors_total",
				Help: "Failed processor API calls",
			},
			[]string{"provider", "operation"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_transitions_total",
				Help: "Explicit lifecycle transitions applied",
			},
			[]string{"provider", "action"},
		),
		SweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_swept_total",
				Help: "Subscriptions moved by the periodic sweeper",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		m.WebhooksTotal,
		m.WebhookDuration,
		m.ProcessorErrorsTotal,
		m.TransitionsTotal,
		m.SweptTotal,
	)
	return m
}

func (m *Metrics) webhook(provider Provider, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(string(provider), string(outcome)).Inc()
	m.WebhookDuration.WithLabelValues(string(provider)).Observe(elapsed.Seconds())
}

func (m *Metrics) processorFailure(provider Provider, op string) {
	if m == nil {
		return
	}
	m.ProcessorErrorsTotal.WithLabelValues(string(provider), op).Inc()
}

func (m *Metrics) transition(provider Provider, action Action) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(provider), string(action)).Inc()
}

func (m *Metrics) swept(action Action) {
	if m == nil {
		return
	}
	m.SweptTotal.WithLabelValues(string(action)).Inc()
}
