package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	// ReconciliationRuns counts reconciliation passes by outcome:
	// unchanged, updated, orphan_deleted, error
	ReconciliationRuns *prometheus.CounterVec

	// WebhookEvents counts inbound gateway events by event name and
	// result: applied, deleted, skipped, error
	WebhookEvents *prometheus.CounterVec

	// GatewayRequests counts outbound gateway calls by operation and
	// result: ok, transient_error, semantic_error
	GatewayRequests *prometheus.CounterVec
}

// NewMetrics creates and registers the service collectors on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ReconciliationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_reconciliation_runs_total",
			Help: "Reconciliation passes by outcome",
		}, []string{"outcome"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_webhook_events_total",
			Help: "Inbound gateway webhook events by event name and result",
		}, []string{"event", "result"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_gateway_requests_total",
			Help: "Outbound payment gateway calls by operation and result",
		}, []string{"operation", "result"}),
	}

	registry.MustRegister(m.ReconciliationRuns, m.WebhookEvents, m.GatewayRequests)
	return m
}

// Handler serves the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
