package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Authentication outcomes, labeled by result (authenticated/rejected)
	// and rejection reason
	AuthAttemptsTotal *prometheus.CounterVec

	// Per-check security rejections
	SecurityChecksTotal *prometheus.CounterVec

	// Degraded (fail-open) paths taken due to store errors
	StoreErrorsTotal *prometheus.CounterVec

	// Audit pipeline
	AuditEventsTotal  prometheus.Counter
	AuditDroppedTotal prometheus.Counter

	// Provisioning outcomes
	ProvisioningTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entbridge_auth_attempts_total",
				Help: "Total enterprise authentication attempts",
			},
			[]string{"result", "reason"},
		),
		SecurityChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entbridge_security_checks_total",
				Help: "Security check evaluations by check and outcome",
			},
			[]string{"check", "outcome"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entbridge_store_errors_total",
				Help: "Shared store failures by component (fail-open paths)",
			},
			[]string{"component"},
		),
		AuditEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entbridge_audit_events_total",
				Help: "Audit events enqueued",
			},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entbridge_audit_dropped_total",
				Help: "Audit events dropped due to queue overflow",
			},
		),
		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entbridge_provisioning_total",
				Help: "User provisioning operations by outcome",
			},
			[]string{"outcome"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.AuthAttemptsTotal,
		m.SecurityChecksTotal,
		m.StoreErrorsTotal,
		m.AuditEventsTotal,
		m.AuditDroppedTotal,
		m.ProvisioningTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
