package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the admission pipeline.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	AdmissionsRejected *prometheus.CounterVec
	EndpointLatency    *prometheus.HistogramVec
	AuditRecordsTotal  *prometheus.CounterVec
	IdempotencyHits    *prometheus.CounterVec
}

// New creates and registers all pipeline metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_http_requests_total",
			Help: "Total HTTP requests by method and status",
		}, []string{"method", "status"}),
		AdmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_admissions_rejected_total",
			Help: "Requests rejected before business logic, by pipeline stage",
		}, []string{"stage"}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "palisade_endpoint_latency_seconds",
			Help:    "End-to-end request latency per endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		AuditRecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_audit_records_total",
			Help: "Audit records persisted, by outcome",
		}, []string{"outcome"}),
		IdempotencyHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_idempotency_hits_total",
			Help: "Idempotency key lookups by outcome (miss, replay, in_flight, mismatch)",
		}, []string{"outcome"}),
	}
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(method, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordRejection counts a request rejected by an admission stage.
func (m *Metrics) RecordRejection(stage string) {
	if m == nil {
		return
	}
	m.AdmissionsRejected.WithLabelValues(stage).Inc()
}

// ObserveEndpointLatency records end-to-end latency for a path.
func (m *Metrics) ObserveEndpointLatency(path string, seconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(path).Observe(seconds)
}

// RecordAuditOutcome counts an audit persistence attempt.
func (m *Metrics) RecordAuditOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AuditRecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordIdempotencyOutcome counts an idempotency key lookup outcome.
func (m *Metrics) RecordIdempotencyOutcome(outcome string) {
	if m == nil {
		return
	}
	m.IdempotencyHits.WithLabelValues(outcome).Inc()
}
