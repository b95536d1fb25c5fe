// Package metrics exposes Prometheus instrumentation for the quota guard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the quota guard collectors.
type Metrics struct {
	EvaluationsTotal prometheus.Counter
	ViolationsTotal  *prometheus.CounterVec
	AttachmentBytes  prometheus.Histogram
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_quota_evaluations_total",
			Help: "Number of bulk-mode quota evaluations performed.",
		}),
		ViolationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_quota_violations_total",
			Help: "Number of quota violations by dimension.",
		}, []string{"kind"}),
		AttachmentBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "palisade_quota_attachment_bytes",
			Help:    "Estimated size in bytes of evaluated attachments.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}
}

// RecordEvaluation counts one evaluation and the estimated size of each
// attachment it covered.
func (m *Metrics) RecordEvaluation(attachmentBytes []int64) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.Inc()
	for _, b := range attachmentBytes {
		m.AttachmentBytes.Observe(float64(b))
	}
}

// RecordViolation counts one violated dimension.
func (m *Metrics) RecordViolation(kind string) {
	if m == nil {
		return
	}
	m.ViolationsTotal.WithLabelValues(kind).Inc()
}
