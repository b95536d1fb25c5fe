package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal          *prometheus.CounterVec
	RejectionsTotal      *prometheus.CounterVec
	SweepRunsTotal       *prometheus.CounterVec
	SweepDurationSeconds prometheus.Histogram
	TrackedKeys          prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_ratelimit_checks_total",
			Help: "Sliding-window checks by scope and outcome",
		}, []string{"scope", "outcome"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter, by exhausted scope",
		}, []string{"scope"}),
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_ratelimit_sweep_runs_total",
			Help: "Total number of sweep runs",
		}, []string{"status"}),
		SweepDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "palisade_ratelimit_sweep_duration_seconds",
			Help: "Duration of sweep runs in seconds",
		}),
		TrackedKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "palisade_ratelimit_tracked_keys",
			Help: "Current number of keys holding sliding-window state",
		}),
	}
}

func (m *Metrics) RecordCheck(scope string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
		m.RejectionsTotal.WithLabelValues(scope).Inc()
	}
	m.ChecksTotal.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) RecordSweep(status string, durationSeconds float64, trackedKeys int) {
	m.SweepRunsTotal.WithLabelValues(status).Inc()
	m.SweepDurationSeconds.Observe(durationSeconds)
	m.TrackedKeys.Set(float64(trackedKeys))
}
