// Package metrics счётчики и гистограммы консоли оператора.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec
	sessionEvents *prometheus.CounterVec
}

// New регистрирует метрики в reg. Nil reg означает отдельный реестр.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custody_admin",
			Name:      "resource_fetches_total",
			Help:      "Remote list fetches by resource kind and outcome.",
		}, []string{"kind", "outcome"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "custody_admin",
			Name:      "resource_fetch_duration_seconds",
			Help:      "Latency of remote list fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custody_admin",
			Name:      "operation_submissions_total",
			Help:      "Financial operation submissions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		submitLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "custody_admin",
			Name:      "operation_submission_duration_seconds",
			Help:      "Time from submit to settlement.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		sessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custody_admin",
			Name:      "session_events_total",
			Help:      "Login, logout and invalidation events.",
		}, []string{"event"}),
	}
}

func (m *Metrics) ObserveFetch(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind, outcome).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveSubmission(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(operation, outcome).Inc()
	m.submitLatency.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}
