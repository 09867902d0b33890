package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFetch("users", "ok", 10*time.Millisecond)
	m.ObserveFetch("users", "ok", 10*time.Millisecond)
	m.ObserveSubmission("credit_wallet", "failure", time.Second)
	m.SessionEvent("login")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("users", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("credit_wallet", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionEvents.WithLabelValues("login")))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("users", "ok", 0)
	m.ObserveSubmission("x", "y", 0)
	m.SessionEvent("logout")
}
