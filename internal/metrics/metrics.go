// Package metrics exposes Prometheus counters for the authentication flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics is safe to use as a nil pointer; recording is then a no-op.
type Metrics struct {
	operations *prometheus.CounterVec
	purged     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "operations_total",
			Help:      "Authentication operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refresh_tokens_purged_total",
			Help:      "Expired refresh token records removed by the reaper.",
		}),
	}
	reg.MustRegister(m.operations, m.purged)
	return m
}

// Observe records one operation. A nil err counts as success.
func (m *Metrics) Observe(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}
