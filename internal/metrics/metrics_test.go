package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe("login", nil)
	m.Observe("login", nil)
	m.Observe("login", errors.New("bad password"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("login", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("login", OutcomeFailure)))
}

func TestPurged(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Purged(3)
	m.Purged(0)
	m.Purged(-1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("refresh", nil)
		m.Purged(1)
	})
}
