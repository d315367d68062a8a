package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRequest("/incidents/:id", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/incidents/:id", "GET", 200, 20*time.Millisecond)
	m.RecordError("/incidents/:id", "POST", "NOT_FOUND")
	m.RecordAssignment("automatic")
	m.RecordEscalation("AGE")
	m.RecordEscalation("AGE")
	m.RecordSweep("completed", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestCount.WithLabelValues("/incidents/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorCount.WithLabelValues("/incidents/:id", "POST", "NOT_FOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("automatic")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.escalations.WithLabelValues("AGE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepFailed))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordAssignment("manual")
		m.RecordEscalation("MANUAL")
		m.RecordSweep("skipped", 0)
	})
	assert.Nil(t, m.Registry())
}
