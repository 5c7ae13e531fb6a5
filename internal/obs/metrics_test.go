package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockMetricsIncCounter(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("analytics.plan.compiled", map[string]string{"plan_type": "count_rows"})
	m.IncCounter("analytics.plan.compiled", map[string]string{"plan_type": "count_rows"})

	assert.Equal(t, 2, m.Counters["analytics.plan.compiled"])
	assert.Len(t, m.Labels["analytics.plan.compiled"], 2)
}

func TestMockMetricsObserveHistogram(t *testing.T) {
	m := NewMockMetrics()
	m.ObserveHistogram("retrieve.latency_ms", 12.5, nil)
	m.ObserveHistogram("retrieve.latency_ms", 8.25, nil)

	assert.Equal(t, []float64{12.5, 8.25}, m.Hists["retrieve.latency_ms"])
}

func TestNoopMetricsDoesNotPanic(t *testing.T) {
	var m NoopMetrics
	m.IncCounter("x", nil)
	m.ObserveHistogram("y", 1, nil)
}

func TestNilOtelMetricsIsSafe(t *testing.T) {
	var m *OtelMetrics
	m.IncCounter("x", nil)
	m.ObserveHistogram("y", 1, nil)
}
