package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingMetrics_CountersByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)

	m.ObserveRun(ResultBilled, 120*time.Millisecond)
	m.ObserveRun(ResultBilled, 80*time.Millisecond)
	m.ObserveRun(ResultNotEligible, time.Millisecond)
	m.AddEntries(5)
	m.AddEntries(0)
	m.ObserveBatch(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.runs.WithLabelValues(ResultBilled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues(ResultNotEligible)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.runs.WithLabelValues(ResultError)))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.entriesGenerated))
}

func TestBillingMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)
	m.ObserveRun(ResultBilled, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "silver_billing_runs_total")
	assert.Contains(t, names, "silver_billing_entries_generated_total")
}

func TestBillingMetrics_NilRegistererIsUsable(t *testing.T) {
	m := NewBillingMetrics(nil)
	m.ObserveRun(ResultError, time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues(ResultError)))
}
