// Package metrics exposes prometheus instruments for the billing run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Billing run outcomes used as the result label.
const (
	ResultBilled        = "billed"
	ResultNotEligible   = "not_eligible"
	ResultLockContended = "lock_contended"
	ResultError         = "error"
)

// BillingMetrics counts billing runs and the entries they emit.
type BillingMetrics struct {
	runs             *prometheus.CounterVec
	entriesGenerated prometheus.Counter
	runDuration      prometheus.Histogram
	batchClaimed     prometheus.Histogram
}

func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	m := &BillingMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "silver",
			Subsystem: "billing",
			Name:      "runs_total",
			Help:      "Billing runs by outcome.",
		}, []string{"result"}),
		entriesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "silver",
			Subsystem: "billing",
			Name:      "entries_generated_total",
			Help:      "Document entries emitted by billing runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "silver",
			Subsystem: "billing",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one subscription billing run.",
			Buckets:   prometheus.DefBuckets,
		}),
		batchClaimed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "silver",
			Subsystem: "billing",
			Name:      "batch_claimed_subscriptions",
			Help:      "Subscriptions claimed per scheduler pass.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 200, 500},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.entriesGenerated, m.runDuration, m.batchClaimed)
	}
	return m
}

func (m *BillingMetrics) ObserveRun(result string, d time.Duration) {
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *BillingMetrics) AddEntries(n int) {
	if n > 0 {
		m.entriesGenerated.Add(float64(n))
	}
}

func (m *BillingMetrics) ObserveBatch(claimed int) {
	m.batchClaimed.Observe(float64(claimed))
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	return reg
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer { return reg }

func provideGatherer(reg *prometheus.Registry) prometheus.Gatherer { return reg }

var Module = fx.Module("observability.metrics",
	fx.Provide(NewRegistry),
	fx.Provide(provideRegisterer),
	fx.Provide(provideGatherer),
	fx.Provide(NewBillingMetrics),
)
