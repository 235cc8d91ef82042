package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the aggregation and ingestion
// paths. All observe methods are nil-safe so components can run unmetered in
// tests.
type Metrics struct {
	AggregationRequests *prometheus.CounterVec // labels: outcome={complete,partial}
	AggregationDuration prometheus.Histogram
	ProviderFailures    *prometheus.CounterVec // labels: provider
	CacheLookups        *prometheus.CounterVec // labels: provider, result={hit,miss}

	IngestRecords       *prometheus.CounterVec // labels: source
	IngestCycleDuration prometheus.Histogram
	SchedulerRunning    prometheus.Gauge
}

// NewMetrics creates and registers all instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AggregationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surfcast",
			Name:      "aggregation_requests_total",
			Help:      "Multi-source forecast queries served, by outcome.",
		}, []string{"outcome"}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surfcast",
			Name:      "aggregation_duration_seconds",
			Help:      "Wall-clock duration of one multi-source fan-out.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surfcast",
			Name:      "provider_failures_total",
			Help:      "Adapter calls converted to absent results, by provider.",
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surfcast",
			Name:      "cache_lookups_total",
			Help:      "Per-cell cache lookups, by provider and result.",
		}, []string{"provider", "result"}),
		IngestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surfcast",
			Name:      "ingest_records_total",
			Help:      "Records upserted during ingestion, by source.",
		}, []string{"source"}),
		IngestCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surfcast",
			Name:      "ingest_cycle_duration_seconds",
			Help:      "Duration of a full ingestion cycle over all locations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surfcast",
			Name:      "scheduler_running",
			Help:      "1 while the ingestion scheduler loop is active.",
		}),
	}

	reg.MustRegister(
		m.AggregationRequests,
		m.AggregationDuration,
		m.ProviderFailures,
		m.CacheLookups,
		m.IngestRecords,
		m.IngestCycleDuration,
		m.SchedulerRunning,
	)
	return m
}

func (m *Metrics) ObserveAggregation(partial bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "complete"
	if partial {
		outcome = "partial"
	}
	m.AggregationRequests.WithLabelValues(outcome).Inc()
	m.AggregationDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveProviderFailure(provider string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveCache(provider string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) ObserveIngest(source string, records int) {
	if m == nil {
		return
	}
	m.IngestRecords.WithLabelValues(source).Add(float64(records))
}

func (m *Metrics) ObserveIngestCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.IngestCycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetSchedulerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SchedulerRunning.Set(1)
	} else {
		m.SchedulerRunning.Set(0)
	}
}
