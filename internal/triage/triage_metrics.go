package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage pipeline.
type Metrics struct {
	IngestsTotal      *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	OracleCallsTotal  *prometheus.CounterVec
	OracleDuration    prometheus.Histogram
	FallbacksTotal    prometheus.Counter
	EscalationsTotal  prometheus.Counter
	CorrectionsTotal  prometheus.Counter
	GridBuildDuration prometheus.Histogram
	GridOpenVectors   prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbox_ingests_total",
			Help: "Total message ingestions by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbox_ingest_duration_seconds",
			Help:    "Duration of message ingestions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}),
		OracleCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbox_oracle_calls_total",
			Help: "Total classification oracle calls by outcome.",
		}, []string{"outcome"}),
		OracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbox_oracle_call_duration_seconds",
			Help:    "Duration of individual oracle calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbox_classifier_fallbacks_total",
			Help: "Ingestions classified by the lexical fallback instead of the oracle.",
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbox_escalations_total",
			Help: "Total manual escalations.",
		}),
		CorrectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbox_corrections_total",
			Help: "Total learned zone corrections.",
		}),
		GridBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbox_grid_build_duration_seconds",
			Help:    "Duration of grid aggregations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		GridOpenVectors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbox_grid_open_vectors",
			Help:    "Open state vectors scanned per grid build.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1 .. ~8192
		}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.IngestDuration,
		m.OracleCallsTotal,
		m.OracleDuration,
		m.FallbacksTotal,
		m.EscalationsTotal,
		m.CorrectionsTotal,
		m.GridBuildDuration,
		m.GridOpenVectors,
	)

	return m
}
