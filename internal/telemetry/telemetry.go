// Package telemetry wires Prometheus metrics and a shared zap logger
// through the engine, the embed coordinator, and the decay worker.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every metric the engine emits. It is constructed
// once and passed by reference to Engine/Coordinator/Decay — there is no
// package-level registry use beyond the default one.
type Collector struct {
	Logger *zap.Logger

	AddsTotal        *prometheus.CounterVec
	QueriesTotal     *prometheus.CounterVec
	EmbedFailures    *prometheus.CounterVec
	EmbedLatency     *prometheus.HistogramVec
	QueryLatency     prometheus.Histogram
	DecayRuns        prometheus.Counter
	DecayDuration    prometheus.Histogram
	MemoriesBySector *prometheus.GaugeVec
	WaypointsPruned  prometheus.Counter
	ColdCompressions prometheus.Counter
}

// New builds a Collector registered against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the
// global default registry.
func New(reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	return &Collector{
		Logger: logger,
		AddsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openmemory_adds_total",
			Help: "Total number of add operations, by outcome.",
		}, []string{"outcome"}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openmemory_queries_total",
			Help: "Total number of query operations, by outcome.",
		}, []string{"outcome"}),
		EmbedFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openmemory_embed_failures_total",
			Help: "Embedding failures by sector and provider.",
		}, []string{"sector", "provider"}),
		EmbedLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openmemory_embed_latency_seconds",
			Help:    "Per-sector embedding call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sector", "provider"}),
		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "openmemory_query_latency_seconds",
			Help:    "End-to-end query latency.",
			Buckets: prometheus.DefBuckets,
		}),
		DecayRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "openmemory_decay_runs_total",
			Help: "Number of completed decay worker cycles.",
		}),
		DecayDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "openmemory_decay_duration_seconds",
			Help:    "Duration of each decay worker cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		MemoriesBySector: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "openmemory_memories_by_sector",
			Help: "Current memory count per primary sector.",
		}, []string{"sector"}),
		WaypointsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "openmemory_waypoints_pruned_total",
			Help: "Total waypoint edges removed by pruning.",
		}),
		ColdCompressions: factory.NewCounter(prometheus.CounterOpts{
			Name: "openmemory_cold_compressions_total",
			Help: "Total memories fingerprinted into the cold tier.",
		}),
	}
}

// NewNop returns a Collector registered against a private registry,
// for callers (tests, and components constructed with a nil Collector)
// that want the instrumentation calls to be safe no-ops on top of real
// Collector plumbing.
func NewNop() *Collector {
	return New(prometheus.NewRegistry(), zap.NewNop())
}
