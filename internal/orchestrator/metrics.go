package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds the Prometheus metrics owned by the orchestrator.
type pipelineMetrics struct {
	// stageDurationSeconds records how long each ask stage took.
	stageDurationSeconds *prometheus.HistogramVec

	// askTotal counts completed asks by error code ("ok" on success).
	askTotal *prometheus.CounterVec

	// ingestChunksTotal counts ingested chunks by result: written or failed.
	ingestChunksTotal *prometheus.CounterVec

	// reindexTotal counts reindex runs by outcome.
	reindexTotal *prometheus.CounterVec
}

func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "ask",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ask stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		askTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of asks, partitioned by result code.",
		}, []string{"code"}),

		ingestChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks processed by ingestion, partitioned by result.",
		}, []string{"result"}),

		reindexTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "reindex",
			Name:      "runs_total",
			Help:      "Total number of reindex runs, partitioned by outcome.",
		}, []string{"outcome"}),
	}
}
