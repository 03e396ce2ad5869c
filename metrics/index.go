package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing Prometheus metrics.
var (
	IndexJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "index_jobs_total",
			Help:      "Total number of index jobs processed",
		},
		[]string{"action", "status"},
	)

	IndexPendingJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "searchsync",
			Name:      "index_pending_jobs",
			Help:      "Jobs found in the queue at the start of the last update run",
		},
	)

	IndexUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Name:      "index_update_duration_seconds",
			Help:      "Incremental index update duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	RebuildDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "rebuild_documents_total",
			Help:      "Total number of documents written by full rebuilds",
		},
		[]string{"entity_type"},
	)

	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "rebuilds_total",
			Help:      "Total number of full rebuilds",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(IndexJobsTotal, IndexPendingJobs, IndexUpdateDuration, RebuildDocumentsTotal, RebuildsTotal)
}
