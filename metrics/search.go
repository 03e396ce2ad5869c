package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query Prometheus metrics.
var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Name:      "query_duration_seconds",
			Help:      "Search query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"status"},
	)

	HydrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Name:      "hydration_duration_seconds",
			Help:      "Time spent fetching records for search results",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	HydrationMissingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "hydration_missing_records_total",
			Help:      "Search hits whose record no longer exists",
		},
	)
)

func init() {
	prometheus.MustRegister(QueryDuration, HydrationDuration, HydrationMissingTotal)
}
