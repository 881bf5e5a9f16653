package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search job Prometheus metrics.
var (
	SearchJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnsearch",
			Name:      "search_jobs_total",
			Help:      "Total number of search jobs by final status",
		},
		[]string{"strategy", "status"}, // "complete" / "failed" / "cancelled" / "rejected"
	)

	SearchJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "churnsearch",
			Name:      "search_job_duration_seconds",
			Help:      "Search job duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"strategy"},
	)

	SearchJobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "churnsearch",
			Name:      "search_jobs_running",
			Help:      "Number of search jobs currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(SearchJobsTotal)
	prometheus.MustRegister(SearchJobDuration)
	prometheus.MustRegister(SearchJobsRunning)
}
