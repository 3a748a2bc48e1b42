package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsapi_pages_fetched_total",
		Help: "Total query pages fetched, including first pages",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wsapi_fetch_duration_seconds",
		Help:    "Duration of complete paged fetches in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	fetchWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsapi_fetch_workers",
		Help: "Worker count used by the most recent parallel page fetch",
	})
)
