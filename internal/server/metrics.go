package server

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sermon_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds, by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	videosTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sermon_catalog_videos_total",
		Help: "Total number of videos in the catalog",
	})

	viewCountFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sermon_view_count_failures_total",
		Help: "View-count updates that failed",
	})
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(videosTotal)
	prometheus.MustRegister(viewCountFailures)
}

// UpdateVideoCount updates the catalog size gauge
func UpdateVideoCount(count int64) {
	videosTotal.Set(float64(count))
}
