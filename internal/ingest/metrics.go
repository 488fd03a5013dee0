package ingest

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sermon_ingest_cycles_total",
			Help: "Ingest cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sermon_ingest_cycle_duration_seconds",
			Help:    "Wall time of ingest cycles",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	videosIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sermon_ingest_videos_saved_total",
			Help: "Rows added to the catalog by ingest",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, cycleDuration, videosIngested)
}
