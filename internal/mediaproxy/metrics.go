package mediaproxy

import "github.com/prometheus/client_golang/prometheus"

var (
	proxyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sermon_media_proxy_requests_total",
			Help: "Media proxy requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	upstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sermon_media_upstream_failures_total",
			Help: "Upstream candidates that failed, by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	bytesStreamed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sermon_media_bytes_streamed_total",
			Help: "Bytes copied from upstream to clients, by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(proxyRequests, upstreamFailures, bytesStreamed)
}
