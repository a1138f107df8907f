package ticketmaster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmaster_requests_total",
			Help: "Upstream attempts by endpoint and status (\"error\" for transport failures)",
		},
		[]string{"endpoint", "status"},
	)

	upstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmaster_retries_total",
			Help: "Backoff retries issued against the upstream",
		},
		[]string{"endpoint"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketmaster_request_duration_seconds",
			Help:    "Upstream attempt latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmaster_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)
)
