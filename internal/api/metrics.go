package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	classifyLookupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classify_lookup_count",
			Help: "Total number of classification lookups served",
		},
		[]string{"result"}, // result: hit, miss
	)
)

func recordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func incrementClassifyLookup(result string, n int) {
	classifyLookupCount.WithLabelValues(result).Add(float64(n))
}
