package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"service", "method", "route", "status"},
	)

	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)

	requestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)
)

// Metrics records request count, latency and in-flight gauge per route.
// Unrouted requests are collapsed into a single "unmatched" label to keep
// cardinality bounded.
func Metrics(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestsInFlight.Inc()
		start := time.Now()

		c.Next()

		requestsInFlight.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		requestCount.WithLabelValues(serviceName, method, route, status).Inc()
		requestLatency.WithLabelValues(serviceName, method, route, status).Observe(time.Since(start).Seconds())
	}
}
