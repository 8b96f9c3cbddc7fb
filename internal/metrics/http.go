package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP subsystem metrics for the metrics endpoint itself
var (
	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal tracks total HTTP requests by handler, method, status
	HTTPRequestsTotal *prometheus.CounterVec
)

// initHTTPMetrics initializes all HTTP subsystem metrics
func initHTTPMetrics() {
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirscrub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: APIBuckets,
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestsTotal = NewCounterVec(
		"dirscrub_http_requests_total",
		"Total HTTP requests served by the dirscrub metrics endpoint.",
		[]string{"handler", "method", "status"},
	)
}

// registerHTTPMetrics registers all HTTP metrics with Prometheus
func registerHTTPMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps h so every request is counted and timed under name
func instrument(name string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		HTTPRequestDuration.WithLabelValues(name, r.Method, status).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(name, r.Method, status).Inc()
	})
}
