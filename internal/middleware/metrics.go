package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRateLimitRequests     = "whatnow_rate_limit_requests_total"
	MetricRateLimitBlocked      = "whatnow_rate_limit_blocked_total"
	MetricHTTPRequestDuration   = "whatnow_http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "whatnow_http_requests_total"
	MetricHTTPResponseSizeBytes = "whatnow_http_response_size_bytes"
)

// unmatchedRoute labels requests the mux did not route, keeping path
// cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics contains Prometheus metrics for the HTTP layer.
// All operations are thread-safe.
type Metrics struct {
	rateLimitRequests   *prometheus.CounterVec
	rateLimitBlocked    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpResponseSize    *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors; call Register to expose them.
func NewMetrics() *Metrics {
	labels := []string{"method", "route", "status"}
	return &Metrics{
		rateLimitRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitRequests,
			Help: "Total number of rate limit checks by path",
		}, []string{"path"}),
		rateLimitBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitBlocked,
			Help: "Total number of requests rejected by the rate limiter by path",
		}, []string{"path"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, labels),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "Total number of HTTP requests",
		}, labels),
		httpResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPResponseSizeBytes,
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, labels),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpResponseSize,
	}
}

// IncRateLimitRequests counts a rate limit check.
func (m *Metrics) IncRateLimitRequests(path string) {
	m.rateLimitRequests.WithLabelValues(path).Inc()
}

// IncRateLimitBlocked counts a rejected request.
func (m *Metrics) IncRateLimitBlocked(path string) {
	m.rateLimitBlocked.WithLabelValues(path).Inc()
}

// ObserveHTTPRequest records one completed request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration, responseSize int) {
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	m.httpRequestDuration.With(labels).Observe(elapsed.Seconds())
	m.httpRequestsTotal.With(labels).Inc()
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// HTTPMetrics records request metrics labelled by the mux route pattern.
// It must wrap the *http.ServeMux directly so the pattern is visible
// after routing. /health and /metrics are not recorded.
func HTTPMetrics(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			m.ObserveHTTPRequest(r.Method, route, rw.statusCode, time.Since(start), rw.size)
		})
	}
}
