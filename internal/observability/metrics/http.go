package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the classification API
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	cacheHits       *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers HTTP metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tflitehelper_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tflitehelper_http_request_duration_seconds",
				Help:    "Time taken for HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tflitehelper_http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tflitehelper_http_result_cache_total",
				Help: "Result cache lookups partitioned by outcome",
			},
			[]string{"result"},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// RecordRequest records one handled request
func (m *HTTPMetrics) RecordRequest(method, path string, status int, durationSeconds float64) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordRateLimited counts a rejected request
func (m *HTTPMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// RecordCacheLookup counts a result cache hit or miss
func (m *HTTPMetrics) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheHits.WithLabelValues("hit").Inc()
		return
	}
	m.cacheHits.WithLabelValues("miss").Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	ch <- m.rateLimited.Desc()
	m.cacheHits.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	ch <- m.rateLimited
	m.cacheHits.Collect(ch)
}
