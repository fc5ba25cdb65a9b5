// Package metrics provides custom Prometheus metrics for tflitehelper.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/tflitehelper/internal/errors"
)

// ClassifierMetrics contains all Prometheus metrics related to classification.
type ClassifierMetrics struct {
	ClassifyDuration *prometheus.HistogramVec
	InvokeDuration   *prometheus.HistogramVec

	ClassificationsTotal *prometheus.CounterVec
	ClassifyErrors       *prometheus.CounterVec
	ModelLoadTotal       *prometheus.CounterVec
	RecognitionsTotal    *prometheus.CounterVec

	ActiveClassifiers prometheus.Gauge
}

// NewClassifierMetrics creates the classifier metrics and registers them
// with registry.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.ClassifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tflitehelper_classify_duration_seconds",
			Help:    "Time taken for a complete classification including tensor fill and ranking",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		},
		[]string{"model"},
	)

	m.InvokeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tflitehelper_invoke_duration_seconds",
			Help:    "Time taken by the interpreter to run the model",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~256ms
		},
		[]string{"model"},
	)

	m.ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tflitehelper_classifications_total",
			Help: "Total number of classification requests",
		},
		[]string{"model", "status"},
	)

	m.ClassifyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tflitehelper_classify_errors_total",
			Help: "Total number of classification errors by category",
		},
		[]string{"model", "category"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tflitehelper_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"model", "status"},
	)

	m.RecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tflitehelper_recognitions_total",
			Help: "Number of times a label was returned as the top recognition",
		},
		[]string{"label"},
	)

	m.ActiveClassifiers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tflitehelper_active_classifiers",
			Help: "Number of open classifier instances",
		},
	)
}

// RecordClassification records the outcome of one Classify call
func (m *ClassifierMetrics) RecordClassification(model string, durationSeconds float64, err error) {
	if err != nil {
		m.ClassificationsTotal.WithLabelValues(model, "error").Inc()
		m.ClassifyErrors.WithLabelValues(model, errorCategory(err)).Inc()
		return
	}
	m.ClassificationsTotal.WithLabelValues(model, "success").Inc()
	m.ClassifyDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordInvoke records the duration of one interpreter run
func (m *ClassifierMetrics) RecordInvoke(model string, durationSeconds float64) {
	m.InvokeDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordTopRecognition counts the label that ranked first
func (m *ClassifierMetrics) RecordTopRecognition(label string) {
	m.RecognitionsTotal.WithLabelValues(label).Inc()
}

// RecordModelLoad records a model load attempt and tracks open classifiers
func (m *ClassifierMetrics) RecordModelLoad(model string, err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(model, "error").Inc()
		return
	}
	m.ModelLoadTotal.WithLabelValues(model, "success").Inc()
	m.ActiveClassifiers.Inc()
}

// RecordClose marks a classifier as closed
func (m *ClassifierMetrics) RecordClose() {
	m.ActiveClassifiers.Dec()
}

func errorCategory(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClassifyDuration.Describe(ch)
	m.InvokeDuration.Describe(ch)
	m.ClassificationsTotal.Describe(ch)
	m.ClassifyErrors.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.RecognitionsTotal.Describe(ch)
	ch <- m.ActiveClassifiers.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ClassifyDuration.Collect(ch)
	m.InvokeDuration.Collect(ch)
	m.ClassificationsTotal.Collect(ch)
	m.ClassifyErrors.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.RecognitionsTotal.Collect(ch)
	ch <- m.ActiveClassifiers
}
