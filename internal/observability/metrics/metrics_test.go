package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tflitehelper/internal/errors"
)

func TestClassifierMetricsRegisterTwiceFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewClassifierMetrics(registry)
	require.NoError(t, err)

	_, err = NewClassifierMetrics(registry)
	assert.Error(t, err)
}

func TestRecordClassification(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewClassifierMetrics(registry)
	require.NoError(t, err)

	m.RecordClassification("mobilenet", 0.012, nil)
	m.RecordClassification("mobilenet", 0.020, nil)
	m.RecordClassification("mobilenet", 0, errors.New(errors.NewStd("size mismatch")).Category(errors.CategoryValidation).Build())
	m.RecordClassification("mobilenet", 0, errors.NewStd("plain"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.ClassificationsTotal.WithLabelValues("mobilenet", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ClassificationsTotal.WithLabelValues("mobilenet", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ClassifyErrors.WithLabelValues("mobilenet", "validation")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ClassifyErrors.WithLabelValues("mobilenet", "generic")), 0)

	observer, err := m.ClassifyDuration.GetMetricWithLabelValues("mobilenet")
	require.NoError(t, err)
	metric := &dto.Metric{}
	require.NoError(t, observer.(prometheus.Metric).Write(metric))
	assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
}

func TestRecordModelLoadTracksActiveClassifiers(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewClassifierMetrics(registry)
	require.NoError(t, err)

	m.RecordModelLoad("mobilenet", nil)
	m.RecordModelLoad("mobilenet", nil)
	m.RecordModelLoad("mobilenet", errors.NewStd("missing"))
	m.RecordClose()

	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveClassifiers), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ModelLoadTotal.WithLabelValues("mobilenet", "error")), 0)
}

func TestRecognitionCounterExposition(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewClassifierMetrics(registry)
	require.NoError(t, err)

	m.RecordTopRecognition("tabby")
	m.RecordTopRecognition("tabby")

	expected := `
# HELP tflitehelper_recognitions_total Number of times a label was returned as the top recognition
# TYPE tflitehelper_recognitions_total counter
tflitehelper_recognitions_total{label="tabby"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "tflitehelper_recognitions_total"))
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	m.RecordRequest("POST", "/api/v1/classify", 200, 0.05)
	m.RecordRequest("POST", "/api/v1/classify", 400, 0.001)
	m.RecordRateLimited()
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/api/v1/classify", "400")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheHits.WithLabelValues("miss")), 0)
}
