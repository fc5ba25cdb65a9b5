package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/observability/metrics"
)

func writeFixtures(t *testing.T) (modelPath, labelPath string) {
	t.Helper()
	dir := t.TempDir()
	modelPath = filepath.Join(dir, "mobilenet_v1.tflite")
	labelPath = filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(modelPath, []byte("model"), 0o600))
	require.NoError(t, os.WriteFile(labelPath, []byte("background\ncat\n"), 0o600))
	return modelPath, labelPath
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	modelPath, labelPath := writeFixtures(t)

	tests := []struct {
		name     string
		mutate   func(s *conf.ClassifierSettings)
		category errors.ErrorCategory
	}{
		{"bad variant", func(s *conf.ClassifierSettings) { s.Variant = "int4" }, errors.CategoryValidation},
		{"missing labels", func(s *conf.ClassifierSettings) { s.LabelPath += ".missing" }, errors.CategoryFileIO},
		{"missing model", func(s *conf.ClassifierSettings) { s.ModelPath += ".missing" }, errors.CategoryFileIO},
		{"unknown backend", func(s *conf.ClassifierSettings) { s.Backend = "coreml" }, errors.CategoryConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			settings := conf.ClassifierSettings{
				Backend:             conf.BackendTFLite,
				Variant:             conf.VariantQuantized,
				ModelPath:           modelPath,
				LabelPath:           labelPath,
				InputSize:           224,
				NumberOfResults:     3,
				ConfidenceThreshold: 0.1,
			}
			tt.mutate(&settings)

			c, err := Open(&settings)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestOpenRecordsFailedLoad(t *testing.T) {
	t.Parallel()

	modelPath, labelPath := writeFixtures(t)
	registry := prometheus.NewRegistry()
	m, err := metrics.NewClassifierMetrics(registry)
	require.NoError(t, err)

	settings := conf.ClassifierSettings{
		Backend:   "coreml",
		Variant:   conf.VariantQuantized,
		ModelPath: modelPath,
		LabelPath: labelPath,
	}
	_, err = Open(&settings, WithMetrics(m))
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ModelLoadTotal.WithLabelValues("mobilenet_v1", "error")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveClassifiers), 0)
}

func TestModelName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mobilenet_v1_1.0_224_quant", modelName("/models/mobilenet_v1_1.0_224_quant.tflite"))
	assert.Equal(t, "model", modelName("model.onnx"))
}
