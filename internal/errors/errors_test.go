package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderContext(t *testing.T) {
	t.Parallel()

	ee := Newf("model %s missing", "x").
		Component("classifier").
		Category(CategoryModelLoad).
		ModelContext("/models/mobilenet_v1_1.0_224_quant.tflite", "tflite").
		FileContext("/models/mobilenet_v1_1.0_224_quant.tflite", 4*1024*1024).
		Timing("model_load", 1500*time.Millisecond).
		Context("extra", 1).
		Build()

	assert.Equal(t, "classifier", ee.GetComponent())
	assert.Equal(t, "model-loading", ee.GetCategory())

	ctx := ee.GetContext()
	assert.Equal(t, "tflite", ctx["model_format"])
	assert.Equal(t, "tflite", ctx["backend"])
	assert.Equal(t, "absolute-path", ctx["file_type"])
	assert.Equal(t, "medium", ctx["file_size_category"])
	assert.Equal(t, "model_load", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	// GetContext hands out a copy
	ctx["extra"] = 2
	assert.Equal(t, 1, ee.GetContext()["extra"])
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	base := NewStd("boom")
	ee := New(base).Category(CategoryInference).Build()
	wrapped := fmt.Errorf("classify: %w", ee)

	assert.True(t, IsCategory(wrapped, CategoryInference))
	assert.False(t, IsCategory(wrapped, CategoryFileIO))
	assert.True(t, Is(wrapped, base))
	assert.False(t, IsCategory(base, CategoryInference))
	assert.False(t, IsNotFound(wrapped))
}

func TestEnhancedErrorIsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryState).Build()
	b := New(NewStd("b")).Category(CategoryState).Build()
	c := New(NewStd("c")).Category(CategoryLimit).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"model load", NewStd("failed to load model"), CategoryModelLoad},
		{"model init", NewStd("cannot create model interpreter"), CategoryModelInit},
		{"labels", NewStd("label file is empty"), CategoryLabelLoad},
		{"inference", NewStd("invoke returned status 1"), CategoryInference},
		{"file", NewStd("open foo: no such file"), CategoryFileIO},
		{"validation", NewStd("invalid input size"), CategoryValidation},
		{"enhanced", New(NewStd("x")).Category(CategoryState).Build(), CategoryState},
		{"generic", NewStd("something"), CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCategory(tt.err))
		})
	}
}

func TestReporterReceivesErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("failed to load model")).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.Equal(t, CategoryModelLoad, ee.Category)
	assert.True(t, ee.IsReported())
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{"url query", "GET https://example.com/v1?api_key=abc failed", "https://example.com/v1?[REDACTED]", "abc"},
		{"token", "auth failed token=abc123", "[SECRET_REDACTED]", "abc123"},
		{"home dir", "open /home/alice/models/m.tflite", "/home/[USER]/models", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scrubMessage(tt.input)
			assert.Contains(t, got, tt.contains)
			assert.NotContains(t, got, tt.absent)
		})
	}
}

func TestFileSizeCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tiny", categorizeFileSize(10))
	assert.Equal(t, "small", categorizeFileSize(4096))
	assert.Equal(t, "large", categorizeFileSize(50*1024*1024))
	assert.Equal(t, "very-large", categorizeFileSize(200*1024*1024))
	assert.Equal(t, "none", getFileExtension("labels"))
	assert.Equal(t, "txt", getFileExtension("labels.TXT"))
}
