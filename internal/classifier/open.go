package classifier

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/cpuspec"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// Open loads the model and labels named in settings, builds the configured
// backend interpreter and returns an open classifier.
func Open(settings *conf.ClassifierSettings, opts ...Option) (*Classifier, error) {
	start := time.Now()

	o := options{modelName: modelName(settings.ModelPath)}
	for _, opt := range opts {
		opt(&o)
	}
	// The name derived from the path applies unless the caller set one.
	opts = append([]Option{WithModelName(o.modelName)}, opts...)

	c, err := open(settings, opts)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordModelLoad(o.modelName, err)
		}
		return nil, err
	}

	GetLogger().Info("classifier ready",
		logger.String("model", o.modelName),
		logger.String("backend", settings.Backend),
		logger.String("variant", c.config.Variant.String()),
		logger.Int("labels", len(c.labels)),
		logger.Duration("elapsed", time.Since(start)))

	return c, nil
}

func open(settings *conf.ClassifierSettings, opts []Option) (*Classifier, error) {
	variant, err := ParseVariant(settings.Variant)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Variant:             variant,
		InputSize:           settings.InputSize,
		NumberOfResults:     settings.NumberOfResults,
		ConfidenceThreshold: settings.ConfidenceThreshold,
	}

	labels, err := LoadLabels(settings.LabelPath)
	if err != nil {
		return nil, err
	}

	model, err := LoadModel(settings.ModelPath)
	if err != nil {
		return nil, err
	}

	threads := cpuspec.GetCPUSpec().ThreadsPerInstance(settings.Threads, 1)

	var interp Interpreter
	switch strings.ToLower(settings.Backend) {
	case conf.BackendTFLite, "":
		interp, err = newTFLite(model, TFLiteOptions{Threads: threads, UseXNNPACK: settings.UseXNNPACK})
	case conf.BackendONNX:
		interp, err = newONNX(model, ONNXOptions{
			LibraryPath: settings.ONNX.LibraryPath,
			InputName:   settings.ONNX.InputName,
			OutputName:  settings.ONNX.OutputName,
			Threads:     threads,
			Variant:     variant,
			InputSize:   settings.InputSize,
			OutputWidth: len(labels), // only for models with a dynamic output width
		})
	default:
		_ = model.Close()
		return nil, errors.Newf("unsupported inference backend %q", settings.Backend).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	c, err := New(cfg, interp, labels, opts...)
	if err != nil {
		if closeErr := interp.Close(); closeErr != nil {
			GetLogger().Warn("failed to release interpreter", logger.Error(closeErr))
		}
		return nil, err
	}
	return c, nil
}

// newTFLite and newONNX return the Interpreter interface so a failed
// constructor never yields a typed nil.
func newTFLite(model *Model, opts TFLiteOptions) (Interpreter, error) {
	t, err := NewTFLiteInterpreter(model, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newONNX(model *Model, opts ONNXOptions) (Interpreter, error) {
	o, err := NewONNXInterpreter(model, opts)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
