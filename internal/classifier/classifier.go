// Package classifier implements image classification on top of a model
// interpreter: pixel encoding, inference and top-K label ranking.
package classifier

import (
	"image"
	"sync"
	"time"

	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
	"github.com/tphakala/tflitehelper/internal/observability/metrics"
)

// Defaults for a MobileNet style model.
const (
	DefaultInputSize           = 224
	DefaultNumberOfResults     = 3
	DefaultConfidenceThreshold = 0.1
)

// ErrClosed is returned by Classify after Close.
var ErrClosed = errors.NewStd("classifier is closed")

// Config holds the immutable classification parameters.
type Config struct {
	Variant             Variant
	InputSize           int     // width and height of the input image
	NumberOfResults     int     // maximum recognitions per image
	ConfidenceThreshold float32 // recognitions must score strictly above this
}

// DefaultConfig returns the defaults for a quantized MobileNet.
func DefaultConfig() Config {
	return Config{
		Variant:             Quantized,
		InputSize:           DefaultInputSize,
		NumberOfResults:     DefaultNumberOfResults,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

type options struct {
	metrics   *metrics.ClassifierMetrics
	modelName string
}

// Option configures a Classifier.
type Option func(*options)

// WithMetrics records classification metrics to m.
func WithMetrics(m *metrics.ClassifierMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithModelName sets the model label used in logs and metrics.
func WithModelName(name string) Option {
	return func(o *options) { o.modelName = name }
}

// Classifier is the classification pipeline. Calls to Classify are
// serialized since they share the tensor buffers.
type Classifier struct {
	config Config
	enc    Encoding
	interp Interpreter
	labels []string
	input  *InputBuffer
	output []byte
	opts   options

	mu     sync.Mutex
	closed bool
}

// New creates a classifier around interp. The classifier owns interp and
// closes it on Close.
func New(cfg Config, interp Interpreter, labels []string, opts ...Option) (*Classifier, error) {
	o := options{modelName: "model"}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.InputSize <= 0 || cfg.NumberOfResults <= 0 {
		return nil, errors.Newf("invalid classifier config: input size %d, number of results %d",
			cfg.InputSize, cfg.NumberOfResults).
			Category(errors.CategoryValidation).
			Build()
	}

	enc, err := EncodingFor(cfg.Variant)
	if err != nil {
		return nil, err
	}

	input := NewInputBuffer(cfg.InputSize, enc)
	if want, got := InputByteSize(cfg.InputSize, enc), interp.Input().ByteSize; want != got {
		return nil, errors.Newf("input tensor size mismatch: model expects %d bytes, %s %dx%d image encodes to %d",
			got, cfg.Variant, cfg.InputSize, cfg.InputSize, want).
			Category(errors.CategoryValidation).
			Context("input_shape", interp.Input().Shape).
			Build()
	}

	outputSize := interp.Output().ByteSize
	if outputSize <= 0 || outputSize%enc.BytesPerChannel() != 0 {
		return nil, errors.Newf("output tensor size %d is not a %s score vector", outputSize, cfg.Variant).
			Category(errors.CategoryValidation).
			Context("output_shape", interp.Output().Shape).
			Build()
	}

	c := &Classifier{
		config: cfg,
		enc:    enc,
		interp: interp,
		labels: labels,
		input:  input,
		output: make([]byte, outputSize),
		opts:   o,
	}

	if o.metrics != nil {
		o.metrics.RecordModelLoad(o.modelName, nil)
	}

	if width := OutputWidth(enc, c.output); width != len(labels) {
		GetLogger().Warn("label count does not match model output width",
			logger.String("model", o.modelName),
			logger.Int("labels", len(labels)),
			logger.Int("output_width", width))
	}

	return c, nil
}

// Config returns the classifier configuration.
func (c *Classifier) Config() Config {
	return c.config
}

// ModelName returns the name used in logs and metrics.
func (c *Classifier) ModelName() string {
	return c.opts.modelName
}

// Labels returns a copy of the label list.
func (c *Classifier) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Classify encodes img, runs the model and returns the ranked
// recognitions. img must be exactly InputSize × InputSize.
func (c *Classifier) Classify(img image.Image) ([]Recognition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New(ErrClosed).
			Category(errors.CategoryState).
			Context("model", c.opts.modelName).
			Build()
	}

	start := time.Now()
	results, err := c.classifyLocked(img)
	c.record(time.Since(start), results, err)
	return results, err
}

func (c *Classifier) classifyLocked(img image.Image) ([]Recognition, error) {
	if err := c.input.Fill(img); err != nil {
		return nil, err
	}

	invokeStart := time.Now()
	if err := c.interp.Run(c.input.Bytes(), c.output); err != nil {
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, errors.New(err).
			Category(errors.CategoryInference).
			Context("model", c.opts.modelName).
			Timing("invoke", time.Since(invokeStart)).
			Build()
	}
	if c.opts.metrics != nil {
		c.opts.metrics.RecordInvoke(c.opts.modelName, time.Since(invokeStart).Seconds())
	}

	return Rank(c.labels, c.enc, c.output, c.config.NumberOfResults, c.config.ConfidenceThreshold), nil
}

func (c *Classifier) record(elapsed time.Duration, results []Recognition, err error) {
	if c.opts.metrics != nil {
		c.opts.metrics.RecordClassification(c.opts.modelName, elapsed.Seconds(), err)
		if len(results) > 0 {
			c.opts.metrics.RecordTopRecognition(results[0].Name)
		}
	}

	if err != nil {
		GetLogger().Debug("classification failed",
			logger.String("model", c.opts.modelName),
			logger.Error(err))
		return
	}
	GetLogger().Trace("classification complete",
		logger.String("model", c.opts.modelName),
		logger.Int("results", len(results)),
		logger.Duration("elapsed", elapsed))
}

// Close releases the interpreter and the model. Calling it more than once
// is safe; Classify fails with ErrClosed afterwards.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.labels = nil

	if c.opts.metrics != nil {
		c.opts.metrics.RecordClose()
	}

	if err := c.interp.Close(); err != nil {
		return errors.New(err).
			Category(errors.CategoryModelInit).
			Context("model", c.opts.modelName).
			Context("operation", "close").
			Build()
	}
	return nil
}
