package classifier

import (
	"sync"
	"unsafe"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// ONNXOptions configures the onnxruntime interpreter.
type ONNXOptions struct {
	LibraryPath string // onnxruntime shared library, empty uses the platform default
	InputName   string
	OutputName  string
	Threads     int
	Variant     Variant
	InputSize   int // the input tensor is NHWC [1, InputSize, InputSize, 3]
	// OutputWidth is used for the output tensor [1, OutputWidth] only when
	// the model declares a dynamic output dimension.
	OutputWidth int
}

// The onnxruntime environment is process wide; it is initialized with the
// first interpreter and destroyed with the last.
var (
	ortMu       sync.Mutex
	ortRefCount int
)

func acquireORTEnvironment(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefCount == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.New(err).
				Category(errors.CategoryModelInit).
				Context("backend", conf.BackendONNX).
				Context("operation", "initialize_environment").
				Build()
		}
	}
	ortRefCount++
	return nil
}

func releaseORTEnvironment() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefCount == 0 {
		return nil
	}
	ortRefCount--
	if ortRefCount == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// ortElement is the set of tensor element types the classifier uses.
type ortElement interface {
	uint8 | float32
}

type ortTensors[T ortElement] struct {
	input  *ort.Tensor[T]
	output *ort.Tensor[T]
}

func newORTTensors[T ortElement](inputShape, outputShape ort.Shape) (*ortTensors[T], error) {
	input, err := ort.NewEmptyTensor[T](inputShape)
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[T](outputShape)
	if err != nil {
		_ = input.Destroy()
		return nil, err
	}
	return &ortTensors[T]{input: input, output: output}, nil
}

func (t *ortTensors[T]) arbitrary() (in, out []ort.ArbitraryTensor) {
	return []ort.ArbitraryTensor{t.input}, []ort.ArbitraryTensor{t.output}
}

func (t *ortTensors[T]) inputBytes() []byte  { return asBytes(t.input.GetData()) }
func (t *ortTensors[T]) outputBytes() []byte { return asBytes(t.output.GetData()) }

func (t *ortTensors[T]) destroy() {
	_ = t.input.Destroy()
	_ = t.output.Destroy()
}

// asBytes views a tensor's backing array as native-order bytes.
func asBytes[T ortElement](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// tensorSet hides the element type of ortTensors.
type tensorSet interface {
	arbitrary() (in, out []ort.ArbitraryTensor)
	inputBytes() []byte
	outputBytes() []byte
	destroy()
}

// ONNXInterpreter runs an .onnx model with onnxruntime. It owns the model
// mapping and unmaps it on Close.
type ONNXInterpreter struct {
	model   *Model
	session *ort.AdvancedSession
	tensors tensorSet
	input   TensorInfo
	output  TensorInfo

	closeOnce sync.Once
	closeErr  error
}

// NewONNXInterpreter creates an onnxruntime session for model. The
// interpreter takes ownership of model, it is closed on error.
func NewONNXInterpreter(model *Model, opts ONNXOptions) (*ONNXInterpreter, error) {
	if opts.InputSize <= 0 {
		_ = model.Close()
		return nil, errors.Newf("invalid onnx input size %d", opts.InputSize).
			Category(errors.CategoryValidation).
			Build()
	}

	enc, err := EncodingFor(opts.Variant)
	if err != nil {
		_ = model.Close()
		return nil, err
	}

	if err := acquireORTEnvironment(opts.LibraryPath); err != nil {
		_ = model.Close()
		return nil, err
	}

	o := &ONNXInterpreter{model: model}
	fail := func(err error, op string) (*ONNXInterpreter, error) {
		o.release()
		return nil, errors.New(err).
			Category(errors.CategoryModelInit).
			ModelContext(model.Path(), conf.BackendONNX).
			Context("operation", op).
			Build()
	}

	_, outputs, err := ort.GetInputOutputInfoWithONNXData(model.Bytes())
	if err != nil {
		return fail(err, "read_model_io_info")
	}
	outputWidth := outputWidthFromInfo(outputs, opts.OutputName, opts.OutputWidth)
	if outputWidth <= 0 {
		o.release()
		return nil, errors.Newf("cannot determine onnx output width: model output is dynamic and no fallback width was given").
			Category(errors.CategoryValidation).
			ModelContext(model.Path(), conf.BackendONNX).
			Build()
	}

	inputShape := ort.NewShape(1, int64(opts.InputSize), int64(opts.InputSize), channels)
	outputShape := ort.NewShape(1, int64(outputWidth))

	if opts.Variant == Float {
		tensors, err := newORTTensors[float32](inputShape, outputShape)
		if err != nil {
			return fail(err, "create_tensors")
		}
		o.tensors = tensors
	} else {
		tensors, err := newORTTensors[uint8](inputShape, outputShape)
		if err != nil {
			return fail(err, "create_tensors")
		}
		o.tensors = tensors
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return fail(err, "create_session_options")
	}
	defer func() { _ = sessionOptions.Destroy() }()

	if opts.Threads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(opts.Threads); err != nil {
			return fail(err, "set_threads")
		}
	}

	in, out := o.tensors.arbitrary()
	o.session, err = ort.NewAdvancedSessionWithONNXData(model.Bytes(),
		[]string{opts.InputName}, []string{opts.OutputName},
		in, out, sessionOptions)
	if err != nil {
		return fail(err, "create_session")
	}

	o.input = TensorInfo{
		Shape:    []int{1, opts.InputSize, opts.InputSize, channels},
		ByteSize: InputByteSize(opts.InputSize, enc),
	}
	o.output = TensorInfo{
		Shape:    []int{1, outputWidth},
		ByteSize: outputWidth * enc.BytesPerChannel(),
	}

	GetLogger().Info("onnxruntime session initialized",
		logger.String("model", model.Path()),
		logger.String("variant", opts.Variant.String()),
		logger.Int("threads", opts.Threads),
		logger.Int("output_width", outputWidth))

	return o, nil
}

// outputWidthFromInfo returns the number of scores in the model output
// named name, or in the first output when no output has that name. The
// batch dimension is ignored. fallback is returned when any other
// dimension is dynamic.
func outputWidthFromInfo(outputs []ort.InputOutputInfo, name string, fallback int) int {
	if len(outputs) == 0 {
		return fallback
	}
	info := outputs[0]
	for _, out := range outputs {
		if out.Name == name {
			info = out
			break
		}
	}

	dims := info.Dimensions
	if len(dims) > 1 {
		dims = dims[1:]
	}
	if len(dims) == 0 {
		return fallback
	}
	width := int64(1)
	for _, d := range dims {
		if d <= 0 {
			return fallback
		}
		width *= d
	}
	return int(width)
}

// Input describes the input tensor.
func (o *ONNXInterpreter) Input() TensorInfo { return o.input }

// Output describes the output tensor.
func (o *ONNXInterpreter) Output() TensorInfo { return o.output }

// Run copies input into the session's input tensor, runs the session and
// copies the output tensor into output.
func (o *ONNXInterpreter) Run(input, output []byte) error {
	if len(input) != o.input.ByteSize || len(output) != o.output.ByteSize {
		return errors.Newf("tensor buffer size mismatch: input %d/%d, output %d/%d",
			len(input), o.input.ByteSize, len(output), o.output.ByteSize).
			Category(errors.CategoryValidation).
			Build()
	}

	copy(o.tensors.inputBytes(), input)
	if err := o.session.Run(); err != nil {
		return errors.New(err).
			Category(errors.CategoryInference).
			ModelContext(o.model.Path(), conf.BackendONNX).
			Build()
	}
	copy(output, o.tensors.outputBytes())
	return nil
}

// Close destroys the session and its tensors and unmaps the model. Calling
// it more than once is safe.
func (o *ONNXInterpreter) Close() error {
	o.closeOnce.Do(func() {
		o.closeErr = o.release()
	})
	return o.closeErr
}

func (o *ONNXInterpreter) release() error {
	var errs []error
	if o.session != nil {
		if err := o.session.Destroy(); err != nil {
			errs = append(errs, err)
		}
		o.session = nil
	}
	if o.tensors != nil {
		o.tensors.destroy()
		o.tensors = nil
	}
	if err := releaseORTEnvironment(); err != nil {
		errs = append(errs, err)
	}
	if err := o.model.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
