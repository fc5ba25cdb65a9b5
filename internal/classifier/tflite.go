package classifier

import (
	"fmt"
	"sync"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// TFLiteOptions configures the TensorFlow Lite interpreter.
type TFLiteOptions struct {
	Threads    int  // interpreter threads, at least 1
	UseXNNPACK bool // run through the XNNPACK delegate
}

// TFLiteInterpreter runs a .tflite model with go-tflite. It owns the model
// mapping and unmaps it on Close.
type TFLiteInterpreter struct {
	model       *Model
	tfModel     *tflite.Model
	options     *tflite.InterpreterOptions
	delegate    interface{ Delete() }
	interpreter *tflite.Interpreter
	input       *tflite.Tensor
	output      *tflite.Tensor

	closeOnce sync.Once
}

// NewTFLiteInterpreter builds an interpreter for model and allocates its
// tensors. The interpreter takes ownership of model, it is closed on error.
func NewTFLiteInterpreter(model *Model, opts TFLiteOptions) (*TFLiteInterpreter, error) {
	log := GetLogger()
	threads := max(opts.Threads, 1)

	tfModel := tflite.NewModel(model.Bytes())
	if tfModel == nil {
		_ = model.Close()
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Category(errors.CategoryModelInit).
			ModelContext(model.Path(), conf.BackendTFLite).
			Context("model_size_mb", model.Size()/1024/1024).
			Build()
	}

	t := &TFLiteInterpreter{model: model, tfModel: tfModel}
	t.options = tflite.NewInterpreterOptions()

	if opts.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			t.options.SetNumThread(threads)
		} else {
			t.options.AddDelegate(delegate)
			t.options.SetNumThread(1)
			t.delegate = delegate
		}
	} else {
		t.options.SetNumThread(threads)
	}

	t.options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	t.interpreter = tflite.NewInterpreter(tfModel, t.options)
	if t.interpreter == nil {
		t.release()
		return nil, errors.Newf("cannot create interpreter").
			Category(errors.CategoryModelInit).
			ModelContext(model.Path(), conf.BackendTFLite).
			Build()
	}
	if status := t.interpreter.AllocateTensors(); status != tflite.OK {
		t.release()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Category(errors.CategoryModelInit).
			ModelContext(model.Path(), conf.BackendTFLite).
			Build()
	}

	t.input = t.interpreter.GetInputTensor(0)
	t.output = t.interpreter.GetOutputTensor(0)
	if t.input == nil || t.output == nil {
		t.release()
		return nil, errors.Newf("model has no input or output tensor").
			Category(errors.CategoryModelInit).
			ModelContext(model.Path(), conf.BackendTFLite).
			Build()
	}

	log.Info("TensorFlow Lite interpreter initialized",
		logger.String("model", model.Path()),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", t.delegate != nil),
		logger.Any("input_shape", tensorShape(t.input)),
		logger.Any("output_shape", tensorShape(t.output)))

	return t, nil
}

// Input describes the first input tensor.
func (t *TFLiteInterpreter) Input() TensorInfo {
	return TensorInfo{Shape: tensorShape(t.input), ByteSize: int(t.input.ByteSize())} //nolint:gosec // G115: tensor sizes fit in int
}

// Output describes the first output tensor.
func (t *TFLiteInterpreter) Output() TensorInfo {
	return TensorInfo{Shape: tensorShape(t.output), ByteSize: int(t.output.ByteSize())} //nolint:gosec // G115: tensor sizes fit in int
}

// Run copies input into the input tensor, invokes the model and copies the
// first output tensor into output.
func (t *TFLiteInterpreter) Run(input, output []byte) error {
	if len(input) != int(t.input.ByteSize()) || len(output) != int(t.output.ByteSize()) { //nolint:gosec // G115: tensor sizes fit in int
		return errors.Newf("tensor buffer size mismatch: input %d/%d, output %d/%d",
			len(input), t.input.ByteSize(), len(output), t.output.ByteSize()).
			Category(errors.CategoryValidation).
			Build()
	}

	if status := t.input.CopyFromBuffer(input); status != tflite.OK {
		return errors.Newf("failed to copy input tensor: %v", status).
			Category(errors.CategoryInference).
			Build()
	}
	if status := t.interpreter.Invoke(); status != tflite.OK {
		return errors.Newf("tensor invoke failed: %v", status).
			Category(errors.CategoryInference).
			ModelContext(t.model.Path(), conf.BackendTFLite).
			Build()
	}
	if status := t.output.CopyToBuffer(output); status != tflite.OK {
		return errors.Newf("failed to copy output tensor: %v", status).
			Category(errors.CategoryInference).
			Build()
	}
	return nil
}

// Close releases the interpreter and unmaps the model. Calling it more than
// once is safe.
func (t *TFLiteInterpreter) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.release()
	})
	return err
}

// release frees native resources in reverse creation order.
func (t *TFLiteInterpreter) release() error {
	if t.interpreter != nil {
		t.interpreter.Delete()
		t.interpreter = nil
	}
	if t.delegate != nil {
		t.delegate.Delete()
		t.delegate = nil
	}
	if t.options != nil {
		t.options.Delete()
		t.options = nil
	}
	if t.tfModel != nil {
		t.tfModel.Delete()
		t.tfModel = nil
	}
	if err := t.model.Close(); err != nil {
		return fmt.Errorf("closing model: %w", err)
	}
	return nil
}

func tensorShape(t *tflite.Tensor) []int {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}
	return shape
}
