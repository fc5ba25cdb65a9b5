package classifier

// TensorInfo describes one model tensor.
type TensorInfo struct {
	Shape    []int
	ByteSize int
}

// Interpreter runs a loaded model. Run reads the encoded input tensor and
// writes the raw output scores into output; both slices must be exactly the
// byte sizes reported by Input and Output.
type Interpreter interface {
	Input() TensorInfo
	Output() TensorInfo
	Run(input, output []byte) error
	Close() error
}
