package classifier

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// Model is a read-only memory mapping of a model file. The mapping must
// outlive any interpreter built from it.
type Model struct {
	path string
	data mmap.MMap

	closeOnce sync.Once
	closeErr  error
}

// LoadModel maps the model file at path read-only.
func LoadModel(path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "open_model_file").
			Build()
	}
	// The mapping stays valid after the descriptor is closed.
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			GetLogger().Warn("failed to close model file", logger.Error(closeErr))
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "stat_model_file").
			Build()
	}
	if info.Size() == 0 {
		return nil, errors.Newf("model file %s is empty", path).
			Category(errors.CategoryModelLoad).
			FileContext(path, 0).
			Build()
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryModelLoad).
			FileContext(path, info.Size()).
			Context("operation", "mmap_model_file").
			Build()
	}

	GetLogger().Debug("model mapped",
		logger.String("path", path),
		logger.Int64("size", info.Size()))

	return &Model{path: path, data: data}, nil
}

// Path returns the file the model was loaded from.
func (m *Model) Path() string {
	return m.path
}

// Bytes returns the mapped model. The slice is invalid after Close.
func (m *Model) Bytes() []byte {
	return m.data
}

// Size returns the model size in bytes.
func (m *Model) Size() int {
	return len(m.data)
}

// Close unmaps the model. Calling it more than once is safe.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		if err := m.data.Unmap(); err != nil {
			m.closeErr = errors.New(err).
				Category(errors.CategoryModelLoad).
				Context("operation", "unmap_model_file").
				Build()
		}
		m.data = nil
	})
	return m.closeErr
}
