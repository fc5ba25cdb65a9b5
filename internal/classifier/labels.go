package classifier

import (
	"bufio"
	"io"
	"os"

	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// maxLabelLineLength caps a single label line.
const maxLabelLineLength = 64 * 1024

// LoadLabels reads the label file at path, one label per line.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "open_label_file").
			Build()
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			GetLogger().Warn("failed to close label file", logger.Error(closeErr))
		}
	}()

	labels, err := ReadLabels(file)
	if err != nil {
		return nil, err
	}

	GetLogger().Debug("labels loaded",
		logger.String("path", path),
		logger.Int("count", len(labels)))
	return labels, nil
}

// ReadLabels reads labels from r, one per line, keeping file order and
// empty lines. Both LF and CRLF line endings are accepted.
func ReadLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLabelLineLength)
	for scanner.Scan() {
		labels = append(labels, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryLabelLoad).
			Context("labels_read", len(labels)).
			Build()
	}
	if labels == nil {
		labels = []string{}
	}
	return labels, nil
}
