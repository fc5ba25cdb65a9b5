package analysis

import (
	"image"
	"os"
	"time"

	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/imageinput"
)

// ImageClassifier is the part of classifier.Classifier used here.
type ImageClassifier interface {
	Classify(img image.Image) ([]classifier.Recognition, error)
	Config() classifier.Config
	Close() error
}

// Factory creates one classifier per worker.
type Factory func() (ImageClassifier, error)

// Result is the outcome of classifying one file.
type Result struct {
	Path         string
	Recognitions []classifier.Recognition
	Elapsed      time.Duration
	Err          error
}

// ErrorMessage returns the failure message or an empty string.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ClassifyFile loads the image at path, fits it to the classifier input
// size and classifies it.
func ClassifyFile(c ImageClassifier, path string) Result {
	start := time.Now()
	result := Result{Path: path}

	if err := validateImageFile(path); err != nil {
		result.Err = err
		return result
	}

	img, err := imageinput.LoadAndFit(path, c.Config().InputSize)
	if err != nil {
		result.Err = err
		return result
	}

	result.Recognitions, result.Err = c.Classify(img)
	result.Elapsed = time.Since(start)
	return result
}

// validateImageFile checks that path is a non-empty regular file.
func validateImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	if info.IsDir() {
		return errors.Newf("%s is a directory, not a file", path).
			Category(errors.CategoryValidation).
			Build()
	}
	if info.Size() == 0 {
		return errors.Newf("file %s is empty", path).
			Category(errors.CategoryValidation).
			FileContext(path, 0).
			Build()
	}
	return nil
}
