package api

import (
	"context"
	"image"

	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/errors"
)

// Classifier is the part of classifier.Classifier the API uses.
type Classifier interface {
	Classify(img image.Image) ([]classifier.Recognition, error)
	Config() classifier.Config
	Labels() []string
	ModelName() string
}

// classifierPool hands out classifiers so each one serves a single request
// at a time.
type classifierPool struct {
	idle chan Classifier
	size int
	// first is kept for metadata such as labels and input size.
	first Classifier
}

func newClassifierPool(classifiers []Classifier) (*classifierPool, error) {
	if len(classifiers) == 0 {
		return nil, errors.Newf("at least one classifier is required").
			Category(errors.CategoryConfiguration).
			Build()
	}
	p := &classifierPool{
		idle:  make(chan Classifier, len(classifiers)),
		size:  len(classifiers),
		first: classifiers[0],
	}
	for _, c := range classifiers {
		p.idle <- c
	}
	return p, nil
}

func (p *classifierPool) acquire(ctx context.Context) (Classifier, error) {
	select {
	case c := <-p.idle:
		return c, nil
	case <-ctx.Done():
		return nil, errors.New(ctx.Err()).
			Category(errors.CategoryCancellation).
			Build()
	}
}

func (p *classifierPool) release(c Classifier) {
	p.idle <- c
}

// available returns the number of idle classifiers.
func (p *classifierPool) available() int {
	return len(p.idle)
}
