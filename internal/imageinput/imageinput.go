// Package imageinput decodes images and scales them to the square input
// size a classifier expects.
package imageinput

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/tphakala/tflitehelper/internal/errors"
)

// Decode decodes an image in any registered format and returns it with the
// format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.New(err).
			Category(errors.CategoryImageDecode).
			Build()
	}
	return img, format, nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.Newf("empty image data").
			Category(errors.CategoryImageDecode).
			Build()
	}
	return Decode(bytes.NewReader(data))
}

// Load decodes the image file at path.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer file.Close()

	img, _, err := Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Fit stretches img to size × size, ignoring aspect ratio, and returns it
// as NRGBA.
func Fit(img image.Image, size int) *image.NRGBA {
	return FitWith(img, size, resize.Bilinear)
}

// FitWith is Fit with an explicit interpolation function.
func FitWith(img image.Image, size int, interp resize.InterpolationFunction) *image.NRGBA {
	bounds := img.Bounds()
	var scaled image.Image = img
	if bounds.Dx() != size || bounds.Dy() != size {
		scaled = resize.Resize(uint(size), uint(size), img, interp) //nolint:gosec // G115: size is a positive config value
	}

	if nrgba, ok := scaled.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}

	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return out
}

// LoadAndFit loads the image at path and fits it to size.
func LoadAndFit(path string, size int) (*image.NRGBA, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Fit(img, size), nil
}

// IsSupported reports whether the file extension is one Decode understands.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}
