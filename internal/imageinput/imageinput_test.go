package imageinput

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tflitehelper/internal/errors"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	img, format, err := DecodeBytes(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := DecodeBytes(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryImageDecode))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, image.NewGray(image.Rect(0, 0, 8, 8))), 0o600))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  image.Image
	}{
		{"downscale", image.NewRGBA(image.Rect(0, 0, 640, 480))},
		{"upscale", image.NewGray(image.Rect(0, 0, 10, 20))},
		{"offset bounds", image.NewNRGBA(image.Rect(5, 5, 229, 229))},
		{"already fits", image.NewNRGBA(image.Rect(0, 0, 224, 224))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Fit(tt.src, 224)
			assert.Equal(t, image.Rect(0, 0, 224, 224), out.Bounds())
		})
	}
}

func TestFitKeepsColor(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			src.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	out := FitWith(src, 2, resize.NearestNeighbor)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, out.NRGBAAt(1, 1))
}

func TestIsSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSupported("cat.JPG"))
	assert.True(t, IsSupported("/tmp/a.webp"))
	assert.False(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("noext"))
}
