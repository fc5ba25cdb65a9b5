package classifier

import (
	"image"
	"image/color"

	"github.com/tphakala/tflitehelper/internal/errors"
)

// channels is the number of color channels in the input tensor.
const channels = 3

// InputBuffer is the model input tensor for a square image. It is allocated
// once and rewritten on every Fill.
type InputBuffer struct {
	size int
	enc  Encoding
	buf  []byte
}

// NewInputBuffer allocates an input buffer for size × size images.
func NewInputBuffer(size int, enc Encoding) *InputBuffer {
	return &InputBuffer{
		size: size,
		enc:  enc,
		buf:  make([]byte, 0, InputByteSize(size, enc)),
	}
}

// InputByteSize is the byte size of a batch of one size × size RGB image.
func InputByteSize(size int, enc Encoding) int {
	return enc.BytesPerChannel() * 1 * size * size * channels
}

// Bytes returns the encoded tensor from the last Fill.
func (b *InputBuffer) Bytes() []byte {
	return b.buf
}

// Fill encodes img in row-major order. The image must already be exactly
// size × size; resizing is the caller's job.
func (b *InputBuffer) Fill(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() != b.size || bounds.Dy() != b.size {
		return errors.Newf("image size mismatch: got %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), b.size, b.size).
			Category(errors.CategoryValidation).
			Context("width", bounds.Dx()).
			Context("height", bounds.Dy()).
			Context("input_size", b.size).
			Build()
	}

	b.buf = b.buf[:0]

	switch src := img.(type) {
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):]
			for x := range b.size {
				p := row[x*4 : x*4+4]
				b.buf = b.enc.EncodePixel(b.buf, argb(p[0], p[1], p[2], p[3]))
			}
		}
	case *image.RGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):]
			for x := range b.size {
				p := row[x*4 : x*4+4]
				b.buf = b.enc.EncodePixel(b.buf, unpremultiply(p[0], p[1], p[2], p[3]))
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				b.buf = b.enc.EncodePixel(b.buf, argb(c.R, c.G, c.B, c.A))
			}
		}
	}

	return nil
}

func argb(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// unpremultiply converts an alpha-premultiplied RGBA pixel to straight ARGB
// with the same 16-bit arithmetic as color.NRGBAModel. Channels larger than
// alpha are invalid premultiplied values and clamp to 0xff.
func unpremultiply(r, g, b, a uint8) uint32 {
	switch a {
	case 0xff:
		return argb(r, g, b, a)
	case 0:
		return 0
	}
	a16 := uint32(a) * 0x101
	scale := func(c uint8) uint8 {
		v := uint32(c) * 0x101 * 0xffff / a16
		return uint8(min(v>>8, 0xff))
	}
	return argb(scale(r), scale(g), scale(b), a)
}
