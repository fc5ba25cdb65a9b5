package classifier

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/tphakala/tflitehelper/internal/errors"
)

// Variant selects how pixels are encoded into the input tensor and how raw
// output scores are normalized.
type Variant int

const (
	// Quantized models take raw 8-bit RGB and emit uint8 scores.
	Quantized Variant = iota
	// Float models take RGB scaled to [0,1] and emit float32 scores.
	Float
)

func (v Variant) String() string {
	switch v {
	case Quantized:
		return "quantized"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant converts a configuration value into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quantized", "quant", "uint8":
		return Quantized, nil
	case "float", "float32":
		return Float, nil
	default:
		return 0, errors.Newf("invalid model variant %q", s).
			Category(errors.CategoryValidation).
			Context("variant", s).
			Build()
	}
}

// Encoding is the per-variant strategy shared by the input builder and the
// ranker. It is selected once when a classifier is constructed.
type Encoding interface {
	Variant() Variant
	// BytesPerChannel is the size of one encoded color channel.
	BytesPerChannel() int
	// EncodePixel appends the encoding of one ARGB pixel to dst.
	EncodePixel(dst []byte, argb uint32) []byte
	// Normalize returns the confidence stored at output index i.
	Normalize(raw []byte, i int) float32
}

// EncodingFor returns the encoding strategy for v.
func EncodingFor(v Variant) (Encoding, error) {
	switch v {
	case Quantized:
		return quantizedEncoding{}, nil
	case Float:
		return floatEncoding{}, nil
	default:
		return nil, errors.Newf("unsupported model variant %s", v).
			Category(errors.CategoryValidation).
			Build()
	}
}

// OutputWidth returns the number of scores held in raw.
func OutputWidth(enc Encoding, raw []byte) int {
	return len(raw) / enc.BytesPerChannel()
}

type quantizedEncoding struct{}

func (quantizedEncoding) Variant() Variant     { return Quantized }
func (quantizedEncoding) BytesPerChannel() int { return 1 }

func (quantizedEncoding) EncodePixel(dst []byte, argb uint32) []byte {
	return append(dst, byte(argb>>16), byte(argb>>8), byte(argb))
}

func (quantizedEncoding) Normalize(raw []byte, i int) float32 {
	return float32(raw[i]) / 255.0
}

type floatEncoding struct{}

func (floatEncoding) Variant() Variant     { return Float }
func (floatEncoding) BytesPerChannel() int { return 4 }

func (floatEncoding) EncodePixel(dst []byte, argb uint32) []byte {
	dst = binary.NativeEndian.AppendUint32(dst, math.Float32bits(float32(byte(argb>>16))/255.0))
	dst = binary.NativeEndian.AppendUint32(dst, math.Float32bits(float32(byte(argb>>8))/255.0))
	return binary.NativeEndian.AppendUint32(dst, math.Float32bits(float32(byte(argb))/255.0))
}

// Normalize returns the raw score unchanged, the model is trusted to emit
// values in [0,1].
func (floatEncoding) Normalize(raw []byte, i int) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(raw[i*4:]))
}
