package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetPerformanceRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ms   float64
		want string
	}{
		{2000, "❌ Failed"},
		{600, "❌ Very Poor"},
		{250, "⚠️ Poor"},
		{150, "👍 Decent"},
		{60, "✨ Good"},
		{30, "🌟 Very Good"},
		{10, "🏆 Excellent"},
		{1, "🚀 Superb"},
	}

	for _, tt := range tests {
		rating, description := getPerformanceRating(tt.ms)
		assert.Equal(t, tt.want, rating, "%.0f ms", tt.ms)
		assert.NotEmpty(t, description)
	}
}

func TestAverage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Duration(0), average(time.Second, 0))
	assert.Equal(t, 250*time.Millisecond, average(time.Second, 4))
	assert.InDelta(t, 1.5, milliseconds(1500*time.Microsecond), 1e-9)
}

func TestTestImage(t *testing.T) {
	t.Parallel()

	img := testImage(8)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), img.NRGBAAt(7, 7).G)

	single := testImage(1)
	assert.Equal(t, 1, single.Bounds().Dx())
}
