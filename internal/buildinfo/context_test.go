package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", New("", ""), UnknownValue, UnknownValue},
		{"populated", New("v1.2.0", "2026-10-01"), "v1.2.0", "2026-10-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.buildDate, tt.ctx.GetBuildDate())
			assert.Equal(t, "tflitehelper@"+tt.version, tt.ctx.Release())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	s := New("v1.2.0", "2026-10-01").String()
	assert.True(t, strings.HasPrefix(s, "v1.2.0 (built 2026-10-01, "), s)
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}
