package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
)

func TestOutputWidthFromInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outputs  []ort.InputOutputInfo
		output   string
		fallback int
		want     int
	}{
		{
			name:     "model width wins over label count",
			outputs:  []ort.InputOutputInfo{{Name: "output", Dimensions: ort.NewShape(1, 1001)}},
			output:   "output",
			fallback: 1000,
			want:     1001,
		},
		{
			name:     "dynamic batch dimension",
			outputs:  []ort.InputOutputInfo{{Name: "output", Dimensions: ort.NewShape(-1, 10)}},
			output:   "output",
			fallback: 3,
			want:     10,
		},
		{
			name:     "dynamic class dimension uses fallback",
			outputs:  []ort.InputOutputInfo{{Name: "output", Dimensions: ort.NewShape(1, -1)}},
			output:   "output",
			fallback: 3,
			want:     3,
		},
		{
			name: "output selected by name",
			outputs: []ort.InputOutputInfo{
				{Name: "features", Dimensions: ort.NewShape(1, 1280)},
				{Name: "logits", Dimensions: ort.NewShape(1, 5)},
			},
			output:   "logits",
			fallback: 2,
			want:     5,
		},
		{
			name:     "unknown name uses first output",
			outputs:  []ort.InputOutputInfo{{Name: "probs", Dimensions: ort.NewShape(1, 7)}},
			output:   "output",
			fallback: 2,
			want:     7,
		},
		{
			name:     "trailing dimensions are flattened",
			outputs:  []ort.InputOutputInfo{{Name: "output", Dimensions: ort.NewShape(1, 1, 1, 8)}},
			output:   "output",
			fallback: 2,
			want:     8,
		},
		{
			name:     "no outputs",
			fallback: 4,
			want:     4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, outputWidthFromInfo(tt.outputs, tt.output, tt.fallback))
		})
	}
}
