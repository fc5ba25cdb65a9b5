package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/tflitehelper/internal/conf"
)

func TestRootCommandWiring(t *testing.T) {
	settings := &conf.Settings{}
	settings.Classifier.ModelPath = "model.tflite"

	root := RootCommand(settings)

	for _, name := range []string{"classify", "directory", "serve", "benchmark", "labels"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	flag := root.PersistentFlags().Lookup("model")
	require.NotNil(t, flag)
	assert.Equal(t, "model.tflite", flag.DefValue)

	require.NoError(t, root.PersistentFlags().Set("threshold", "0.25"))
	assert.InDelta(t, 0.25, settings.Classifier.ConfidenceThreshold, 1e-6)
}
