package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	c := settings.Classifier
	assert.Equal(t, BackendTFLite, c.Backend)
	assert.Equal(t, VariantQuantized, c.Variant)
	assert.Equal(t, DefaultModelPath, c.ModelPath)
	assert.Equal(t, DefaultLabelPath, c.LabelPath)
	assert.Equal(t, DefaultInputSize, c.InputSize)
	assert.Equal(t, DefaultNumberOfResults, c.NumberOfResults)
	assert.InDelta(t, DefaultConfidenceThreshold, c.ConfidenceThreshold, 1e-6)
	assert.Equal(t, "input", c.ONNX.InputName)
	assert.Equal(t, "output", c.ONNX.OutputName)

	assert.Equal(t, "127.0.0.1:8080", settings.WebServer.Listen)
	assert.Equal(t, 5*time.Minute, settings.WebServer.CacheTTL)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)

	// The generated file must load back to the same settings
	reloaded, err := load(viper.New(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, settings.Classifier, reloaded.Classifier)
	assert.Equal(t, settings.WebServer, reloaded.WebServer)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := `
classifier:
  backend: ONNX
  variant: Float
  modelpath: model.onnx
  inputsize: 299
  numberofresults: 5
  confidencethreshold: 0.25
webserver:
  cachettl: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o600))

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)

	c := settings.Classifier
	assert.Equal(t, BackendONNX, c.Backend)
	assert.Equal(t, VariantFloat, c.Variant)
	assert.Equal(t, "model.onnx", c.ModelPath)
	assert.Equal(t, DefaultLabelPath, c.LabelPath)
	assert.Equal(t, 299, c.InputSize)
	assert.Equal(t, 5, c.NumberOfResults)
	assert.InDelta(t, 0.25, c.ConfidenceThreshold, 1e-6)
	assert.Equal(t, 30*time.Second, settings.WebServer.CacheTTL)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	config := `
classifier:
  inputsize: 0
  variant: int4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o600))

	_, err := load(viper.New(), []string{dir})
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Contains(t, ve.Errors[0], "input size")
	assert.Contains(t, ve.Errors[0], "int4")
}

func TestLoadEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TFLITEHELPER_RESULTS", "7")
	t.Setenv("TFLITEHELPER_MODELPATH", "/models/custom.tflite")

	settings, err := load(viper.New(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 7, settings.Classifier.NumberOfResults)
	assert.Equal(t, "/models/custom.tflite", settings.Classifier.ModelPath)
}

func TestSyncDebugRaisesLogLevel(t *testing.T) {
	v := viper.New()
	setDefaultConfig(v)
	v.Set("debug", true)

	settings := &Settings{}
	require.NoError(t, Sync(v, settings))

	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, "debug", settings.Logging.Console.Level)
}

func TestSaveYAMLConfigReplacesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old: true\n"), 0o600))

	settings := &Settings{Classifier: ClassifierSettings{ModelPath: "m.tflite", InputSize: 128}}
	require.NoError(t, SaveYAMLConfig(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "modelpath: m.tflite")
	assert.Contains(t, string(data), "inputsize: 128")
	assert.NotContains(t, string(data), "old: true")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}
