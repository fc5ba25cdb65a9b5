// config.go: settings struct for tflitehelper and functions to load and save it.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/tflitehelper/internal/logger"
)

// Inference backends
const (
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

// Model variants, named after how the input tensor is encoded
const (
	VariantQuantized = "quantized"
	VariantFloat     = "float"
)

// ONNXSettings holds options that only apply to the onnxruntime backend
type ONNXSettings struct {
	LibraryPath string // path to the onnxruntime shared library, empty uses the platform default
	InputName   string // name of the model input tensor
	OutputName  string // name of the model output tensor
}

// ClassifierSettings contains the model, labels and ranking parameters
type ClassifierSettings struct {
	Backend             string       // tflite or onnx
	Variant             string       // quantized or float
	ModelPath           string       // path to the model file
	LabelPath           string       // path to the label file, one label per line
	InputSize           int          // width and height of the square input image in pixels
	NumberOfResults     int          // maximum number of recognitions returned per image
	ConfidenceThreshold float32      // recognitions must score strictly above this
	Threads             int          // interpreter threads, 0 picks a value from the CPU topology
	UseXNNPACK          bool         // use the XNNPACK delegate with the tflite backend
	ONNX                ONNXSettings // onnxruntime options
}

// WebServerSettings configures the HTTP classification API
type WebServerSettings struct {
	Listen        string        // address the API listens on
	RateLimit     float64       // requests per second per client, 0 disables limiting
	RateBurst     int           // burst size for the rate limiter
	CacheTTL      time.Duration // how long results for identical images are cached, 0 disables caching
	MaxUploadSize int64         // maximum accepted image size in bytes
	Workers       int           // number of classifier instances serving requests
}

// TelemetrySettings controls the prometheus metrics endpoint
type TelemetrySettings struct {
	Enabled bool // expose /metrics
}

// SentrySettings controls error reporting
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings is the root configuration struct
type Settings struct {
	Debug bool // true to enable debug logging

	Classifier ClassifierSettings
	Logging    logger.LoggingConfig
	WebServer  WebServerSettings
	Telemetry  TelemetrySettings
	Sentry     SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the configuration file and environment variables into
// a Settings instance and stores it as the current settings.
func Load() (*Settings, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}

	settings, err := load(viper.GetViper(), configPaths)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// load does the work of Load against a given viper instance and search path
func load(v *viper.Viper, configPaths []string) (*Settings, error) {
	if err := initViper(v, configPaths); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := Sync(v, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Sync re-reads viper into settings and validates the result. Commands call
// it after flag parsing so command line values win over the config file.
func Sync(v *viper.Viper, settings *Settings) error {
	if err := v.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	if err := ValidateSettings(settings); err != nil {
		return fmt.Errorf("error validating settings: %w", err)
	}

	return nil
}

// initViper sets defaults, environment bindings and reads the config file,
// creating one from the defaults when none exists.
func initViper(v *viper.Viper, configPaths []string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		GetLogger().Warn("environment variable configuration issues", logger.Error(err))
	}

	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v, configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Debug("loaded config file", logger.String("path", v.ConfigFileUsed()))
	return nil
}

// createDefaultConfig writes the default settings to the first config path
func createDefaultConfig(v *viper.Viper, configPaths []string) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("no config paths to create default config in")
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaults := &Settings{}
	if err := v.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return v.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically through a temporary file in the same directory.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
