// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "TFLITEHELPER_DEBUG", validateEnvBool},

		{"classifier.backend", "TFLITEHELPER_BACKEND", validateEnvOneOf(BackendTFLite, BackendONNX)},
		{"classifier.variant", "TFLITEHELPER_VARIANT", validateEnvOneOf(VariantQuantized, VariantFloat)},
		{"classifier.modelpath", "TFLITEHELPER_MODELPATH", validateEnvPath},
		{"classifier.labelpath", "TFLITEHELPER_LABELPATH", validateEnvPath},
		{"classifier.inputsize", "TFLITEHELPER_INPUTSIZE", validateEnvPositiveInt},
		{"classifier.numberofresults", "TFLITEHELPER_RESULTS", validateEnvPositiveInt},
		{"classifier.confidencethreshold", "TFLITEHELPER_THRESHOLD", validateEnvFloat},
		{"classifier.threads", "TFLITEHELPER_THREADS", validateEnvThreads},
		{"classifier.usexnnpack", "TFLITEHELPER_USEXNNPACK", validateEnvBool},
		{"classifier.onnx.librarypath", "TFLITEHELPER_ONNX_LIBRARYPATH", validateEnvPath},

		{"webserver.listen", "TFLITEHELPER_LISTEN", nil},
		{"sentry.dsn", "TFLITEHELPER_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every environment variable and validates values that are set
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be a boolean (true/false, 1/0)")
	}
	return nil
}

func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateEnvFloat(value string) error {
	if _, err := strconv.ParseFloat(value, 32); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

func validateEnvThreads(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 0 {
		return fmt.Errorf("must be zero or greater")
	}
	return nil
}

// validateEnvPath rejects path traversal. A missing file is not an error
// here, the loader reports it with more context.
func validateEnvPath(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	for part := range strings.SplitSeq(filepath.ToSlash(value), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal is not allowed")
		}
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
