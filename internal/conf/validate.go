// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"

	"github.com/tphakala/tflitehelper/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Backend and variant
// names are normalized to lower case in place.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateClassifierSettings(&settings.Classifier); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLoggingSettings(&settings.Logging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but no DSN is configured")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateClassifierSettings validates the model, label and ranking settings
func validateClassifierSettings(settings *ClassifierSettings) error {
	var errs []string

	settings.Backend = strings.ToLower(strings.TrimSpace(settings.Backend))
	settings.Variant = strings.ToLower(strings.TrimSpace(settings.Variant))

	switch settings.Backend {
	case BackendTFLite, BackendONNX:
	default:
		errs = append(errs, fmt.Sprintf("unsupported backend %q, must be %s or %s", settings.Backend, BackendTFLite, BackendONNX))
	}

	switch settings.Variant {
	case VariantQuantized, VariantFloat:
	default:
		errs = append(errs, fmt.Sprintf("unsupported variant %q, must be %s or %s", settings.Variant, VariantQuantized, VariantFloat))
	}

	if settings.ModelPath == "" {
		errs = append(errs, "model path must be set")
	}
	if settings.LabelPath == "" {
		errs = append(errs, "label path must be set")
	}

	if settings.InputSize <= 0 {
		errs = append(errs, fmt.Sprintf("input size must be greater than zero, got %d", settings.InputSize))
	}
	if settings.NumberOfResults <= 0 {
		errs = append(errs, fmt.Sprintf("number of results must be greater than zero, got %d", settings.NumberOfResults))
	}
	if settings.Threads < 0 {
		errs = append(errs, fmt.Sprintf("threads must be zero or greater, got %d", settings.Threads))
	}

	if settings.Backend == BackendONNX {
		if settings.ONNX.InputName == "" || settings.ONNX.OutputName == "" {
			errs = append(errs, "onnx input and output tensor names must be set")
		}
		if settings.UseXNNPACK {
			GetLogger().Warn("XNNPACK delegate only applies to the tflite backend, ignoring")
		}
	}

	// Out of range thresholds are legal: negative keeps every label, 1 or
	// more keeps none.
	if settings.ConfidenceThreshold < 0 || settings.ConfidenceThreshold >= 1 {
		GetLogger().Warn("confidence threshold outside [0, 1)",
			logger.Float32("threshold", settings.ConfidenceThreshold))
	}

	if len(errs) > 0 {
		return fmt.Errorf("classifier settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the HTTP API settings
func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("invalid listen address %q: %v", settings.Listen, err))
	}
	if settings.RateLimit < 0 {
		errs = append(errs, "rate limit must be zero or greater")
	}
	if settings.RateLimit > 0 && settings.RateBurst <= 0 {
		errs = append(errs, "rate burst must be greater than zero when rate limiting is enabled")
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "cache TTL must be zero or greater")
	}
	if settings.MaxUploadSize <= 0 {
		errs = append(errs, "max upload size must be greater than zero")
	}
	if settings.Workers <= 0 {
		errs = append(errs, "workers must be greater than zero")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

func validateLoggingSettings(settings *logger.LoggingConfig) error {
	levels := map[string]string{"default": settings.DefaultLevel}
	if settings.Console != nil {
		levels["console"] = settings.Console.Level
	}
	if settings.FileOutput != nil {
		levels["file"] = settings.FileOutput.Level
	}
	for module, level := range settings.ModuleLevels {
		levels["module "+module] = level
	}

	var errs []string
	for name, level := range levels {
		switch logger.LogLevel(level) {
		case "", logger.LogLevelTrace, logger.LogLevelDebug, logger.LogLevelInfo, logger.LogLevelWarn, logger.LogLevelError:
		default:
			errs = append(errs, fmt.Sprintf("%s log level %q is not valid", name, level))
		}
	}

	if settings.FileOutput != nil && settings.FileOutput.Enabled && settings.FileOutput.Path == "" {
		errs = append(errs, "file logging is enabled but no path is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("logging settings errors: %v", errs)
	}
	return nil
}
