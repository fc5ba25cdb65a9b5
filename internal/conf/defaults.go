// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Classifier defaults, matching the stock quantized MobileNet v1 model
const (
	DefaultModelPath           = "mobilenet_v1_1.0_224_quant.tflite"
	DefaultLabelPath           = "labels.txt"
	DefaultInputSize           = 224
	DefaultNumberOfResults     = 3
	DefaultConfidenceThreshold = 0.1
)

// setDefaultConfig sets default values for every configuration key
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("classifier.backend", BackendTFLite)
	v.SetDefault("classifier.variant", VariantQuantized)
	v.SetDefault("classifier.modelpath", DefaultModelPath)
	v.SetDefault("classifier.labelpath", DefaultLabelPath)
	v.SetDefault("classifier.inputsize", DefaultInputSize)
	v.SetDefault("classifier.numberofresults", DefaultNumberOfResults)
	v.SetDefault("classifier.confidencethreshold", DefaultConfidenceThreshold)
	v.SetDefault("classifier.threads", 0)
	v.SetDefault("classifier.usexnnpack", false)
	v.SetDefault("classifier.onnx.librarypath", "")
	v.SetDefault("classifier.onnx.inputname", "input")
	v.SetDefault("classifier.onnx.outputname", "output")

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/tflitehelper.log")
	v.SetDefault("logging.fileoutput.level", "info")

	v.SetDefault("webserver.listen", "127.0.0.1:8080")
	v.SetDefault("webserver.ratelimit", 10.0)
	v.SetDefault("webserver.rateburst", 20)
	v.SetDefault("webserver.cachettl", 5*time.Minute)
	v.SetDefault("webserver.maxuploadsize", 10*1024*1024)
	v.SetDefault("webserver.workers", 1)

	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
