// Package cmd assembles the tflitehelper command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/tflitehelper/cmd/benchmark"
	"github.com/tphakala/tflitehelper/cmd/classify"
	"github.com/tphakala/tflitehelper/cmd/directory"
	"github.com/tphakala/tflitehelper/cmd/labels"
	"github.com/tphakala/tflitehelper/cmd/serve"
	"github.com/tphakala/tflitehelper/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tflitehelper",
		Short:        "Image classification with TensorFlow Lite and ONNX models",
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		// Flag binding only fails on programming errors.
		panic(err)
	}

	rootCmd.AddCommand(
		classify.Command(settings),
		directory.Command(settings),
		serve.Command(settings),
		benchmark.Command(settings),
		labels.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Command line values win over the config file
		return conf.Sync(viper.GetViper(), settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	flags.StringVarP(&settings.Classifier.ModelPath, "model", "m", settings.Classifier.ModelPath, "Path to the model file")
	flags.StringVarP(&settings.Classifier.LabelPath, "labels", "l", settings.Classifier.LabelPath, "Path to the label file")
	flags.StringVar(&settings.Classifier.Backend, "backend", settings.Classifier.Backend, "Inference backend: tflite, onnx")
	flags.StringVar(&settings.Classifier.Variant, "variant", settings.Classifier.Variant, "Model variant: quantized, float")
	flags.IntVar(&settings.Classifier.InputSize, "input-size", settings.Classifier.InputSize, "Width and height of the model input in pixels")
	flags.IntVarP(&settings.Classifier.NumberOfResults, "results", "n", settings.Classifier.NumberOfResults, "Maximum number of recognitions per image")
	flags.Float32VarP(&settings.Classifier.ConfidenceThreshold, "threshold", "t", settings.Classifier.ConfidenceThreshold, "Recognitions must score above this value")
	flags.IntVar(&settings.Classifier.Threads, "threads", settings.Classifier.Threads, "Interpreter threads, 0 picks a value from the CPU")
	flags.BoolVar(&settings.Classifier.UseXNNPACK, "xnnpack", settings.Classifier.UseXNNPACK, "Use the XNNPACK delegate with the tflite backend")

	bindings := map[string]string{
		"debug":                          "debug",
		"classifier.modelpath":           "model",
		"classifier.labelpath":           "labels",
		"classifier.backend":             "backend",
		"classifier.variant":             "variant",
		"classifier.inputsize":           "input-size",
		"classifier.numberofresults":     "results",
		"classifier.confidencethreshold": "threshold",
		"classifier.threads":             "threads",
		"classifier.usexnnpack":          "xnnpack",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
