package classify

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/tflitehelper/internal/analysis"
	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// Command creates a command for classifying individual images.
func Command(settings *conf.Settings) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "classify [image...]",
		Short: "Classify one or more images",
		Long:  "Classify image files and print the top recognitions for each of them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, args, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", analysis.FormatTable, "Output format: table, csv, json")

	return cmd
}

func run(settings *conf.Settings, paths []string, format string) error {
	out, err := analysis.NewWriter(os.Stdout, format)
	if err != nil {
		return err
	}

	c, err := classifier.Open(&settings.Classifier)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			classifier.GetLogger().Warn("failed to close classifier", logger.Error(err))
		}
	}()

	var failed error
	for _, path := range paths {
		result := analysis.ClassifyFile(c, path)
		if result.Err != nil && failed == nil {
			failed = result.Err
		}
		if err := out.Write(result); err != nil {
			return err
		}
	}
	if err := out.Flush(); err != nil {
		return err
	}

	return failed
}
