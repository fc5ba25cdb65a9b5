package directory

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/tflitehelper/internal/analysis"
	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/cpuspec"
	"github.com/tphakala/tflitehelper/internal/logger"
)

type options struct {
	recursive bool
	workers   int
	format    string
	output    string
}

// Command creates a new cobra.Command for directory analysis.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "directory [path]",
		Short: "Classify all images in a directory",
		Long:  "Provide a directory path to classify every supported image within it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, settings, args[0], opts)
		},
	}

	setupFlags(cmd, opts)

	return cmd
}

// setupFlags defines flags specific to the directory command.
func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Recursively analyze subdirectories")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 1, "Number of classifiers running in parallel")
	cmd.Flags().StringVarP(&opts.format, "format", "f", analysis.FormatTable, "Output format: table, csv, json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write results to this file instead of stdout")
}

func run(ctx context.Context, settings *conf.Settings, root string, opts *options) (err error) {
	dst := os.Stdout
	if opts.output != "" {
		f, createErr := os.Create(opts.output)
		if createErr != nil {
			return fmt.Errorf("failed to create output file: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		dst = f
	}

	out, err := analysis.NewWriter(dst, opts.format)
	if err != nil {
		return err
	}

	// Each worker gets its own classifier, so share the CPU between them.
	classifierSettings := settings.Classifier
	classifierSettings.Threads = cpuspec.GetCPUSpec().ThreadsPerInstance(settings.Classifier.Threads, opts.workers)

	factory := func() (analysis.ImageClassifier, error) {
		c, err := classifier.Open(&classifierSettings)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	summary, err := analysis.Directory(ctx, factory, root, analysis.DirectoryOptions{
		Recursive: opts.recursive,
		Workers:   opts.workers,
	}, out.Write)
	if flushErr := out.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}

	analysis.GetLogger().Info("directory analysis finished",
		logger.Int("files", summary.Files),
		logger.Int("classified", summary.Classified),
		logger.Int("failed", summary.Failed),
		logger.Duration("elapsed", summary.Elapsed))

	return err
}
