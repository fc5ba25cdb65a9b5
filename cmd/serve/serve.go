package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/tflitehelper/internal/api"
	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/cpuspec"
	"github.com/tphakala/tflitehelper/internal/logger"
	"github.com/tphakala/tflitehelper/internal/observability"
)

// Command creates the HTTP API server command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long:  "Start an HTTP server that classifies uploaded images with the configured model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", settings.WebServer.Listen, "Address the API listens on")
	cmd.Flags().IntVarP(&settings.WebServer.Workers, "workers", "w", settings.WebServer.Workers, "Number of classifiers serving requests")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "metrics", settings.Telemetry.Enabled, "Expose Prometheus metrics on /metrics")

	// Bound so the settings sync before each run keeps command line values
	_ = viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("webserver.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("telemetry.enabled", cmd.Flags().Lookup("metrics"))

	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := api.GetLogger()

	var metrics *observability.Metrics
	var classifierOpts []classifier.Option
	if settings.Telemetry.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		metrics = m
		classifierOpts = append(classifierOpts, classifier.WithMetrics(m.Classifier))
	}

	workers := max(settings.WebServer.Workers, 1)
	classifierSettings := settings.Classifier
	classifierSettings.Threads = cpuspec.GetCPUSpec().ThreadsPerInstance(settings.Classifier.Threads, workers)

	classifiers := make([]*classifier.Classifier, 0, workers)
	defer func() {
		for _, c := range classifiers {
			if err := c.Close(); err != nil {
				log.Warn("failed to close classifier", logger.Error(err))
			}
		}
	}()

	pool := make([]api.Classifier, 0, workers)
	for range workers {
		c, err := classifier.Open(&classifierSettings, classifierOpts...)
		if err != nil {
			return err
		}
		classifiers = append(classifiers, c)
		pool = append(pool, c)
	}

	var serverOpts []api.ServerOption
	if metrics != nil {
		serverOpts = append(serverOpts, api.WithMetrics(metrics))
	}

	server, err := api.New(api.ConfigFromSettings(settings), pool, serverOpts...)
	if err != nil {
		return err
	}

	server.Start()
	<-ctx.Done()
	log.Info("shutdown signal received")

	return server.Shutdown()
}
