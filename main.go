package main

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/tflitehelper/cmd"
	"github.com/tphakala/tflitehelper/internal/buildinfo"
	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	info := buildinfo.New(version, buildDate)

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	centralLogger, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		return 1
	}
	logger.SetGlobal(centralLogger)
	defer func() { _ = centralLogger.Close() }()

	if settings.Sentry.Enabled {
		if err := initSentry(settings, info); err != nil {
			centralLogger.Module("main").Warn("sentry initialization failed", logger.Error(err))
		} else {
			errors.SetTelemetryReporter(errors.NewSentryReporter(true))
			defer sentry.Flush(2 * time.Second)
		}
	}

	rootCmd := cmd.RootCommand(settings)
	rootCmd.Version = info.String()
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func initSentry(settings *conf.Settings, info *buildinfo.Context) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Environment:      settings.Sentry.Environment,
		Release:          info.Release(),
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
}
