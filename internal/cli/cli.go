// Package cli builds the loggen and logproc commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hugolhafner/logstream/internal/config"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/plugins/zaplogger"
	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"
)

// Execute runs cmd with the process arguments and returns the exit code.
func Execute(cmd *cobra.Command) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// commonFlags are shared by both commands.
type commonFlags struct {
	configPath string
	brokers    []string
	logLevel   string
	logFormat  string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	fs.StringSliceVar(&f.brokers, "brokers", nil, "Kafka bootstrap brokers (comma separated)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug|info|warn|error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: json|console")
}

// load reads the config file, then the environment, then changed flags.
func (f *commonFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.FromEnv(&cfg); err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("brokers") {
		cfg.Brokers = f.brokers
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return cfg, nil
}

func newLogger(cfg config.Log) (logger.Logger, func(), error) {
	level, _ := logger.ParseLevel(cfg.Level)

	build := zaplogger.NewProduction
	if cfg.Format == "console" {
		build = zaplogger.NewConsole
	}

	l, zl, err := build(level)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return l, func() { _ = zl.Sync() }, nil
}

// newTelemetry binds to the globally registered OpenTelemetry providers,
// which are noops unless an exporter has been installed.
func newTelemetry() (*otel.Telemetry, error) {
	return otel.NewTelemetry(otelapi.GetTracerProvider(), otelapi.GetMeterProvider(), otelapi.GetTextMapPropagator())
}

// usageError marks errors about the command line itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// IsUsageError reports whether err was caused by invalid arguments.
func IsUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s: expected %d arguments, got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}
