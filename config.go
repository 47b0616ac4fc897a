package logstream

import (
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/runner"
)

type Config struct {
	Logger    logger.Logger
	Telemetry *otel.Telemetry

	// MaxRestarts is how many times a failed runner is replaced before Run
	// gives up. Zero disables restarts.
	MaxRestarts    int
	RestartBackoff backoff.Backoff

	// RunnerOptions are applied to every runner after the logger and telemetry.
	RunnerOptions []runner.Option
}

type ConfigOption func(*Config)

func WithLogger(l logger.Logger) ConfigOption {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func WithTelemetry(t *otel.Telemetry) ConfigOption {
	return func(c *Config) {
		if t != nil {
			c.Telemetry = t
		}
	}
}

func WithMaxRestarts(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRestarts = max(n, 0)
	}
}

func WithRestartBackoff(b backoff.Backoff) ConfigOption {
	return func(c *Config) {
		if b != nil {
			c.RestartBackoff = b
		}
	}
}

func WithRunnerOptions(opts ...runner.Option) ConfigOption {
	return func(c *Config) {
		c.RunnerOptions = append(c.RunnerOptions, opts...)
	}
}

func defaultConfig() Config {
	return Config{
		Logger:         logger.NewNoopLogger(),
		Telemetry:      otel.Noop(),
		MaxRestarts:    3,
		RestartBackoff: backoff.NewFixed(5 * time.Second),
	}
}
