package runner

import (
	"time"

	"github.com/hugolhafner/logstream/errorhandler"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/source"
)

type Config struct {
	Logger    logger.Logger
	Telemetry *otel.Telemetry

	// ErrorHandler decides per-entry failures not claimed by a phase handler.
	// Defaults to LogAndContinue on Logger.
	ErrorHandler          errorhandler.Handler
	DecodeErrorHandler    errorhandler.Handler
	TransformErrorHandler errorhandler.Handler
	SerialiseErrorHandler errorhandler.Handler

	// BatchInterval is the tick period and the longest a fetch waits for data.
	BatchInterval time.Duration
	// WriteTimeout bounds WRITE plus CHECKPOINT of a partition once started.
	WriteTimeout time.Duration
	// StartPosition is used for partitions without a checkpoint.
	StartPosition source.Position
	// OutputPrefix names the per-tick output directory, "<prefix>-<tick millis>".
	OutputPrefix string
}

func defaultConfig() Config {
	l := logger.NewNoopLogger()
	return Config{
		Logger:        l,
		Telemetry:     otel.Noop(),
		BatchInterval: 10 * time.Second,
		WriteTimeout:  time.Minute,
		StartPosition: source.Latest(),
		OutputPrefix:  "logs",
	}
}

type Option func(*Config)

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(c *Config) {
		if t != nil {
			c.Telemetry = t
		}
	}
}

// WithErrorHandler sets the default per-entry error handler
func WithErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithDecodeErrorHandler overrides the handler for entries that fail to parse
func WithDecodeErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		c.DecodeErrorHandler = h
	}
}

// WithTransformErrorHandler overrides the handler for records a transform rejects
func WithTransformErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		c.TransformErrorHandler = h
	}
}

// WithSerialiseErrorHandler overrides the handler for records that fail to encode
func WithSerialiseErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		c.SerialiseErrorHandler = h
	}
}

func WithBatchInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.BatchInterval = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.WriteTimeout = d
		}
	}
}

func WithStartPosition(p source.Position) Option {
	return func(c *Config) {
		c.StartPosition = p
	}
}

func WithOutputPrefix(prefix string) Option {
	return func(c *Config) {
		if prefix != "" {
			c.OutputPrefix = prefix
		}
	}
}
