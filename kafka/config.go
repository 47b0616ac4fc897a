package kafka

import (
	"time"

	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
)

type Config struct {
	BootstrapServers []string
	ClientID         string
	// Region is passed as the client rack so fetches prefer the nearest replica.
	Region string

	// MaxPollRecords caps the entries returned by one FetchBatch call.
	MaxPollRecords int
	// PollTimeout caps how long FetchBatch waits for data, on top of maxWait.
	PollTimeout time.Duration

	Logger    logger.Logger
	Telemetry *otel.Telemetry
}

func defaultConfig() Config {
	return Config{
		BootstrapServers: []string{"localhost:9092"},
		ClientID:         "logstream",
		MaxPollRecords:   10000,
		PollTimeout:      time.Second,
		Logger:           logger.NewNoopLogger(),
		Telemetry:        otel.Noop(),
	}
}

type Option func(*Config)

func WithBootstrapServers(servers ...string) Option {
	return func(cfg *Config) {
		if len(servers) > 0 {
			cfg.BootstrapServers = servers
		}
	}
}

func WithClientID(id string) Option {
	return func(cfg *Config) {
		if id != "" {
			cfg.ClientID = id
		}
	}
}

func WithRegion(region string) Option {
	return func(cfg *Config) {
		cfg.Region = region
	}
}

func WithMaxPollRecords(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxPollRecords = n
		}
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.PollTimeout = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l.With("client", "kgo")
		}
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(cfg *Config) {
		if t != nil {
			cfg.Telemetry = t
		}
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
