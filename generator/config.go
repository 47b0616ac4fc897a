package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/record"
)

type Config struct {
	Logger    logger.Logger
	Telemetry *otel.Telemetry
	Clock     Clock

	// Seed fixes the random source when Seeded is set.
	Seed   uint64
	Seeded bool
	// PartitionKey, when set, is used for every record instead of a fresh UUID.
	PartitionKey string

	Methods    Distribution[string]
	Resources  Distribution[string]
	Statuses   Distribution[int]
	UserAgents Distribution[string]
	Referers   Distribution[string]
	MaxBytes   int64
}

func defaultConfig() Config {
	return Config{
		Logger:     logger.NewNoopLogger(),
		Telemetry:  otel.Noop(),
		Clock:      SystemClock{},
		Methods:    DefaultMethods,
		Resources:  DefaultResources,
		Statuses:   DefaultStatuses,
		UserAgents: DefaultUserAgents,
		Referers:   DefaultReferers,
		MaxBytes:   DefaultMaxBytes,
	}
}

var ErrInvalidConfig = errors.New("invalid generator config")

func (c Config) validate() error {
	var errs []error
	for _, m := range c.Methods.Values() {
		if err := record.ValidateToken("method", m); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range c.Resources.Values() {
		if err := record.ValidateToken("resource", r); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range c.Statuses.Values() {
		if s < 0 {
			errs = append(errs, fmt.Errorf("status %d: %w", s, record.ErrInvalidField))
		}
	}
	for _, ua := range c.UserAgents.Values() {
		if err := record.ValidateUserAgent(ua); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ref := range c.Referers.Values() {
		if ref == "" || strings.ContainsAny(ref, "\"\r\n") {
			errs = append(errs, fmt.Errorf("referer %q: %w", ref, record.ErrInvalidField))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
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

func WithClock(clock Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithSeed makes every drawn field, and the generated partition keys, reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = seed
		c.Seeded = true
	}
}

func WithPartitionKey(key string) Option {
	return func(c *Config) {
		c.PartitionKey = key
	}
}

func WithMethods(d Distribution[string]) Option {
	return func(c *Config) {
		if d.Len() > 0 {
			c.Methods = d
		}
	}
}

func WithResources(d Distribution[string]) Option {
	return func(c *Config) {
		if d.Len() > 0 {
			c.Resources = d
		}
	}
}

func WithStatuses(d Distribution[int]) Option {
	return func(c *Config) {
		if d.Len() > 0 {
			c.Statuses = d
		}
	}
}

func WithUserAgents(d Distribution[string]) Option {
	return func(c *Config) {
		if d.Len() > 0 {
			c.UserAgents = d
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxBytes = n
		}
	}
}
