package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/serde"
	"github.com/hugolhafner/logstream/sink"
	"github.com/hugolhafner/logstream/source"
	"github.com/hugolhafner/logstream/transform"
	"gopkg.in/yaml.v3"
)

// Config is the configuration shared by loggen and logproc, loaded from a
// YAML file and LOGSTREAM_* environment variables. Command line arguments
// and flags are applied on top by the commands.
type Config struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`
	Region   string   `yaml:"region"`

	Log        Log        `yaml:"log"`
	Generator  Generator  `yaml:"generator"`
	Processor  Processor  `yaml:"processor"`
	Checkpoint Checkpoint `yaml:"checkpoint"`
}

type Log struct {
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

type Generator struct {
	// Seed, when set, makes generated traffic reproducible.
	Seed         *uint64 `yaml:"seed"`
	PartitionKey string  `yaml:"partitionKey"`
}

type Processor struct {
	BatchInterval  time.Duration `yaml:"batchInterval"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	OutputDir      string        `yaml:"outputDir"`
	OutputPrefix   string        `yaml:"outputPrefix"`
	Start          string        `yaml:"start"`
	Format         string        `yaml:"format"`
	Compression    string        `yaml:"compression"`
	Anonymizer     string        `yaml:"anonymizer"`
	Parallelism    int           `yaml:"parallelism"`
	MaxPollRecords int           `yaml:"maxPollRecords"`
	MaxRestarts    int           `yaml:"maxRestarts"`
	RestartBackoff time.Duration `yaml:"restartBackoff"`
}

type Checkpoint struct {
	// Dir holds the pebble checkpoint database. Empty places it in
	// DefaultCheckpointDir below the output directory.
	Dir string `yaml:"dir"`
	// InMemory keeps checkpoints in memory only; they do not survive a restart.
	InMemory bool `yaml:"inMemory"`
}

const DefaultCheckpointDir = ".checkpoints"

// CheckpointDir returns the directory of the on-disk checkpoint database.
func (c Config) CheckpointDir() string {
	if c.Checkpoint.Dir != "" {
		return c.Checkpoint.Dir
	}
	return filepath.Join(c.Processor.OutputDir, DefaultCheckpointDir)
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "logstream",
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Processor: Processor{
			BatchInterval:  10 * time.Second,
			WriteTimeout:   time.Minute,
			OutputPrefix:   "logs",
			Start:          "latest",
			Format:         string(serde.FormatLogLine),
			Compression:    sink.CompressionNone.String(),
			Anonymizer:     transform.HashMD5.String(),
			Parallelism:    4,
			MaxPollRecords: 10000,
			MaxRestarts:    3,
			RestartBackoff: 5 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("brokers: at least one broker is required"))
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format: must be json or console, got %q", c.Log.Format))
	}

	p := c.Processor
	if p.BatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("processor.batchInterval: must be positive, got %s", p.BatchInterval))
	}
	if p.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("processor.writeTimeout: must be positive, got %s", p.WriteTimeout))
	}
	if err := validateStart(p.Start); err != nil {
		errs = append(errs, fmt.Errorf("processor.start: %w", err))
	}
	if _, err := serde.ParseFormat(p.Format); err != nil {
		errs = append(errs, fmt.Errorf("processor.format: %w", err))
	}
	if _, err := sink.ParseCompression(p.Compression); err != nil {
		errs = append(errs, fmt.Errorf("processor.compression: %w", err))
	}
	if _, err := transform.ParseHashAlgorithm(p.Anonymizer); err != nil {
		errs = append(errs, fmt.Errorf("processor.anonymizer: %w", err))
	}
	if p.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("processor.parallelism: must be at least 1, got %d", p.Parallelism))
	}
	if p.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("processor.maxRestarts: must not be negative, got %d", p.MaxRestarts))
	}
	if p.RestartBackoff < 0 {
		errs = append(errs, fmt.Errorf("processor.restartBackoff: must not be negative, got %s", p.RestartBackoff))
	}

	return errors.Join(errs...)
}

// validateStart accepts earliest, latest or a decimal offset.
func validateStart(s string) error {
	pos, err := source.ParsePosition(s)
	if err != nil {
		return err
	}
	if pos.Kind == source.PositionToken {
		_, err = pos.Offset()
	}
	return err
}
