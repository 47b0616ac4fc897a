package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "LOGSTREAM_"

// FromEnv overlays LOGSTREAM_* environment variables onto cfg.
func FromEnv(cfg *Config) error {
	return fromLookup(cfg, os.LookupEnv)
}

func fromLookup(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get("BROKERS"); ok {
		cfg.Brokers = splitList(v)
	}
	if v, ok := get("CLIENT_ID"); ok {
		cfg.ClientID = v
	}
	if v, ok := get("REGION"); ok {
		cfg.Region = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := get("SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return envError("SEED", v, err)
		}
		cfg.Generator.Seed = &n
	}
	if v, ok := get("PARTITION_KEY"); ok {
		cfg.Generator.PartitionKey = v
	}
	if v, ok := get("BATCH_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("BATCH_INTERVAL", v, err)
		}
		cfg.Processor.BatchInterval = d
	}
	if v, ok := get("WRITE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("WRITE_TIMEOUT", v, err)
		}
		cfg.Processor.WriteTimeout = d
	}
	if v, ok := get("OUTPUT_DIR"); ok {
		cfg.Processor.OutputDir = v
	}
	if v, ok := get("OUTPUT_PREFIX"); ok {
		cfg.Processor.OutputPrefix = v
	}
	if v, ok := get("START"); ok {
		cfg.Processor.Start = v
	}
	if v, ok := get("FORMAT"); ok {
		cfg.Processor.Format = v
	}
	if v, ok := get("COMPRESSION"); ok {
		cfg.Processor.Compression = v
	}
	if v, ok := get("ANONYMIZER"); ok {
		cfg.Processor.Anonymizer = v
	}
	if v, ok := get("PARALLELISM"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("PARALLELISM", v, err)
		}
		cfg.Processor.Parallelism = n
	}
	if v, ok := get("MAX_RESTARTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("MAX_RESTARTS", v, err)
		}
		cfg.Processor.MaxRestarts = n
	}
	if v, ok := get("CHECKPOINT_DIR"); ok {
		cfg.Checkpoint.Dir = v
	}
	if v, ok := get("CHECKPOINT_IN_MEMORY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("CHECKPOINT_IN_MEMORY", v, err)
		}
		cfg.Checkpoint.InMemory = b
	}
	return nil
}

func envError(name, value string, err error) error {
	return fmt.Errorf("%s%s=%q: %w", envPrefix, name, value, err)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
