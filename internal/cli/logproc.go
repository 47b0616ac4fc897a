package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/logstream"
	"github.com/hugolhafner/logstream/checkpoint"
	"github.com/hugolhafner/logstream/errorhandler"
	"github.com/hugolhafner/logstream/internal/config"
	"github.com/hugolhafner/logstream/kafka"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/processor"
	"github.com/hugolhafner/logstream/runner"
	"github.com/hugolhafner/logstream/serde"
	"github.com/hugolhafner/logstream/sink"
	"github.com/hugolhafner/logstream/source"
	"github.com/hugolhafner/logstream/transform"
	"github.com/spf13/cobra"
)

type logprocArgs struct {
	stream        string
	region        string
	batchInterval time.Duration
	outputDir     string
}

func parseLogprocArgs(args []string) (logprocArgs, error) {
	ms, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || ms <= 0 {
		return logprocArgs{}, usagef("batch-interval-ms must be a positive integer, got %q", args[2])
	}
	if args[3] == "" {
		return logprocArgs{}, usagef("output-directory must not be empty")
	}
	return logprocArgs{
		stream:        args[0],
		region:        args[1],
		batchInterval: time.Duration(ms) * time.Millisecond,
		outputDir:     args[3],
	}, nil
}

// NewLogprocCommand returns the stream processor command.
func NewLogprocCommand() *cobra.Command {
	var (
		common        commonFlags
		checkpointDir string
		memCheckpoint bool
		start         string
		format        string
		compression   string
		anonymizer    string
		maxRestarts   int
	)

	cmd := &cobra.Command{
		Use:   "logproc <stream-name> <region> <batch-interval-ms> <output-directory>",
		Short: "Anonymize access-log lines from a stream into batch files",
		Long: "logproc reads stream-name every batch-interval-ms, anonymizes client addresses, " +
			"categorizes user agents and writes each batch below output-directory before " +
			"checkpointing its position.",
		Args: exactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseLogprocArgs(args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			cfg, err := common.load(cmd)
			if err != nil {
				return err
			}
			cfg.Region = a.region
			cfg.Processor.BatchInterval = a.batchInterval
			cfg.Processor.OutputDir = a.outputDir

			fs := cmd.Flags()
			if fs.Changed("checkpoint-dir") {
				cfg.Checkpoint.Dir = checkpointDir
			}
			if fs.Changed("in-memory-checkpoints") {
				cfg.Checkpoint.InMemory = memCheckpoint
			}
			if fs.Changed("start") {
				cfg.Processor.Start = start
			}
			if fs.Changed("format") {
				cfg.Processor.Format = format
			}
			if fs.Changed("compression") {
				cfg.Processor.Compression = compression
			}
			if fs.Changed("anonymizer") {
				cfg.Processor.Anonymizer = anonymizer
			}
			if fs.Changed("max-restarts") {
				cfg.Processor.MaxRestarts = maxRestarts
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			l, sync, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer sync()

			return runProcessor(cmd, a.stream, cfg, l)
		},
	}

	common.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(
		&checkpointDir, "checkpoint-dir", "",
		"checkpoint database directory (default <output-directory>/"+config.DefaultCheckpointDir+")",
	)
	fs.BoolVar(&memCheckpoint, "in-memory-checkpoints", false, "keep checkpoints in memory; they are lost on exit")
	fs.StringVar(&start, "start", "", "position for partitions without a checkpoint: earliest|latest|<offset>")
	fs.StringVar(&format, "format", "", "output format: log|json")
	fs.StringVar(&compression, "compression", "", "output compression: none|zstd")
	fs.StringVar(&anonymizer, "anonymizer", "", "client address digest: md5|blake2b")
	fs.IntVar(&maxRestarts, "max-restarts", 0, "times a failed processor is restarted from its checkpoint")
	return cmd
}

func runProcessor(cmd *cobra.Command, stream string, cfg config.Config, l logger.Logger) error {
	p := cfg.Processor

	// validated above
	startPos, _ := source.ParsePosition(p.Start)
	outFormat, _ := serde.ParseFormat(p.Format)
	comp, _ := sink.ParseCompression(p.Compression)
	alg, _ := transform.ParseHashAlgorithm(p.Anonymizer)

	tel, err := newTelemetry()
	if err != nil {
		return err
	}

	src, err := kafka.NewSource(
		stream,
		kafka.WithBootstrapServers(cfg.Brokers...),
		kafka.WithClientID(cfg.ClientID),
		kafka.WithRegion(cfg.Region),
		kafka.WithMaxPollRecords(p.MaxPollRecords),
		kafka.WithLogger(l),
		kafka.WithTelemetry(tel),
	)
	if err != nil {
		return err
	}
	defer src.Close()

	snk, err := sink.NewFileSink(p.OutputDir, sink.WithCompression(comp), sink.WithLogger(l))
	if err != nil {
		return err
	}

	store, err := openCheckpoints(cfg, stream, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Error("Failed to close checkpoint store", "error", err)
		}
	}()

	proc := processor.NewLogProcessor(
		processor.WithSerialiser(outFormat.Serde()),
		processor.WithTransformer(
			transform.NewTransformer(transform.WithAnonymizer(transform.NewAddressAnonymizer(alg))),
		),
		processor.WithParallelism(p.Parallelism),
	)

	app, err := logstream.NewApplication(
		src, snk, store, proc,
		logstream.WithLogger(l),
		logstream.WithTelemetry(tel),
		logstream.WithMaxRestarts(p.MaxRestarts),
		logstream.WithRestartBackoff(backoff.NewFixed(p.RestartBackoff)),
		logstream.WithRunnerOptions(
			runner.WithBatchInterval(p.BatchInterval),
			runner.WithWriteTimeout(p.WriteTimeout),
			runner.WithStartPosition(startPos),
			runner.WithOutputPrefix(p.OutputPrefix),
			runner.WithErrorHandler(errorhandler.ActionLogger(l, logger.DebugLevel, errorhandler.LogAndContinue(l))),
		),
	)
	if err != nil {
		return err
	}

	l.Info(
		"Starting processor", "stream", stream, "region", cfg.Region,
		"batch_interval", p.BatchInterval.String(), "output", p.OutputDir, "version", logstream.Version,
	)
	return app.Run(cmd.Context())
}

func openCheckpoints(cfg config.Config, stream string, l logger.Logger) (*checkpoint.PebbleStore, error) {
	dir := cfg.CheckpointDir()
	if cfg.Checkpoint.InMemory {
		l.Warn("Checkpoints are kept in memory and will not survive a restart")
		return checkpoint.OpenPebble(dir, stream, checkpoint.WithInMemory(), checkpoint.WithLogger(l))
	}
	l.Info("Using checkpoint store", "dir", dir)
	return checkpoint.OpenPebble(dir, stream, checkpoint.WithLogger(l))
}
