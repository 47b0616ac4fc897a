package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hugolhafner/logstream/generator"
	"github.com/hugolhafner/logstream/kafka"
	"github.com/spf13/cobra"
)

type loggenArgs struct {
	stream string
	rate   int
	total  int
}

func parseLoggenArgs(args []string) (loggenArgs, error) {
	rate, err := strconv.Atoi(args[1])
	if err != nil || rate <= 0 {
		return loggenArgs{}, usagef("records-per-second must be a positive integer, got %q", args[1])
	}
	total, err := strconv.Atoi(args[2])
	if err != nil || total <= 0 {
		return loggenArgs{}, usagef("total-records must be a positive integer, got %q", args[2])
	}
	return loggenArgs{stream: args[0], rate: rate, total: total}, nil
}

// NewLoggenCommand returns the synthetic log generator command.
func NewLoggenCommand() *cobra.Command {
	var (
		common       commonFlags
		seed         uint64
		partitionKey string
	)

	cmd := &cobra.Command{
		Use:   "loggen <stream-name> <records-per-second> <total-records>",
		Short: "Put synthetic access-log lines onto a stream",
		Long: "loggen emits records-per-second synthetic Apache access-log lines per second onto " +
			"stream-name until total-records have been put.",
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseLoggenArgs(args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			cfg, err := common.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Generator.Seed = &seed
			}
			if cmd.Flags().Changed("partition-key") {
				cfg.Generator.PartitionKey = partitionKey
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			l, sync, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer sync()

			tel, err := newTelemetry()
			if err != nil {
				return err
			}

			producer, err := kafka.NewProducer(
				a.stream,
				kafka.WithBootstrapServers(cfg.Brokers...),
				kafka.WithClientID(cfg.ClientID),
				kafka.WithLogger(l),
				kafka.WithTelemetry(tel),
			)
			if err != nil {
				return err
			}
			defer producer.Close()

			genOpts := []generator.Option{
				generator.WithLogger(l),
				generator.WithTelemetry(tel),
				generator.WithPartitionKey(cfg.Generator.PartitionKey),
			}
			if cfg.Generator.Seed != nil {
				genOpts = append(genOpts, generator.WithSeed(*cfg.Generator.Seed))
			}
			gen, err := generator.New(producer, genOpts...)
			if err != nil {
				return err
			}

			l.Info("Generating records", "stream", a.stream, "rate", a.rate, "total", a.total)
			summary, err := gen.Run(cmd.Context(), a.rate, a.total)
			if err != nil {
				return fmt.Errorf("generate after %d records: %w", summary.Emitted, err)
			}

			l.Info(
				"Generation complete",
				"emitted", humanize.Comma(int64(summary.Emitted)),
				"ticks", len(summary.TickCounts),
				"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
			)
			return nil
		},
	}

	common.register(cmd)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for reproducible output")
	cmd.Flags().StringVar(&partitionKey, "partition-key", "", "fixed partition key; empty draws a UUID per record")
	return cmd
}
