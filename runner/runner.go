package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hugolhafner/logstream/checkpoint"
	"github.com/hugolhafner/logstream/errorhandler"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/processor"
	"github.com/hugolhafner/logstream/sink"
	"github.com/hugolhafner/logstream/source"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Runner drives the micro-batch pipeline: one tick per batch interval, each
// partition fetched, processed and written in parallel, and checkpoints
// advanced only after every partition of the tick has finished writing.
type Runner struct {
	source    source.Source
	sink      sink.Sink
	store     checkpoint.Store
	processor processor.Processor

	config    Config
	logger    logger.Logger
	telemetry *otel.Telemetry

	// tickMu serialises ticks; positions is only written with it held.
	tickMu sync.Mutex

	mu         sync.RWMutex
	state      State
	partitions []string
	positions  map[string]source.Position
}

func New(src source.Source, snk sink.Sink, store checkpoint.Store, proc processor.Processor, opts ...Option) (
	*Runner, error,
) {
	if src == nil || snk == nil || store == nil || proc == nil {
		return nil, errors.New("runner: source, sink, checkpoint store and processor are required")
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = errorhandler.LogAndContinue(config.Logger)
	}

	return &Runner{
		source:    src,
		sink:      snk,
		store:     store,
		processor: proc,
		config:    config,
		logger:    config.Logger.With("component", "runner"),
		telemetry: config.Telemetry,
		state:     StateInit,
		positions: make(map[string]source.Position),
	}, nil
}

func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Partitions returns the partitions discovered by Init.
func (r *Runner) Partitions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.partitions...)
}

// Position returns where the next fetch of partition starts.
func (r *Runner) Position(partition string) (source.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[partition]
	return p, ok
}

// Init discovers partitions and resumes each from its checkpoint, or from the
// configured start position when none exists.
func (r *Runner) Init(ctx context.Context) error {
	if s := r.State(); s != StateInit {
		return fmt.Errorf("runner: init in state %s", s)
	}

	partitions, err := r.source.ListPartitions(ctx)
	if err != nil {
		r.setState(StateFailed)
		return fmt.Errorf("list partitions: %w", err)
	}
	if len(partitions) == 0 {
		r.setState(StateFailed)
		return ErrNoPartitions
	}

	positions := make(map[string]source.Position, len(partitions))
	for _, p := range partitions {
		cp, ok, err := r.store.Load(ctx, p)
		if err != nil {
			r.setState(StateFailed)
			return fmt.Errorf("load checkpoint for partition %s: %w", p, err)
		}
		if ok {
			positions[p] = cp.Position
			r.logger.Info("Resuming partition from checkpoint", "partition", p, "position", cp.Position.String())
			continue
		}
		positions[p] = r.config.StartPosition
		r.logger.Info(
			"No checkpoint for partition, using start position", "partition", p,
			"position", r.config.StartPosition.String(),
		)
	}

	err = r.processor.Configure(
		processor.Config{
			Logger:    r.config.Logger,
			Telemetry: r.telemetry,
			ErrorHandler: errorhandler.NewPhaseRouter(
				r.config.ErrorHandler, r.config.DecodeErrorHandler,
				r.config.TransformErrorHandler, r.config.SerialiseErrorHandler,
			),
		},
	)
	if err != nil {
		r.setState(StateFailed)
		return fmt.Errorf("configure processor: %w", err)
	}

	r.mu.Lock()
	r.partitions = append([]string(nil), partitions...)
	r.positions = positions
	r.state = StateRunning
	r.mu.Unlock()

	r.telemetry.PartitionsActive.Add(ctx, int64(len(partitions)))
	r.logger.Info("Runner initialised", "partitions", len(partitions))
	return nil
}

// Run initialises the runner if needed and ticks every batch interval until
// ctx is cancelled (StateStopped, nil error) or a tick fails (StateFailed).
func (r *Runner) Run(ctx context.Context) error {
	if r.State() == StateInit {
		if err := r.Init(ctx); err != nil {
			if ctx.Err() != nil {
				r.stop(ctx)
				return nil
			}
			return err
		}
	}
	if s := r.State(); s != StateRunning {
		return fmt.Errorf("runner: run in state %s: %w", s, ErrNotRunning)
	}

	ticker := time.NewTicker(r.config.BatchInterval)
	defer ticker.Stop()

	r.logger.Info("Runner started", "batch_interval", r.config.BatchInterval.String())

	for {
		select {
		case <-ctx.Done():
			r.stop(ctx)
			return nil

		case at := <-ticker.C:
			if _, err := r.Tick(ctx, at); err != nil {
				if ctx.Err() != nil && !isTickFailure(err) {
					r.stop(ctx)
					return nil
				}
				r.logger.Error("Tick failed, stopping runner", "error", err)
				r.telemetry.PartitionsActive.Add(context.WithoutCancel(ctx), -int64(len(r.Partitions())))
				return err
			}
		}
	}
}

func (r *Runner) stop(ctx context.Context) {
	prev := r.State()
	r.setState(StateStopped)
	if prev == StateRunning {
		r.telemetry.PartitionsActive.Add(context.WithoutCancel(ctx), -int64(len(r.Partitions())))
	}
	r.logger.Info("Runner stopped")
}

func isTickFailure(err error) bool {
	_, ok := AsTickError(err)
	return ok
}

// Tick runs one FETCH, TRANSFORM, WRITE, CHECKPOINT cycle over all partitions.
// at names the tick and its output location. A failed partition leaves its
// checkpoint unchanged and moves the runner to StateFailed with a *TickError.
// Cancellation aborts partitions that have not started writing; the tick then
// returns ctx.Err() unless a partition failed.
func (r *Runner) Tick(ctx context.Context, at time.Time) (TickSummary, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	if s := r.State(); s != StateRunning {
		return TickSummary{}, fmt.Errorf("runner: tick in state %s: %w", s, ErrNotRunning)
	}

	tickID := at.UnixMilli()
	started := time.Now()
	tel := r.telemetry
	l := r.logger.With("tick", tickID)

	ctx, span := tel.Tracer.Start(
		ctx, "tick",
		trace.WithAttributes(otel.AttrTickID.Int64(tickID)),
	)
	defer span.End()

	r.mu.RLock()
	partitions := append([]string(nil), r.partitions...)
	positions := make(map[string]source.Position, len(r.positions))
	for p, pos := range r.positions {
		positions[p] = pos
	}
	r.mu.RUnlock()

	outcomes := make([]partitionOutcome, len(partitions))
	var g errgroup.Group
	g.SetLimit(len(partitions))
	for i, p := range partitions {
		g.Go(
			func() error {
				outcomes[i] = r.runPartition(ctx, tickID, p, positions[p])
				return nil
			},
		)
	}
	_ = g.Wait()

	// every partition has finished writing; checkpoint the ones that may advance
	cpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.WriteTimeout)
	defer cancel()

	summary := TickSummary{TickID: tickID, Started: at}
	var failures []*PartitionFailure
	for i := range outcomes {
		o := &outcomes[i]
		if o.failure == nil && o.advance {
			err := r.store.Save(
				cpCtx, checkpoint.Checkpoint{
					Partition: o.summary.Partition,
					Position:  o.summary.To,
					TickID:    tickID,
					UpdatedAt: time.Now(),
				},
			)
			if err != nil {
				o.failure = &PartitionFailure{
					Partition: o.summary.Partition, Position: o.summary.From, Stage: StageCheckpoint, Err: err,
				}
			} else {
				o.summary.Checkpointed = true
				r.mu.Lock()
				r.positions[o.summary.Partition] = o.summary.To
				r.mu.Unlock()
			}
		}
		if o.failure != nil {
			failures = append(failures, o.failure)
		}
		summary = summary.with(o.summary)
	}
	sort.Slice(summary.Partitions, func(i, j int) bool { return summary.Partitions[i].Partition < summary.Partitions[j].Partition })
	summary.Duration = time.Since(started)

	tel.TickDuration.Record(cpCtx, summary.Duration.Seconds())

	if len(failures) > 0 {
		err := &TickError{TickID: tickID, Failures: failures}
		r.setState(StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tel.Ticks.Add(cpCtx, 1, metric.WithAttributes(otel.AttrTickStatus.String(otel.StatusFailed)))
		for _, f := range failures {
			l.Error(
				"Partition failed, checkpoint not advanced", "partition", f.Partition,
				"position", f.Position.String(), "stage", string(f.Stage), "error", f.Err,
			)
		}
		return summary, err
	}

	if summary.PartitionsAborted > 0 {
		tel.Ticks.Add(cpCtx, 1, metric.WithAttributes(otel.AttrTickStatus.String(otel.StatusStopped)))
		l.Info("Tick aborted by cancellation", "aborted", summary.PartitionsAborted)
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		return summary, context.Canceled
	}

	tel.Ticks.Add(cpCtx, 1, metric.WithAttributes(otel.AttrTickStatus.String(otel.StatusSuccess)))
	l.Info(
		"Tick complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"written", summary.Written,
		"partitions_written", summary.PartitionsWritten,
		"bytes", humanize.Bytes(uint64(summary.Bytes)),
		"duration", summary.Duration.String(),
	)
	return summary, nil
}

type partitionOutcome struct {
	summary PartitionSummary
	// advance is set when the checkpoint may move to summary.To
	advance bool
	failure *PartitionFailure
}

func (r *Runner) runPartition(ctx context.Context, tickID int64, partition string, pos source.Position) partitionOutcome {
	tel := r.telemetry
	attrs := metric.WithAttributes(otel.AttrPartition.String(partition))
	l := r.logger.With("tick", tickID, "partition", partition)

	ctx, span := tel.Tracer.Start(
		ctx, "partition "+partition,
		trace.WithAttributes(otel.AttrPartition.String(partition), otel.AttrTickID.Int64(tickID)),
	)
	defer span.End()

	out := partitionOutcome{summary: PartitionSummary{Partition: partition, From: pos, To: pos}}
	fail := func(stage Stage, err error) partitionOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.failure = &PartitionFailure{Partition: partition, Position: pos, Stage: stage, Err: err}
		return out
	}
	abort := func() partitionOutcome {
		l.Debug("Partition aborted before write")
		span.SetAttributes(attribute.Bool("logstream.aborted", true))
		out.summary.Aborted = true
		return out
	}

	// FETCH
	fetchStart := time.Now()
	entries, next, err := r.source.FetchBatch(ctx, partition, pos, r.config.BatchInterval)
	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
	}
	tel.FetchDuration.Record(
		ctx, time.Since(fetchStart).Seconds(), metric.WithAttributes(
			otel.AttrPartition.String(partition), otel.AttrFetchStatus.String(status),
		),
	)
	if err != nil {
		if ctx.Err() != nil {
			return abort()
		}
		return fail(StageFetch, err)
	}
	out.summary.To = next
	tel.RecordsConsumed.Add(ctx, int64(len(entries)), attrs)

	// TRANSFORM
	processStart := time.Now()
	res, err := r.processor.ProcessBatch(ctx, processor.Batch{Partition: partition, TickID: tickID, Entries: entries})
	tel.ProcessDuration.Record(ctx, time.Since(processStart).Seconds(), attrs)
	if err != nil {
		if ctx.Err() != nil {
			return abort()
		}
		return fail(StageProcess, err)
	}
	out.summary.Consumed = res.Consumed
	out.summary.Skipped = res.Skipped
	out.summary.SkippedByPhase = res.SkippedByPhase
	tel.RecordsSkipped.Add(ctx, int64(res.Skipped), attrs)

	if ctx.Err() != nil {
		return abort()
	}

	// WRITE, not cancellable once started
	if len(res.Records) > 0 {
		path := fmt.Sprintf("%s-%d/part-%s", r.config.OutputPrefix, tickID, partition)
		out.summary.Path = path

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.WriteTimeout)
		writeStart := time.Now()
		err := r.sink.WriteBatch(wctx, path, res.Records)
		cancel()

		status := otel.StatusSuccess
		if err != nil {
			status = otel.StatusFailed
		}
		tel.WriteDuration.Record(
			wctx, time.Since(writeStart).Seconds(), metric.WithAttributes(
				otel.AttrPartition.String(partition), otel.AttrWriteStatus.String(status),
			),
		)
		if err != nil {
			return fail(StageWrite, err)
		}

		out.summary.Wrote = true
		out.summary.Written = len(res.Records)
		out.summary.Bytes = res.Bytes
		tel.RecordsWritten.Add(wctx, int64(len(res.Records)), attrs)
		tel.BytesWritten.Add(wctx, res.Bytes, attrs)
		l.Debug("Batch written", "path", path, "records", len(res.Records))
	}

	out.advance = out.summary.Wrote || !next.Equal(pos)
	return out
}
