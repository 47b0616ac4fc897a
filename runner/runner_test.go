//go:build unit

package runner_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hugolhafner/logstream/checkpoint"
	"github.com/hugolhafner/logstream/errorhandler"
	mocklogger "github.com/hugolhafner/logstream/logger/mock"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/processor"
	mockprocessor "github.com/hugolhafner/logstream/processor/mock"
	"github.com/hugolhafner/logstream/runner"
	mocksink "github.com/hugolhafner/logstream/sink/mock"
	"github.com/hugolhafner/logstream/source"
	mocksource "github.com/hugolhafner/logstream/source/mock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const validLine = `203.0.113.101 - - [10/Jan/2017:08:00:00 +0000] "GET /index.html HTTP/1.0" 200 123 "http://example.com" "MyBrowser"`

var tickAt = time.UnixMilli(1700000000000)

func lines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = validLine
	}
	return out
}

type fixture struct {
	src   *mocksource.Log
	snk   *mocksink.Sink
	store *checkpoint.MemoryStore
	log   *mocklogger.MockLogger
}

func newFixture(partitions int, opts ...mocksource.Option) *fixture {
	return &fixture{
		src:   mocksource.NewPartitions(partitions, opts...),
		snk:   mocksink.New(),
		store: checkpoint.NewMemoryStore(),
		log:   mocklogger.New(),
	}
}

func (f *fixture) runner(t *testing.T, opts ...runner.Option) *runner.Runner {
	t.Helper()
	base := []runner.Option{
		runner.WithLogger(f.log),
		runner.WithStartPosition(source.Earliest()),
		runner.WithBatchInterval(10 * time.Millisecond),
	}
	r, err := runner.New(f.src, f.snk, f.store, processor.NewLogProcessor(), append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func (f *fixture) initRunner(t *testing.T, opts ...runner.Option) *runner.Runner {
	t.Helper()
	r := f.runner(t, opts...)
	require.NoError(t, r.Init(context.Background()))
	require.Equal(t, runner.StateRunning, r.State())
	return r
}

func (f *fixture) checkpointOf(t *testing.T, partition string) (checkpoint.Checkpoint, bool) {
	t.Helper()
	cp, ok, err := f.store.Load(context.Background(), partition)
	require.NoError(t, err)
	return cp, ok
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := runner.New(nil, mocksink.New(), checkpoint.NewMemoryStore(), processor.NewLogProcessor())
	require.Error(t, err)
}

func TestInit(t *testing.T) {
	t.Parallel()

	t.Run("uses start position without checkpoint", func(t *testing.T) {
		t.Parallel()
		f := newFixture(2)
		r := f.runner(t, runner.WithStartPosition(source.Latest()))
		require.Equal(t, runner.StateInit, r.State())
		require.NoError(t, r.Init(context.Background()))

		require.Equal(t, []string{"0", "1"}, r.Partitions())
		pos, ok := r.Position("1")
		require.True(t, ok)
		require.True(t, pos.Equal(source.Latest()))
	})

	t.Run("resumes from checkpoint", func(t *testing.T) {
		t.Parallel()
		f := newFixture(2)
		require.NoError(
			t, f.store.Save(
				context.Background(), checkpoint.Checkpoint{Partition: "0", Position: source.AtOffset(7)},
			),
		)
		r := f.initRunner(t)

		pos, _ := r.Position("0")
		require.True(t, pos.Equal(source.AtOffset(7)))
		pos, _ = r.Position("1")
		require.True(t, pos.Equal(source.Earliest()))
	})

	t.Run("list error fails", func(t *testing.T) {
		t.Parallel()
		f := newFixture(1, mocksource.WithListError(errors.New("broker down")))
		r := f.runner(t)
		err := r.Init(context.Background())
		require.Error(t, err)
		_, ok := source.AsUnavailableError(err)
		require.True(t, ok)
		require.Equal(t, runner.StateFailed, r.State())
	})

	t.Run("no partitions fails", func(t *testing.T) {
		t.Parallel()
		f := newFixture(1)
		r, err := runner.New(
			emptySource{}, f.snk, f.store, processor.NewLogProcessor(), runner.WithLogger(f.log),
		)
		require.NoError(t, err)
		require.ErrorIs(t, r.Init(context.Background()), runner.ErrNoPartitions)
		require.Equal(t, runner.StateFailed, r.State())
	})

	t.Run("configures processor with handlers", func(t *testing.T) {
		t.Parallel()
		f := newFixture(1)
		proc := mockprocessor.New()
		proc.On(
			"Configure", mock.MatchedBy(
				func(cfg processor.Config) bool {
					_, ok := cfg.ErrorHandler.(*errorhandler.PhaseRouter)
					return ok && cfg.Logger != nil && cfg.Telemetry != nil
				},
			),
		).Return(nil).Once()

		r, err := runner.New(f.src, f.snk, f.store, proc)
		require.NoError(t, err)
		require.NoError(t, r.Init(context.Background()))
		proc.AssertExpectations(t)
	})

	t.Run("twice is rejected", func(t *testing.T) {
		t.Parallel()
		r := newFixture(1).initRunner(t)
		require.Error(t, r.Init(context.Background()))
	})
}

type emptySource struct{}

func (emptySource) ListPartitions(context.Context) ([]string, error) { return nil, nil }

func (emptySource) FetchBatch(
	context.Context, string, source.Position, time.Duration,
) ([]source.Entry, source.Position, error) {
	return nil, source.Position{}, nil
}

func TestTick_WritesAndCheckpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(2)
	f.src.AppendStrings("0", lines(3)...)
	f.src.AppendStrings("1", lines(5)...)
	r := f.initRunner(t, runner.WithOutputPrefix("out"))

	summary, err := r.Tick(context.Background(), tickAt)
	require.NoError(t, err)

	require.Equal(t, int64(1700000000000), summary.TickID)
	require.Equal(t, 8, summary.Processed)
	require.Equal(t, 8, summary.Written)
	require.Equal(t, 2, summary.PartitionsWritten)
	require.Positive(t, summary.Bytes)

	f.snk.AssertWritten(t, "out-1700000000000/part-0", 3)
	f.snk.AssertWritten(t, "out-1700000000000/part-1", 5)
	f.snk.AssertUniqueKeys(t)

	for p, want := range map[string]int64{"0": 3, "1": 5} {
		cp, ok := f.checkpointOf(t, p)
		require.True(t, ok)
		require.True(t, cp.Position.Equal(source.AtOffset(want)))
		require.Equal(t, summary.TickID, cp.TickID)

		pos, _ := r.Position(p)
		require.True(t, pos.Equal(source.AtOffset(want)))
	}

	for _, rec := range f.snk.Records("out-1700000000000/part-0") {
		require.Contains(t, string(rec.Value), `"OTHER"`)
		require.NotContains(t, string(rec.Value), "203.0.113.101")
	}

	f.log.AssertCalledWithMessage(t, "Tick complete")
}

func TestTick_NextTickContinuesFromCheckpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.src.AppendStrings("0", lines(4)...)
	r := f.initRunner(t)

	_, err := r.Tick(context.Background(), tickAt)
	require.NoError(t, err)

	f.src.AppendStrings("0", lines(2)...)
	summary, err := r.Tick(context.Background(), tickAt.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Written)
	f.src.AssertFetchedFrom(t, "0", source.AtOffset(4))

	cp, _ := f.checkpointOf(t, "0")
	require.True(t, cp.Position.Equal(source.AtOffset(6)))
}

func TestTick_EmptyBatchSkipsWrite(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	r := f.initRunner(t)

	summary, err := r.Tick(context.Background(), tickAt)
	require.NoError(t, err)
	require.Zero(t, summary.PartitionsWritten)
	f.snk.AssertNoWrites(t)

	// position did not move, nothing to checkpoint
	_, ok := f.checkpointOf(t, "0")
	require.False(t, ok)
}

func TestTick_AllMalformedAdvancesCheckpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.src.AppendStrings("0", "garbage", "more garbage")
	r := f.initRunner(t, runner.WithErrorHandler(errorhandler.SilentContinue()))

	summary, err := r.Tick(context.Background(), tickAt)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Skipped)
	f.snk.AssertNoWrites(t)

	cp, ok := f.checkpointOf(t, "0")
	require.True(t, ok)
	require.True(t, cp.Position.Equal(source.AtOffset(2)))
}

func TestTick_MalformedIsolation(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	const n, k = 20, 4
	for i := range n {
		if i%5 == 0 {
			f.src.AppendStrings("0", "not a log line "+fmt.Sprint(i))
			continue
		}
		f.src.AppendStrings("0", validLine)
	}
	r := f.initRunner(t)

	summary, err := r.Tick(context.Background(), tickAt)
	require.NoError(t, err)
	require.Equal(t, n, summary.Processed)
	require.Equal(t, k, summary.Skipped)
	require.Equal(t, n-k, summary.Written)

	ps, ok := summary.Partition("0")
	require.True(t, ok)
	require.Equal(t, k, ps.SkippedByPhase[errorhandler.PhaseDecode])

	cp, _ := f.checkpointOf(t, "0")
	require.True(t, cp.Position.Equal(source.AtOffset(n)))
	require.Equal(t, k, f.log.CountMessage("error processing entry, skipping"))
}

func TestTick_WriteFailureLeavesCheckpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(2)
	f.src.AppendStrings("0", lines(3)...)
	f.src.AppendStrings("1", lines(3)...)
	r := f.initRunner(t)

	_, err := r.Tick(context.Background(), tickAt)
	require.NoError(t, err)

	f.src.AppendStrings("0", lines(2)...)
	f.src.AppendStrings("1", lines(2)...)
	boom := errors.New("disk full")
	f.snk.SetWriteError(
		func(path string) error {
			if strings.HasSuffix(path, "part-1") {
				return boom
			}
			return nil
		},
	)

	summary, err := r.Tick(context.Background(), tickAt.Add(time.Second))
	require.Error(t, err)
	require.ErrorIs(t, err, boom)

	te, ok := runner.AsTickError(err)
	require.True(t, ok)
	require.Len(t, te.Failures, 1)
	require.Equal(t, "1", te.Failures[0].Partition)
	require.Equal(t, runner.StageWrite, te.Failures[0].Stage)
	require.True(t, te.Failures[0].Position.Equal(source.AtOffset(3)))
	require.Equal(t, runner.StateFailed, r.State())

	// failed partition stays at the pre-tick position
	cp, _ := f.checkpointOf(t, "1")
	require.True(t, cp.Position.Equal(source.AtOffset(3)))
	pos, _ := r.Position("1")
	require.True(t, pos.Equal(source.AtOffset(3)))

	// successful partition still advances
	cp, _ = f.checkpointOf(t, "0")
	require.True(t, cp.Position.Equal(source.AtOffset(5)))
	ps, _ := summary.Partition("0")
	require.True(t, ps.Checkpointed)

	f.log.AssertCalledWithMessage(t, "Partition failed, checkpoint not advanced")

	_, err = r.Tick(context.Background(), tickAt.Add(2*time.Second))
	require.ErrorIs(t, err, runner.ErrNotRunning)
}

func TestTick_ResumeAfterFailureRewritesSameBatch(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.src.AppendStrings("0", lines(3)...)
	f.snk.SetWriteError(func(string) error { return errors.New("unavailable") })

	r := f.initRunner(t)
	_, err := r.Tick(context.Background(), tickAt)
	require.Error(t, err)
	_, ok := f.checkpointOf(t, "0")
	require.False(t, ok)

	f.snk.SetWriteError(nil)
	restarted := f.initRunner(t)
	_, err = restarted.Tick(context.Background(), tickAt.Add(time.Second))
	require.NoError(t, err)

	f.snk.AssertTotal(t, 3)
	cp, _ := f.checkpointOf(t, "0")
	require.True(t, cp.Position.Equal(source.AtOffset(3)))
}

func TestTick_FetchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(2, mocksource.WithPartitionFetchError("0", errors.New("leader not available")))
	f.src.AppendStrings("1", lines(2)...)
	r := f.initRunner(t)

	_, err := r.Tick(context.Background(), tickAt)
	require.Error(t, err)

	_, ok := source.AsUnavailableError(err)
	require.True(t, ok)
	te, ok := runner.AsTickError(err)
	require.True(t, ok)
	require.Equal(t, runner.StageFetch, te.Failures[0].Stage)
	require.Equal(t, runner.StateFailed, r.State())

	_, ok = f.checkpointOf(t, "0")
	require.False(t, ok)
	f.snk.AssertWritten(t, fmt.Sprintf("logs-%d/part-1", tickAt.UnixMilli()), 2)
}

func TestTick_CheckpointFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.src.AppendStrings("0", lines(2)...)
	f.store.SetSaveError(func(checkpoint.Checkpoint) error { return errors.New("store offline") })
	r := f.initRunner(t)

	_, err := r.Tick(context.Background(), tickAt)
	te, ok := runner.AsTickError(err)
	require.True(t, ok)
	require.Equal(t, runner.StageCheckpoint, te.Failures[0].Stage)

	// the batch reached the sink but the position is not advanced
	f.snk.AssertTotal(t, 2)
	pos, _ := r.Position("0")
	require.True(t, pos.Equal(source.Earliest()))
}

func TestTick_ProcessorFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.src.AppendStrings("0", validLine, "broken")
	r := f.initRunner(t, runner.WithDecodeErrorHandler(errorhandler.SilentFail()))

	_, err := r.Tick(context.Background(), tickAt)
	te, ok := runner.AsTickError(err)
	require.True(t, ok)
	require.Equal(t, runner.StageProcess, te.Failures[0].Stage)
	_, ok = processor.AsEntryError(err)
	require.True(t, ok)
	f.snk.AssertNoWrites(t)
}

func TestTick_Cancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(2)
	f.src.AppendStrings("0", lines(2)...)
	r := f.initRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Tick(ctx, tickAt)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, summary.PartitionsAborted)
	f.snk.AssertNoWrites(t)
	require.Zero(t, f.store.Saves())
	require.Equal(t, runner.StateRunning, r.State())
}

func TestTick_WriteInFlightCompletesAfterCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.snk = mocksink.New(mocksink.WithWriteDelay(50 * time.Millisecond))
	f.src.AppendStrings("0", lines(2)...)
	r := f.initRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := r.Tick(ctx, tickAt)
	require.NoError(t, err)
	f.snk.AssertTotal(t, 2)
	cp, ok := f.checkpointOf(t, "0")
	require.True(t, ok)
	require.True(t, cp.Position.Equal(source.AtOffset(2)))
}

func TestTick_RequiresInit(t *testing.T) {
	t.Parallel()
	r := newFixture(1).runner(t)
	_, err := r.Tick(context.Background(), tickAt)
	require.ErrorIs(t, err, runner.ErrNotRunning)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(2)
	f.src.AppendStrings("0", lines(3)...)
	f.src.AppendStrings("1", lines(1)...)
	r := f.runner(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return f.store.Saves() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	require.Equal(t, runner.StateStopped, r.State())
	f.snk.AssertTotal(t, 4)
	f.log.AssertCalledWithMessage(t, "Runner stopped")
}

func TestRun_ReturnsTickFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(1)
	f.src.AppendStrings("0", lines(1)...)
	f.snk.SetWriteError(func(string) error { return errors.New("no space") })
	r := f.runner(t)

	err := r.Run(context.Background())
	_, ok := runner.AsTickError(err)
	require.True(t, ok)
	require.Equal(t, runner.StateFailed, r.State())
}

func TestRun_InitFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(1, mocksource.WithListError(errors.New("down")))
	r := f.runner(t)
	require.Error(t, r.Run(context.Background()))
	require.Equal(t, runner.StateFailed, r.State())
}

func TestTick_Telemetry(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer mp.Shutdown(context.Background())
	defer tp.Shutdown(context.Background())

	tel, err := otel.NewTelemetry(tp, mp, nil)
	require.NoError(t, err)

	f := newFixture(1)
	f.src.AppendStrings("0", validLine, "bad", validLine)
	r := f.initRunner(t, runner.WithTelemetry(tel))

	_, err = r.Tick(context.Background(), tickAt)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	require.Equal(t, int64(1), sums["logstream.ticks"])
	require.Equal(t, int64(3), sums["logstream.records.consumed"])
	require.Equal(t, int64(2), sums["logstream.records.written"])
	require.Equal(t, int64(1), sums["logstream.records.skipped"])
	require.Equal(t, int64(1), sums["logstream.partitions.active"])

	spans := map[string]bool{}
	for _, s := range exporter.GetSpans() {
		spans[s.Name] = true
	}
	require.True(t, spans["tick"])
	require.True(t, spans["partition 0"])
}
