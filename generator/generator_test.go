//go:build unit

package generator_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/netip"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hugolhafner/logstream/generator"
	mocklogger "github.com/hugolhafner/logstream/logger/mock"
	"github.com/hugolhafner/logstream/record"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2017, time.January, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordingTransport struct {
	mu       sync.Mutex
	keys     []string
	payloads [][]byte
	failAt   int
	onPut    func(n int)
}

func (t *recordingTransport) PutRecord(_ context.Context, key string, payload []byte) (generator.PutResult, error) {
	t.mu.Lock()
	n := len(t.payloads) + 1
	if t.failAt > 0 && n == t.failAt {
		t.mu.Unlock()
		return generator.PutResult{}, errors.New("shard unavailable")
	}
	t.keys = append(t.keys, key)
	t.payloads = append(t.payloads, payload)
	onPut := t.onPut
	t.mu.Unlock()

	if onPut != nil {
		onPut(n)
	}
	return generator.PutResult{ShardID: "shard-0", SequenceNumber: strconv.Itoa(n)}, nil
}

func newGenerator(t *testing.T, tr generator.Transport, opts ...generator.Option) *generator.Generator {
	t.Helper()
	g, err := generator.New(tr, opts...)
	require.NoError(t, err)
	return g
}

func TestGenerator_RunEmitsInTicks(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	tr := &recordingTransport{}
	g := newGenerator(t, tr, generator.WithSeed(42), generator.WithClock(clock))

	summary, err := g.Run(context.Background(), 5, 12)
	require.NoError(t, err)

	require.Equal(t, 12, summary.Emitted)
	require.Equal(t, []int{5, 5, 2}, summary.TickCounts)
	require.Len(t, tr.payloads, 12)
	require.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())

	for _, p := range tr.payloads {
		_, err := record.Parse(string(p))
		require.NoError(t, err, string(p))
	}
}

func TestGenerator_RunExactMultipleHasNoTrailingSleep(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	g := newGenerator(t, &recordingTransport{}, generator.WithSeed(1), generator.WithClock(clock))

	summary, err := g.Run(context.Background(), 3, 6)
	require.NoError(t, err)
	require.Equal(t, []int{3, 3}, summary.TickCounts)
	require.Len(t, clock.Sleeps(), 1)
}

func TestGenerator_RunFailsFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rate  int
		total int
		want  error
	}{
		{"zero rate", 0, 10, generator.ErrInvalidRate},
		{"negative rate", -1, 10, generator.ErrInvalidRate},
		{"zero total", 5, 0, generator.ErrInvalidCount},
		{"negative total", 5, -3, generator.ErrInvalidCount},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				tr := &recordingTransport{}
				g := newGenerator(t, tr, generator.WithClock(newFakeClock()))

				summary, err := g.Run(context.Background(), tt.rate, tt.total)
				require.ErrorIs(t, err, tt.want)
				require.Zero(t, summary.Emitted)
				require.Empty(t, tr.payloads)
			},
		)
	}
}

func TestGenerator_RunWithoutTransport(t *testing.T) {
	t.Parallel()
	g := newGenerator(t, nil)
	_, err := g.Run(context.Background(), 1, 1)
	require.ErrorIs(t, err, generator.ErrNoTransport)
}

func TestGenerator_RunStopsOnTransportError(t *testing.T) {
	t.Parallel()
	log := mocklogger.New()
	tr := &recordingTransport{failAt: 4}
	g := newGenerator(t, tr, generator.WithClock(newFakeClock()), generator.WithLogger(log))

	summary, err := g.Run(context.Background(), 10, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "shard unavailable")
	require.Equal(t, 3, summary.Emitted)
	log.AssertCalledWithMessage(t, "Failed to put record")
}

func TestGenerator_RunHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &recordingTransport{
		onPut: func(n int) {
			if n == 5 {
				cancel()
			}
		},
	}
	g := newGenerator(t, tr, generator.WithClock(newFakeClock()))

	summary, err := g.Run(ctx, 5, 100)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 5, summary.Emitted)
}

func TestGenerator_SeedIsReproducible(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	a := newGenerator(t, nil, generator.WithSeed(7), generator.WithClock(clock))
	b := newGenerator(t, nil, generator.WithSeed(7), generator.WithClock(clock))
	c := newGenerator(t, nil, generator.WithSeed(8), generator.WithClock(clock))

	var differs bool
	for i := 0; i < 20; i++ {
		la, lb, lc := a.GenerateLine(), b.GenerateLine(), c.GenerateLine()
		require.Equal(t, la, lb)
		if la != lc {
			differs = true
		}
	}
	require.True(t, differs)
}

func TestGenerator_PartitionKeys(t *testing.T) {
	t.Parallel()

	fixed := &recordingTransport{}
	_, err := newGenerator(t, fixed, generator.WithPartitionKey("thekey"), generator.WithClock(newFakeClock())).
		Run(context.Background(), 4, 4)
	require.NoError(t, err)
	for _, k := range fixed.keys {
		require.Equal(t, "thekey", k)
	}

	random := &recordingTransport{}
	_, err = newGenerator(t, random, generator.WithClock(newFakeClock())).Run(context.Background(), 4, 4)
	require.NoError(t, err)
	seen := map[string]struct{}{}
	for _, k := range random.keys {
		require.Len(t, k, 36)
		seen[k] = struct{}{}
	}
	require.Len(t, seen, 4)
}

func TestGenerator_RecordFieldsComeFromDistributions(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	g := newGenerator(t, nil, generator.WithSeed(99), generator.WithClock(clock))

	methods := map[string]bool{"GET": true, "POST": true, "PUT": true}
	statuses := map[int]bool{200: true, 404: true, 401: true, 403: true}

	for i := 0; i < 200; i++ {
		r, err := record.Parse(g.GenerateLine())
		require.NoError(t, err)

		require.True(t, methods[r.Method()], r.Method())
		require.True(t, statuses[r.Status()], r.Status())
		require.GreaterOrEqual(t, r.Bytes(), int64(0))
		require.Less(t, r.Bytes(), int64(generator.DefaultMaxBytes))
		require.True(t, r.Timestamp().Equal(clock.Now()))

		addr, err := netip.ParseAddr(r.ClientAddress())
		require.NoError(t, err)
		require.True(t, addr.Is4() && addr.IsPrivate(), r.ClientAddress())
	}
}

func TestGenerator_RoundTripExceptReferer(t *testing.T) {
	t.Parallel()
	g := newGenerator(t, nil, generator.WithSeed(3), generator.WithClock(newFakeClock()))

	for i := 0; i < 50; i++ {
		r := g.Record()
		parsed, err := record.Parse(record.Serialize(r))
		require.NoError(t, err)
		require.True(t, r.Equal(parsed))
	}
}

func TestDistribution(t *testing.T) {
	t.Parallel()

	_, err := generator.NewDistribution[string]()
	require.ErrorIs(t, err, generator.ErrEmptyDistribution)

	_, err = generator.NewDistribution(generator.W("a", 1), generator.W("b", 0))
	require.ErrorIs(t, err, generator.ErrInvalidWeight)

	d, err := generator.NewDistribution(generator.W("a", 3), generator.W("b", 1))
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[d.Sample(r)]++
	}
	require.InDelta(t, 7500, counts["a"], 300)
	require.InDelta(t, 2500, counts["b"], 300)
}

func TestNew_RejectsUnwritableValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  generator.Option
	}{
		{
			"quoted user agent",
			generator.WithUserAgents(generator.MustDistribution(generator.W("Mozilla \"quoted\"", 1))),
		},
		{
			"resource with space",
			generator.WithResources(generator.MustDistribution(generator.W("/a b", 1))),
		},
		{
			"method with tab",
			generator.WithMethods(generator.MustDistribution(generator.W("GE\tT", 1), generator.W("GET", 1))),
		},
		{
			"empty method",
			generator.WithMethods(generator.MustDistribution(generator.W("", 1))),
		},
		{
			"negative status",
			generator.WithStatuses(generator.MustDistribution(generator.W(-1, 1))),
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				g, err := generator.New(nil, generator.WithSeed(1), tt.opt)
				require.ErrorIs(t, err, generator.ErrInvalidConfig)
				require.Nil(t, g)
			},
		)
	}
}

func TestGenerator_ZeroSeedIsReproducible(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	a := newGenerator(t, nil, generator.WithSeed(0), generator.WithClock(clock))
	b := newGenerator(t, nil, generator.WithSeed(0), generator.WithClock(clock))

	for i := 0; i < 20; i++ {
		require.Equal(t, a.GenerateLine(), b.GenerateLine())
	}
}
