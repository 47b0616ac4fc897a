package generator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/record"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrInvalidRate  = errors.New("target rate must be positive")
	ErrInvalidCount = errors.New("total count must be positive")
	ErrNoTransport  = errors.New("generator has no transport")
)

// RunSummary reports what a Run emitted.
type RunSummary struct {
	Emitted int
	// TickCounts holds the number of records emitted in each one-second tick.
	TickCounts []int
	Elapsed    time.Duration
}

// Generator synthesizes access-log lines from weighted distributions.
type Generator struct {
	transport Transport
	config    Config
	logger    logger.Logger

	mu     sync.Mutex
	src    *rand.ChaCha8
	random *rand.Rand
}

// New creates a generator. transport may be nil when only GenerateLine is used.
// Every configured distribution value must be writable as its log-line field.
func New(transport Transport, opts ...Option) (*Generator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if !cfg.Seeded {
		seed = rand.Uint64()
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)

	return &Generator{
		transport: transport,
		config:    cfg,
		logger:    cfg.Logger.With("component", "generator"),
		src:       src,
		random:    rand.New(src),
	}, nil
}

// Record draws a fresh record stamped with the clock's current time.
func (g *Generator) Record() record.LogRecord {
	r, _ := g.draw()
	return r
}

// GenerateLine draws one serialized log line, referer included.
func (g *Generator) GenerateLine() string {
	r, referer := g.draw()
	return record.SerializeWithReferer(r, referer)
}

func (g *Generator) draw() (record.LogRecord, string) {
	now := g.config.Clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	addr := g.privateIPv4()
	method := g.config.Methods.Sample(g.random)
	resource := g.config.Resources.Sample(g.random)
	status := g.config.Statuses.Sample(g.random)
	bytes := g.random.Int64N(g.config.MaxBytes)
	referer := g.config.Referers.Sample(g.random)
	ua := g.config.UserAgents.Sample(g.random)

	// field values were checked by New
	return record.MustNew(addr, now, method, resource, status, bytes, ua), referer
}

// privateIPv4 samples from 10/8, 172.16/12 or 192.168/16. Caller holds mu.
func (g *Generator) privateIPv4() string {
	host := func() int { return 1 + g.random.IntN(254) }
	switch g.random.IntN(3) {
	case 0:
		return fmt.Sprintf("10.%d.%d.%d", g.random.IntN(256), g.random.IntN(256), host())
	case 1:
		return fmt.Sprintf("172.%d.%d.%d", 16+g.random.IntN(16), g.random.IntN(256), host())
	default:
		return fmt.Sprintf("192.168.%d.%d", g.random.IntN(256), host())
	}
}

func (g *Generator) partitionKey() string {
	if g.config.PartitionKey != "" {
		return g.config.PartitionKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run emits totalCount lines at roughly targetRate per second. Each tick emits
// min(remaining, targetRate) lines and sleeps out the rest of its second; no
// sleep follows the final tick.
func (g *Generator) Run(ctx context.Context, targetRate, totalCount int) (RunSummary, error) {
	if targetRate <= 0 {
		return RunSummary{}, fmt.Errorf("rate %d: %w", targetRate, ErrInvalidRate)
	}
	if totalCount <= 0 {
		return RunSummary{}, fmt.Errorf("count %d: %w", totalCount, ErrInvalidCount)
	}
	if g.transport == nil {
		return RunSummary{}, ErrNoTransport
	}

	clock := g.config.Clock
	started := clock.Now()
	summary := RunSummary{}
	remaining := totalCount

	g.logger.Info("Starting generator", "rate", targetRate, "total", totalCount)

	for remaining > 0 {
		tickStart := clock.Now()
		n := min(remaining, targetRate)

		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				summary.Elapsed = clock.Now().Sub(started)
				return summary, err
			}

			if err := g.put(ctx); err != nil {
				summary.Elapsed = clock.Now().Sub(started)
				return summary, err
			}
			summary.Emitted++
		}

		summary.TickCounts = append(summary.TickCounts, n)
		remaining -= n
		g.logger.Debug("Generator tick complete", "emitted", n, "remaining", remaining)

		if remaining == 0 {
			break
		}

		rest := time.Second - clock.Now().Sub(tickStart)
		if rest > 0 {
			if err := clock.Sleep(ctx, rest); err != nil {
				summary.Elapsed = clock.Now().Sub(started)
				return summary, err
			}
		}
	}

	summary.Elapsed = clock.Now().Sub(started)
	g.logger.Info("Generator finished", "emitted", summary.Emitted, "ticks", len(summary.TickCounts))
	return summary, nil
}

func (g *Generator) put(ctx context.Context) error {
	tel := g.config.Telemetry
	key := g.partitionKey()
	line := g.GenerateLine()

	ctx, span := tel.Tracer.Start(ctx, "generator put")
	defer span.End()

	start := time.Now()
	res, err := g.transport.PutRecord(ctx, key, []byte(line))
	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	tel.PutDuration.Record(
		ctx, time.Since(start).Seconds(), metric.WithAttributes(otel.AttrPutStatus.String(status)),
	)

	if err != nil {
		g.logger.Error("Failed to put record", "key", key, "error", err)
		return fmt.Errorf("put record: %w", err)
	}

	tel.RecordsGenerated.Add(ctx, 1)
	g.logger.Debug(
		"Wrote record", "shard", res.ShardID, "sequence", res.SequenceNumber, "key", key,
		"size", len(line),
	)
	return nil
}
