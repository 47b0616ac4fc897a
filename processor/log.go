package processor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hugolhafner/logstream/errorhandler"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/record"
	"github.com/hugolhafner/logstream/serde"
	"github.com/hugolhafner/logstream/sink"
	"github.com/hugolhafner/logstream/source"
	"github.com/hugolhafner/logstream/transform"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var _ Processor = (*LogProcessor)(nil)

// KeyFunc produces the output key of one transformed record.
type KeyFunc func() string

// LogProcessor decodes access-log entries, applies the field transforms and
// re-encodes each record under a fresh key.
type LogProcessor struct {
	decoder     serde.Deserialiser[record.LogRecord]
	serialiser  serde.Serialiser[record.LogRecord]
	transformer transform.Transformer
	key         KeyFunc
	parallelism int

	logger    logger.Logger
	telemetry *otel.Telemetry
	handler   errorhandler.Handler
}

type LogOption func(*LogProcessor)

// WithDecoder sets how raw entries are decoded. Default is the log-line codec.
func WithDecoder(d serde.Deserialiser[record.LogRecord]) LogOption {
	return func(p *LogProcessor) {
		if d != nil {
			p.decoder = d
		}
	}
}

// WithSerialiser sets the output encoding. Default is the log-line codec.
func WithSerialiser(s serde.Serialiser[record.LogRecord]) LogOption {
	return func(p *LogProcessor) {
		if s != nil {
			p.serialiser = s
		}
	}
}

func WithTransformer(t transform.Transformer) LogOption {
	return func(p *LogProcessor) {
		p.transformer = t
	}
}

// WithKeyFunc overrides the random UUID output keys.
func WithKeyFunc(k KeyFunc) LogOption {
	return func(p *LogProcessor) {
		if k != nil {
			p.key = k
		}
	}
}

// WithParallelism shards each batch across n goroutines.
func WithParallelism(n int) LogOption {
	return func(p *LogProcessor) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

func NewLogProcessor(opts ...LogOption) *LogProcessor {
	l := logger.NewNoopLogger()
	p := &LogProcessor{
		decoder:     serde.LogLine(),
		serialiser:  serde.LogLine(),
		transformer: transform.NewTransformer(),
		key:         uuid.NewString,
		parallelism: 1,
		logger:      l,
		telemetry:   otel.Noop(),
		handler:     errorhandler.LogAndContinue(l),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LogProcessor) Configure(cfg Config) error {
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	if cfg.Telemetry != nil {
		p.telemetry = cfg.Telemetry
	}
	if cfg.ErrorHandler != nil {
		p.handler = cfg.ErrorHandler
	} else {
		p.handler = errorhandler.LogAndContinue(p.logger)
	}
	return nil
}

func (p *LogProcessor) ProcessBatch(ctx context.Context, batch Batch) (Result, error) {
	n := len(batch.Entries)
	if n == 0 {
		return Result{}, nil
	}

	shards := min(p.parallelism, n)
	results := make([]Result, shards)

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		g.Go(
			func() error {
				res := Result{Records: make([]sink.Record, 0, n/shards+1)}
				for i := s; i < n; i += shards {
					if err := gctx.Err(); err != nil {
						return err
					}
					if err := p.processEntry(gctx, batch.Partition, batch.Entries[i], &res); err != nil {
						return err
					}
				}
				results[s] = res
				return nil
			},
		)
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var out Result
	for _, r := range results {
		out = out.Merge(r)
	}
	return out, nil
}

func (p *LogProcessor) processEntry(ctx context.Context, partition string, entry source.Entry, res *Result) error {
	res.Consumed++

	rec, err := p.decoder.Deserialise(partition, entry.Data)
	if err != nil {
		return p.handle(ctx, partition, entry, err, errorhandler.PhaseDecode, res)
	}

	out, err := p.transformer.Apply(rec)
	if err != nil {
		return p.handle(ctx, partition, entry, err, errorhandler.PhaseTransform, res)
	}

	value, err := p.serialiser.Serialise(partition, out)
	if err != nil {
		return p.handle(ctx, partition, entry, err, errorhandler.PhaseSerialise, res)
	}

	res.Records = append(res.Records, sink.Record{Key: p.key(), Value: value})
	res.Bytes += int64(len(value))
	return nil
}

func (p *LogProcessor) handle(
	ctx context.Context, partition string, entry source.Entry, err error, phase errorhandler.ErrorPhase,
	res *Result,
) error {
	ec := errorhandler.NewErrorContext(partition, entry, err).WithPhase(phase)
	action := p.handler.Handle(ctx, ec)

	p.telemetry.ErrorHandlerActions.Add(
		ctx, 1, metric.WithAttributes(
			otel.AttrPartition.String(partition),
			otel.AttrErrorAction.String(action.Type().String()),
			otel.AttrErrorPhase.String(phase.String()),
		),
	)

	switch action.Type() {
	case errorhandler.ActionTypeContinue:
		res.Skipped++
		if res.SkippedByPhase == nil {
			res.SkippedByPhase = make(map[errorhandler.ErrorPhase]int)
		}
		res.SkippedByPhase[phase]++
		return nil
	case errorhandler.ActionTypeFail:
		return NewEntryError(ec)
	default:
		return errors.Join(NewEntryError(ec), errors.New("unknown error handler action"))
	}
}
