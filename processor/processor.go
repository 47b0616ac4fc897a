package processor

import (
	"context"
	"maps"

	"github.com/hugolhafner/logstream/errorhandler"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/otel"
	"github.com/hugolhafner/logstream/sink"
	"github.com/hugolhafner/logstream/source"
)

// Processor turns the raw entries of one partition batch into keyed sink
// records. ProcessBatch may be called concurrently for different partitions.
type Processor interface {
	Configure(cfg Config) error
	ProcessBatch(ctx context.Context, batch Batch) (Result, error)
}

// Config carries the ambient collaborators a runner hands to its processor.
type Config struct {
	Logger       logger.Logger
	Telemetry    *otel.Telemetry
	ErrorHandler errorhandler.Handler
}

// Batch is the set of entries fetched for one partition in one tick.
type Batch struct {
	Partition string
	TickID    int64
	Entries   []source.Entry
}

// Result is the outcome of processing one batch. Record order is unspecified.
type Result struct {
	Records  []sink.Record
	Consumed int
	Skipped  int
	// SkippedByPhase breaks Skipped down by the phase that rejected the entry.
	SkippedByPhase map[errorhandler.ErrorPhase]int
	Bytes          int64
}

// Merge folds o into a copy of r.
func (r Result) Merge(o Result) Result {
	out := Result{
		Records:        append(append(make([]sink.Record, 0, len(r.Records)+len(o.Records)), r.Records...), o.Records...),
		Consumed:       r.Consumed + o.Consumed,
		Skipped:        r.Skipped + o.Skipped,
		SkippedByPhase: maps.Clone(r.SkippedByPhase),
		Bytes:          r.Bytes + o.Bytes,
	}
	for phase, n := range o.SkippedByPhase {
		if out.SkippedByPhase == nil {
			out.SkippedByPhase = make(map[errorhandler.ErrorPhase]int)
		}
		out.SkippedByPhase[phase] += n
	}
	return out
}
