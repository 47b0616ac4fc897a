package runner

import (
	"time"

	"github.com/hugolhafner/logstream/errorhandler"
	"github.com/hugolhafner/logstream/source"
)

// PartitionSummary is the outcome of one partition pipeline within a tick.
type PartitionSummary struct {
	Partition string
	From      source.Position
	To        source.Position
	Path      string

	Consumed int
	Skipped  int
	Written  int
	Bytes    int64

	SkippedByPhase map[errorhandler.ErrorPhase]int

	// Wrote is set when WRITE succeeded for a non-empty batch.
	Wrote bool
	// Checkpointed is set when the checkpoint advanced to To.
	Checkpointed bool
	// Aborted is set when cancellation stopped the pipeline before WRITE.
	Aborted bool
}

// TickSummary aggregates the partition summaries of one tick.
type TickSummary struct {
	TickID   int64
	Started  time.Time
	Duration time.Duration

	Processed         int
	Skipped           int
	Written           int
	Bytes             int64
	PartitionsWritten int
	PartitionsAborted int

	Partitions []PartitionSummary
}

// with returns a copy of s that includes p.
func (s TickSummary) with(p PartitionSummary) TickSummary {
	s.Partitions = append(append([]PartitionSummary(nil), s.Partitions...), p)
	s.Processed += p.Consumed
	s.Skipped += p.Skipped
	s.Written += p.Written
	s.Bytes += p.Bytes
	if p.Wrote {
		s.PartitionsWritten++
	}
	if p.Aborted {
		s.PartitionsAborted++
	}
	return s
}

// Partition returns the summary of one partition.
func (s TickSummary) Partition(partition string) (PartitionSummary, bool) {
	for _, p := range s.Partitions {
		if p.Partition == partition {
			return p, true
		}
	}
	return PartitionSummary{}, false
}
