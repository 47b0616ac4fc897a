package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hugolhafner/logstream/source"
)

var (
	ErrNotRunning   = errors.New("runner is not running")
	ErrNoPartitions = errors.New("source has no partitions")
)

// Stage names the step of a partition pipeline that failed.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageProcess    Stage = "process"
	StageWrite      Stage = "write"
	StageCheckpoint Stage = "checkpoint"
)

// PartitionFailure identifies a failed partition pipeline and the position
// from which its batch can be replayed.
type PartitionFailure struct {
	Partition string
	Position  source.Position
	Stage     Stage
	Err       error
}

func (f *PartitionFailure) Error() string {
	return fmt.Sprintf("partition %s at %s: %s: %v", f.Partition, f.Position, f.Stage, f.Err)
}

func (f *PartitionFailure) Unwrap() error {
	return f.Err
}

// TickError reports every partition that failed in one tick.
type TickError struct {
	TickID   int64
	Failures []*PartitionFailure
}

func (e *TickError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("tick %d failed: %s", e.TickID, strings.Join(parts, "; "))
}

func (e *TickError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

func AsTickError(err error) (*TickError, bool) {
	var te *TickError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
