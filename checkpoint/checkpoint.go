package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/hugolhafner/logstream/source"
)

var ErrClosed = errors.New("checkpoint store closed")

// Checkpoint is the position after the last durably written batch of a partition.
type Checkpoint struct {
	Partition string
	Position  source.Position
	// TickID identifies the tick that wrote the batch, in unix milliseconds.
	TickID    int64
	UpdatedAt time.Time
}

// Store persists checkpoints keyed by partition. Each partition has a single
// writer at a time.
type Store interface {
	// Load returns the checkpoint for partition; ok is false when none exists.
	Load(ctx context.Context, partition string) (cp Checkpoint, ok bool, err error)
	LoadAll(ctx context.Context) (map[string]Checkpoint, error)
	Save(ctx context.Context, cp Checkpoint) error
	Close() error
}
