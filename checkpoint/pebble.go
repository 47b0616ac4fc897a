package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/hugolhafner/logstream/logger"
)

var _ Store = (*PebbleStore)(nil)

const keyPrefix = "checkpoint/"

// PebbleStore keeps checkpoints in a Pebble database, one key per
// (stream, partition). Saves are synced to the WAL before returning.
type PebbleStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	prefix []byte
	logger logger.Logger
}

type PebbleOption func(*pebbleConfig)

type pebbleConfig struct {
	fs     vfs.FS
	logger logger.Logger
}

// WithInMemory backs the store with an in-memory filesystem.
func WithInMemory() PebbleOption {
	return func(c *pebbleConfig) {
		c.fs = vfs.NewMem()
	}
}

func WithLogger(l logger.Logger) PebbleOption {
	return func(c *pebbleConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// OpenPebble opens or creates the store at dir. Checkpoints of different
// streams sharing a directory are kept apart by stream, which must not
// contain "/".
func OpenPebble(dir, stream string, opts ...PebbleOption) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint: directory is required")
	}
	if stream == "" {
		return nil, errors.New("checkpoint: stream name is required")
	}
	if strings.Contains(stream, "/") {
		return nil, fmt.Errorf("checkpoint: stream name %q must not contain \"/\"", stream)
	}

	cfg := pebbleConfig{logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	po := &pebble.Options{}
	if cfg.fs != nil {
		po.FS = cfg.fs
	}

	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	l := cfg.logger.With("component", "checkpoint", "stream", stream)
	l.Debug("Opened checkpoint store", "dir", dir)

	return &PebbleStore{
		db:     db,
		prefix: []byte(keyPrefix + stream + "/"),
		logger: l,
	}, nil
}

func (s *PebbleStore) key(partition string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(partition))
	k = append(k, s.prefix...)
	return append(k, partition...)
}

func (s *PebbleStore) Load(ctx context.Context, partition string) (Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return Checkpoint{}, false, ErrClosed
	}

	val, closer, err := s.db.Get(s.key(partition))
	if errors.Is(err, pebble.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load checkpoint %s: %w", partition, err)
	}
	defer closer.Close()

	cp, err := unmarshal(val)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load checkpoint %s: %w", partition, err)
	}
	return cp, true, nil
}

func (s *PebbleStore) LoadAll(ctx context.Context) (map[string]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: s.prefix, UpperBound: upperBound(s.prefix)})
	if err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	defer it.Close()

	out := make(map[string]Checkpoint)
	for it.First(); it.Valid(); it.Next() {
		cp, err := unmarshal(it.Value())
		if err != nil {
			return nil, fmt.Errorf("decode checkpoint %q: %w", it.Key(), err)
		}
		out[cp.Partition] = cp
	}
	return out, it.Error()
}

func (s *PebbleStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrClosed
	}

	if err := s.db.Set(s.key(cp.Partition), marshal(cp), pebble.Sync); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.Partition, err)
	}
	s.logger.Debug("Checkpoint saved", "partition", cp.Partition, "position", cp.Position.String())
	return nil
}

// Delete removes the checkpoint of partition, if any.
func (s *PebbleStore) Delete(ctx context.Context, partition string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrClosed
	}
	return s.db.Delete(s.key(partition), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	hi := append([]byte(nil), prefix...)
	for i := len(hi) - 1; i >= 0; i-- {
		if hi[i] < 0xff {
			hi[i]++
			return hi[:i+1]
		}
	}
	return nil
}
