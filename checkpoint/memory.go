package checkpoint

import (
	"context"
	"maps"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Checkpoint
	saves   int
	saveErr func(cp Checkpoint) error
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Checkpoint)}
}

func (s *MemoryStore) Load(ctx context.Context, partition string) (Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Checkpoint{}, false, ErrClosed
	}
	cp, ok := s.entries[partition]
	return cp, ok, nil
}

func (s *MemoryStore) LoadAll(ctx context.Context) (map[string]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return maps.Clone(s.entries), nil
}

func (s *MemoryStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.saveErr != nil {
		if err := s.saveErr(cp); err != nil {
			return err
		}
	}
	s.entries[cp.Partition] = cp
	s.saves++
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetSaveError installs a fault injector for Save; nil clears it.
func (s *MemoryStore) SetSaveError(fn func(cp Checkpoint) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = fn
}

// Saves returns how many Save calls succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
