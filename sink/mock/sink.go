package mocksink

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hugolhafner/logstream/sink"
)

var _ sink.Sink = (*Sink)(nil)

// WriteCall records a WriteBatch invocation.
type WriteCall struct {
	Path    string
	Records int
	Err     error
}

// Sink is an in-memory sink. Writes replace previous content at a path.
type Sink struct {
	mu sync.RWMutex

	batches map[string][]sink.Record
	calls   []WriteCall

	writeErr   func(path string) error
	writeDelay time.Duration
}

type Option func(*Sink)

// WithWriteError fails every WriteBatch call with err.
func WithWriteError(err error) Option {
	return func(s *Sink) {
		s.writeErr = func(string) error { return err }
	}
}

// WithWriteDelay adds an artificial delay to WriteBatch calls. The delay
// ignores context cancellation once started, like a write in flight.
func WithWriteDelay(d time.Duration) Option {
	return func(s *Sink) {
		s.writeDelay = d
	}
}

func New(opts ...Option) *Sink {
	s := &Sink{batches: make(map[string][]sink.Record)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) WriteBatch(ctx context.Context, path string, records []sink.Record) error {
	if s.writeDelay > 0 {
		time.Sleep(s.writeDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.writeErr != nil {
		err = s.writeErr(path)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.calls = append(s.calls, WriteCall{Path: path, Records: len(records), Err: err})
		return sink.NewWriteError(path, len(records), err)
	}

	cp := make([]sink.Record, len(records))
	for i, r := range records {
		cp[i] = sink.Record{Key: r.Key, Value: append([]byte(nil), r.Value...)}
	}
	s.batches[path] = cp
	s.calls = append(s.calls, WriteCall{Path: path, Records: len(records)})
	return nil
}

// SetWriteError replaces the fault injector; nil clears it.
func (s *Sink) SetWriteError(fn func(path string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = fn
}

// Records returns the records currently stored at path.
func (s *Sink) Records(path string) []sink.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]sink.Record(nil), s.batches[path]...)
}

// Paths returns every path holding a batch, sorted.
func (s *Sink) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.batches))
	for p := range s.batches {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Total returns the number of records stored across all paths.
func (s *Sink) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

// Calls returns every WriteBatch call, failed ones included.
func (s *Sink) Calls() []WriteCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]WriteCall(nil), s.calls...)
}
