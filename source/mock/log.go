package mocksource

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hugolhafner/logstream/generator"
	"github.com/hugolhafner/logstream/source"
)

var (
	_ source.Source       = (*Log)(nil)
	_ generator.Transport = (*Log)(nil)
)

// FetchCall records a FetchBatch invocation.
type FetchCall struct {
	Partition string
	Position  source.Position
	Returned  int
}

// Log is an in-memory partitioned append-only log. Positions are decimal
// indexes into each partition. It serves as both a Source and a generator
// Transport so the full pipeline can run without a broker.
type Log struct {
	mu sync.RWMutex

	partitions []string
	entries    map[string][][]byte
	keys       map[string][]string

	maxBatch   int
	fetchDelay time.Duration

	listErr  error
	fetchErr func(partition string, pos source.Position) error
	putErr   func(key string, payload []byte) error

	fetches []FetchCall
}

// New creates a log with the given partitions. With none, a single
// partition "0" is created.
func New(partitions []string, opts ...Option) *Log {
	if len(partitions) == 0 {
		partitions = []string{"0"}
	}

	l := &Log{
		partitions: append([]string(nil), partitions...),
		entries:    make(map[string][][]byte, len(partitions)),
		keys:       make(map[string][]string, len(partitions)),
		maxBatch:   1000,
	}
	for _, p := range partitions {
		l.entries[p] = nil
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// NewPartitions creates a log with partitions "0".."n-1".
func NewPartitions(n int, opts ...Option) *Log {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = strconv.Itoa(i)
	}
	return New(ps, opts...)
}

func (l *Log) ListPartitions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.listErr != nil {
		return nil, source.NewUnavailableError("", source.Position{}, l.listErr)
	}
	return append([]string(nil), l.partitions...), nil
}

func (l *Log) FetchBatch(
	ctx context.Context, partition string, pos source.Position, _ time.Duration,
) ([]source.Entry, source.Position, error) {
	if l.fetchDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, pos, ctx.Err()
		case <-time.After(l.fetchDelay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, pos, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fetchErr != nil {
		if err := l.fetchErr(partition, pos); err != nil {
			l.fetches = append(l.fetches, FetchCall{Partition: partition, Position: pos})
			return nil, pos, source.NewUnavailableError(partition, pos, err)
		}
	}

	data, ok := l.entries[partition]
	if !ok {
		return nil, pos, source.NewUnavailableError(partition, pos, fmt.Errorf("unknown partition"))
	}

	start, err := l.resolve(pos, len(data))
	if err != nil {
		return nil, pos, source.NewUnavailableError(partition, pos, err)
	}

	end := min(len(data), start+l.maxBatch)
	out := make([]source.Entry, 0, end-start)
	for i := start; i < end; i++ {
		out = append(
			out, source.Entry{
				Data:   append([]byte(nil), data[i]...),
				Offset: strconv.Itoa(i),
			},
		)
	}

	l.fetches = append(l.fetches, FetchCall{Partition: partition, Position: pos, Returned: len(out)})
	return out, source.AtOffset(int64(end)), nil
}

func (l *Log) resolve(pos source.Position, size int) (int, error) {
	switch pos.Kind {
	case source.PositionEarliest:
		return 0, nil
	case source.PositionLatest:
		return size, nil
	default:
		n, err := pos.Offset()
		if err != nil {
			return 0, err
		}
		if n > int64(size) {
			return 0, fmt.Errorf("offset %d beyond end %d", n, size)
		}
		return int(n), nil
	}
}

// PutRecord appends payload to the partition chosen by hashing key.
func (l *Log) PutRecord(ctx context.Context, key string, payload []byte) (generator.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return generator.PutResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.putErr != nil {
		if err := l.putErr(key, payload); err != nil {
			return generator.PutResult{}, err
		}
	}

	p := l.partitions[xxhash.Sum64String(key)%uint64(len(l.partitions))]
	seq := len(l.entries[p])
	l.entries[p] = append(l.entries[p], append([]byte(nil), payload...))
	l.keys[p] = append(l.keys[p], key)

	return generator.PutResult{ShardID: p, SequenceNumber: strconv.Itoa(seq)}, nil
}

// Append adds raw entries to a partition, creating it if needed.
func (l *Log) Append(partition string, data ...[]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[partition]; !ok {
		l.partitions = append(l.partitions, partition)
	}
	for _, d := range data {
		l.entries[partition] = append(l.entries[partition], append([]byte(nil), d...))
		l.keys[partition] = append(l.keys[partition], "")
	}
}

// AppendStrings is Append for string lines.
func (l *Log) AppendStrings(partition string, lines ...string) {
	data := make([][]byte, len(lines))
	for i, s := range lines {
		data[i] = []byte(s)
	}
	l.Append(partition, data...)
}

// SetFetchError replaces the fetch fault injector; nil clears it.
func (l *Log) SetFetchError(fn func(partition string, pos source.Position) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchErr = fn
}

// SetListError makes ListPartitions fail; nil clears it.
func (l *Log) SetListError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listErr = err
}
