package mocksource

import "github.com/hugolhafner/logstream/source"

// Len returns the number of entries stored in partition.
func (l *Log) Len(partition string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[partition])
}

// Total returns the number of entries across all partitions.
func (l *Log) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, e := range l.entries {
		n += len(e)
	}
	return n
}

// Entries returns a copy of a partition's raw entries.
func (l *Log) Entries(partition string) [][]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([][]byte, len(l.entries[partition]))
	for i, e := range l.entries[partition] {
		out[i] = append([]byte(nil), e...)
	}
	return out
}

// Keys returns the partition keys recorded by PutRecord, in append order.
func (l *Log) Keys(partition string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.keys[partition]...)
}

// Fetches returns every FetchBatch call made so far.
func (l *Log) Fetches() []FetchCall {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]FetchCall(nil), l.fetches...)
}

// FetchesFor returns the FetchBatch calls made for one partition.
func (l *Log) FetchesFor(partition string) []FetchCall {
	var out []FetchCall
	for _, f := range l.Fetches() {
		if f.Partition == partition {
			out = append(out, f)
		}
	}
	return out
}

// LastFetchPosition returns the position of the most recent fetch for partition.
func (l *Log) LastFetchPosition(partition string) (source.Position, bool) {
	calls := l.FetchesFor(partition)
	if len(calls) == 0 {
		return source.Position{}, false
	}
	return calls[len(calls)-1].Position, true
}
