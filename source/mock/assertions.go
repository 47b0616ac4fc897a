package mocksource

import (
	"testing"

	"github.com/hugolhafner/logstream/source"
	"github.com/stretchr/testify/require"
)

// AssertLen verifies that a partition holds exactly n entries.
func (l *Log) AssertLen(tb testing.TB, partition string, expected int) {
	tb.Helper()

	actual := l.Len(partition)
	require.Equal(tb, expected, actual, "expected %d entries in partition %q, got %d", expected, partition, actual)
}

// AssertTotal verifies the number of entries across all partitions.
func (l *Log) AssertTotal(tb testing.TB, expected int) {
	tb.Helper()

	actual := l.Total()
	require.Equal(tb, expected, actual, "expected %d entries, got %d", expected, actual)
}

// AssertFetchedFrom verifies that partition was fetched at least once at pos.
func (l *Log) AssertFetchedFrom(tb testing.TB, partition string, pos source.Position) {
	tb.Helper()

	for _, f := range l.FetchesFor(partition) {
		if f.Position.Equal(pos) {
			return
		}
	}
	tb.Errorf("expected partition %q to be fetched from %s, calls: %v", partition, pos, l.FetchesFor(partition))
}

// AssertNotFetched verifies that partition was never fetched.
func (l *Log) AssertNotFetched(tb testing.TB, partition string) {
	tb.Helper()

	calls := l.FetchesFor(partition)
	require.Empty(tb, calls, "expected no fetches for partition %q, got %d", partition, len(calls))
}
