package mocksink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertWritten verifies that path holds exactly n records.
func (s *Sink) AssertWritten(tb testing.TB, path string, expected int) {
	tb.Helper()

	s.mu.RLock()
	records, ok := s.batches[path]
	s.mu.RUnlock()

	require.True(tb, ok, "expected a batch at %q, paths: %v", path, s.Paths())
	require.Len(tb, records, expected, "expected %d records at %q, got %d", expected, path, len(records))
}

// AssertTotal verifies the number of records stored across all paths.
func (s *Sink) AssertTotal(tb testing.TB, expected int) {
	tb.Helper()

	actual := s.Total()
	require.Equal(tb, expected, actual, "expected %d records written, got %d", expected, actual)
}

// AssertNoWrites verifies that no batch was stored.
func (s *Sink) AssertNoWrites(tb testing.TB) {
	tb.Helper()

	paths := s.Paths()
	require.Empty(tb, paths, "expected no batches, got %v", paths)
}

// AssertUniqueKeys verifies that no key appears twice across stored batches.
func (s *Sink) AssertUniqueKeys(tb testing.TB) {
	tb.Helper()

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]string)
	for path, records := range s.batches {
		for _, r := range records {
			if prev, ok := seen[r.Key]; ok {
				tb.Errorf("key %q written to both %q and %q", r.Key, prev, path)
				return
			}
			seen[r.Key] = path
		}
	}
}
