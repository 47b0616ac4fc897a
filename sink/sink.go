package sink

import (
	"context"
	"errors"
	"fmt"
)

// Record is one keyed output value.
type Record struct {
	Key   string
	Value []byte
}

// Sink persists a whole batch under path. Implementations must write all of
// records or none of them, and rewriting the same path must replace the
// previous content so a retried batch is idempotent.
type Sink interface {
	WriteBatch(ctx context.Context, path string, records []Record) error
}

// WriteError reports a failed batch write.
type WriteError struct {
	Path    string
	Records int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d records to %s: %v", e.Records, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func NewWriteError(path string, records int, err error) error {
	return &WriteError{Path: path, Records: records, Err: err}
}

func AsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}
