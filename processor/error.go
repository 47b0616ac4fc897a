package processor

import (
	"errors"
	"fmt"

	"github.com/hugolhafner/logstream/errorhandler"
)

// EntryError is returned when the error handler fails a batch on one entry.
type EntryError struct {
	Partition string
	Offset    string
	Phase     errorhandler.ErrorPhase
	Err       error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf(
		"%s failed for entry %s of partition %s: %v", e.Phase, e.Offset, e.Partition, e.Err,
	)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func NewEntryError(ec errorhandler.ErrorContext) error {
	return &EntryError{Partition: ec.Partition, Offset: ec.Entry.Offset, Phase: ec.Phase, Err: ec.Error}
}

func AsEntryError(err error) (*EntryError, bool) {
	var ee *EntryError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
