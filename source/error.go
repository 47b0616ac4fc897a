package source

import (
	"errors"
	"fmt"
)

// UnavailableError reports a failed fetch or discovery call. It is surfaced
// to the caller; no retry happens at this layer.
type UnavailableError struct {
	Partition string
	Position  Position
	Err       error
}

func (e *UnavailableError) Error() string {
	if e.Partition == "" {
		return fmt.Sprintf("source unavailable: %v", e.Err)
	}
	return fmt.Sprintf("source partition %s unavailable at %s: %v", e.Partition, e.Position, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func NewUnavailableError(partition string, pos Position, err error) error {
	return &UnavailableError{Partition: partition, Position: pos, Err: err}
}

func AsUnavailableError(err error) (*UnavailableError, bool) {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
