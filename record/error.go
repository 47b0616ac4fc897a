package record

import (
	"errors"
	"fmt"
)

// MalformedRecordError reports a line that does not satisfy the access-log grammar.
type MalformedRecordError struct {
	Line   string
	Reason string
	Cause  error
}

func (e *MalformedRecordError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed record: %s: %v", e.Reason, e.Cause)
	}
	return "malformed record: " + e.Reason
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Cause
}

func NewMalformedRecordError(line, reason string, cause error) error {
	return &MalformedRecordError{
		Line:   line,
		Reason: reason,
		Cause:  cause,
	}
}

func AsMalformedRecordError(err error) (*MalformedRecordError, bool) {
	var me *MalformedRecordError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
