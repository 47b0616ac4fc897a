package transform

import (
	"errors"
	"fmt"
)

// TransformError reports a field that a transform cannot rewrite.
type TransformError struct {
	Field  string
	Value  string
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.Field, e.Reason)
}

func NewTransformError(field, value, reason string) error {
	return &TransformError{Field: field, Value: value, Reason: reason}
}

func AsTransformError(err error) (*TransformError, bool) {
	var te *TransformError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
