package errorhandler

import (
	"github.com/hugolhafner/logstream/source"
)

// ErrorContext provides context about an entry that could not be processed.
// It contains all the information a handler needs to make a decision about
// how to handle the error.
type ErrorContext struct {
	// Partition is the source partition the entry was fetched from.
	Partition string

	// Entry is the raw source entry that caused the error.
	Entry source.Entry

	// Error is the error that occurred during processing.
	Error error

	// Phase indicates where in the pipeline the error occurred
	Phase ErrorPhase
}

func NewErrorContext(partition string, entry source.Entry, err error) ErrorContext {
	return ErrorContext{
		Partition: partition,
		Entry: source.Entry{
			Data:   append([]byte(nil), entry.Data...),
			Offset: entry.Offset,
		},
		Error: err,
	}
}

func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	return ec
}

func (ec ErrorContext) WithPhase(phase ErrorPhase) ErrorContext {
	ec.Phase = phase
	return ec
}
