package errorhandler

import (
	"context"
)

// ErrorPhase indicates where in the per-entry pipeline an error occurred
type ErrorPhase int

const (
	PhaseUnknown   ErrorPhase = iota // zero value - uninitialized phase
	PhaseDecode                      // raw entry did not parse into a record
	PhaseTransform                   // field transform rejected the record
	PhaseSerialise                   // transformed record could not be encoded for the sink
)

func (p ErrorPhase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseDecode:
		return "decode"
	case PhaseTransform:
		return "transform"
	case PhaseSerialise:
		return "serialise"
	default:
		return "unknown"
	}
}

var _ Handler = (*PhaseRouter)(nil)

type PhaseRouter struct {
	handler          Handler
	decodeHandler    Handler
	transformHandler Handler
	serialiseHandler Handler
}

// NewPhaseRouter creates a new PhaseRouter with the provided handlers for each phase.
// If a handler for a specific phase is nil, the router will fall back to the default handler.
// If the default handler is unset, defaults to SilentFail, which fails without logging at the error handler level.
func NewPhaseRouter(
	handler Handler, decodeHandler Handler, transformHandler Handler, serialiseHandler Handler,
) *PhaseRouter {
	if handler == nil {
		handler = SilentFail()
	}

	return &PhaseRouter{
		handler:          handler,
		decodeHandler:    decodeHandler,
		transformHandler: transformHandler,
		serialiseHandler: serialiseHandler,
	}
}

func (r *PhaseRouter) Handle(ctx context.Context, ec ErrorContext) Action {
	switch ec.Phase {
	case PhaseDecode:
		if r.decodeHandler != nil {
			return r.decodeHandler.Handle(ctx, ec)
		}
	case PhaseTransform:
		if r.transformHandler != nil {
			return r.transformHandler.Handle(ctx, ec)
		}
	case PhaseSerialise:
		if r.serialiseHandler != nil {
			return r.serialiseHandler.Handle(ctx, ec)
		}
	case PhaseUnknown:
	default:
	}

	return r.handler.Handle(ctx, ec)
}
