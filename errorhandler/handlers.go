package errorhandler

import (
	"context"

	"github.com/hugolhafner/logstream/logger"
)

// LogAndContinue logs error and skips the entry
func LogAndContinue(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Warn(
				"error processing entry, skipping",
				"error", ec.Error,
				"partition", ec.Partition,
				"offset", ec.Entry.Offset,
				"phase", ec.Phase.String(),
			)
			return ActionContinue{}
		},
	)
}

// LogAndFail logs error and fails the batch
func LogAndFail(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"error processing entry, failing",
				"error", ec.Error,
				"partition", ec.Partition,
				"offset", ec.Entry.Offset,
				"phase", ec.Phase.String(),
			)
			return ActionFail{}
		},
	)
}

// SilentContinue skips the entry without logging
func SilentContinue() Handler {
	return HandlerFunc(
		func(context.Context, ErrorContext) Action {
			return ActionContinue{}
		},
	)
}

// SilentFail fails the batch without logging
func SilentFail() Handler {
	return HandlerFunc(
		func(context.Context, ErrorContext) Action {
			return ActionFail{}
		},
	)
}

// ActionLogger logs the action decided by the next handler
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)

			l.Log(
				level,
				"Error handler decision",
				"action", action.Type().String(),
				"error", ec.Error,
				"partition", ec.Partition,
				"offset", ec.Entry.Offset,
				"phase", ec.Phase.String(),
			)
			return action
		},
	)
}
