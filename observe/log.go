package observe

import (
	"context"
	"log/slog"
)

// LogObserver writes operation events to a structured logger. Attempts are
// logged at Debug, successes at Debug and terminal failures at Warn.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver returns a LogObserver writing to logger, or slog.Default()
// when logger is nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *LogObserver) OnStart(ctx context.Context, op OpInfo) {
	o.logger().DebugContext(ctx, "operation started", opAttrs(op)...)
}

func (o *LogObserver) OnAttempt(ctx context.Context, op OpInfo, rec AttemptRecord) {
	if rec.Err == nil {
		return
	}
	args := append(opAttrs(op),
		slog.Int("attempt", rec.Attempt),
		slog.Duration("latency", rec.EndTime.Sub(rec.StartTime)),
		slog.Duration("backoff", rec.Backoff),
		slog.String("class", rec.Outcome.Class.String()),
		slog.String("reason", rec.Outcome.Reason),
		slog.Any("error", rec.Err),
	)
	o.logger().DebugContext(ctx, "attempt failed", args...)
}

func (o *LogObserver) OnSuccess(ctx context.Context, op OpInfo, tl Timeline) {
	args := append(opAttrs(op),
		slog.Int("attempts", len(tl.Attempts)),
		slog.Duration("elapsed", tl.End.Sub(tl.Start)),
	)
	o.logger().DebugContext(ctx, "operation succeeded", args...)
}

func (o *LogObserver) OnFailure(ctx context.Context, op OpInfo, tl Timeline) {
	args := append(opAttrs(op),
		slog.Int("attempts", len(tl.Attempts)),
		slog.Duration("elapsed", tl.End.Sub(tl.Start)),
		slog.String("terminal", tl.Attributes[AttrTerminal]),
		slog.Any("error", tl.FinalErr),
	)
	o.logger().WarnContext(ctx, "operation failed", args...)
}

func opAttrs(op OpInfo) []any {
	return []any{
		slog.String("op_id", op.ID),
		slog.String("op", op.Name),
		slog.String("kind", string(op.Kind)),
	}
}
