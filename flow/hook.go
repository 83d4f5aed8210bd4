package flow

import (
	"context"
	"log/slog"

	"github.com/casualjim/roost/pkg/slogx"
)

// Hook receives the lifecycle events of a flow run. Hooks are called
// synchronously from the scheduler and must not block for long.
type Hook interface {
	OnEvent(ctx context.Context, ev Event)
}

type HookFunc func(ctx context.Context, ev Event)

func (f HookFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

type nopHook struct{}

func (nopHook) OnEvent(context.Context, Event) {}

// NopHook discards every event.
var NopHook Hook = nopHook{}

// Hooks fans an event out to several hooks in order.
type Hooks []Hook

func (h Hooks) OnEvent(ctx context.Context, ev Event) {
	for _, hook := range h {
		if hook != nil {
			hook.OnEvent(ctx, ev)
		}
	}
}

// LogHook writes every event to a slog logger at debug level, and failures at
// error level.
func LogHook(logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return HookFunc(func(ctx context.Context, ev Event) {
		switch e := ev.(type) {
		case FlowStarted:
			logger.DebugContext(ctx, "flow started", slogx.RunID(e.RunID), slogx.Flow(e.Flow))
		case StepStarted:
			logger.DebugContext(ctx, "step started", slogx.RunID(e.RunID), slogx.Flow(e.Flow), slogx.Step(e.Step), slog.Int("invocation", e.Invocation))
		case StepCompleted:
			logger.DebugContext(ctx, "step completed", slogx.RunID(e.RunID), slogx.Flow(e.Flow), slogx.Step(e.Step), slog.Duration("elapsed", e.Elapsed))
		case StepFailed:
			logger.ErrorContext(ctx, "step failed", slogx.RunID(e.RunID), slogx.Flow(e.Flow), slogx.Step(e.Step), slog.String("error", e.Error))
		case Routed:
			logger.DebugContext(ctx, "routed", slogx.RunID(e.RunID), slogx.Flow(e.Flow), slog.String("router", e.Router), slog.String("label", e.Label), slog.String("destination", e.Destination), slog.Bool("terminate", e.Terminate))
		case FlowFinished:
			logger.DebugContext(ctx, "flow finished", slogx.RunID(e.RunID), slogx.Flow(e.Flow), slog.Int("passes", e.Passes))
		case FlowFailed:
			logger.ErrorContext(ctx, "flow failed", slogx.RunID(e.RunID), slogx.Flow(e.Flow), slogx.Step(e.Step), slog.String("error", e.Error))
		}
	})
}
