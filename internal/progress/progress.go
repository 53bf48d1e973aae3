package progress

import (
	"context"

	"github.com/keinsell/zkk/internal/models"
)

// Sink receives progress events. Implementations must be safe for concurrent
// use when indexing runs with more than one worker.
type Sink func(models.ProgressEvent)

type sinkKey struct{}

// WithSink returns a context that carries the given sink.
func WithSink(ctx context.Context, sink Sink) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, sinkKey{}, sink)
}

// Emit sends an event to the sink carried by ctx, if any.
func Emit(ctx context.Context, phase models.ProgressPhase, path, message string) {
	emit(ctx, models.ProgressEvent{Phase: phase, Path: path, Message: message})
}

// EmitPercent is Emit with a completion percentage clamped to 0..100.
func EmitPercent(
	ctx context.Context,
	phase models.ProgressPhase,
	path, message string,
	percent float64,
) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	emit(ctx, models.ProgressEvent{Phase: phase, Path: path, Message: message, Percent: &percent})
}

func emit(ctx context.Context, ev models.ProgressEvent) {
	if sink, ok := ctx.Value(sinkKey{}).(Sink); ok {
		sink(ev)
	}
}
