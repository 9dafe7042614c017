// ABOUTME: Streaming job execution: one envelope per partial, terminal error envelope, then done.
// ABOUTME: The returned channel is unbuffered (true streaming) and consumable exactly once.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// StreamExecutor runs streaming handlers, forwarding each partial output as an
// independent result envelope.
type StreamExecutor struct {
	log *slog.Logger
}

// NewStreamExecutor creates a StreamExecutor.
func NewStreamExecutor() *StreamExecutor {
	return &StreamExecutor{log: slog.Default()}
}

// Execute invokes handler and returns a channel of envelopes: one
// {"output": partial} per produced partial, in production order. If producing
// the next partial fails, exactly one terminal {"error": ...} envelope is
// emitted and the channel closes; no items follow an error. On normal
// exhaustion the channel simply closes. Completion is logged exactly once.
//
// The channel is unbuffered, so the producer advances only as fast as the
// consumer; the sequence is not restartable.
func (e *StreamExecutor) Execute(ctx context.Context, handler StreamHandler, job *Job) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)
		defer e.log.Info("job stream finished", "job_id", job.ID)
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("captured stream handler panic", "job_id", job.ID, "panic", r)
				e.emit(ctx, out, Result{Error: streamError(fmt.Errorf("%v", r), debug.Stack())})
			}
		}()

		partials, err := handler(ctx, job)
		if err != nil {
			e.log.Error("stream handler failed to start", "job_id", job.ID, "err", err)
			e.emit(ctx, out, Result{Error: streamError(err, debug.Stack())})
			return
		}

		for p := range partials {
			if p.Err != nil {
				e.log.Error("stream handler failed", "job_id", job.ID, "err", p.Err)
				e.emit(ctx, out, Result{Error: streamError(p.Err, debug.Stack())})
				return
			}
			if !e.emit(ctx, out, Result{Output: p.Output}) {
				return
			}
		}
	}()

	return out
}

// emit sends r unless the consumer is gone. Reports whether the send happened.
func (e *StreamExecutor) emit(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// streamError formats the terminal error envelope body. The layout (including
// the space before the newline) is the format the platform's log scrapers
// already match on.
func streamError(err error, stack []byte) string {
	return fmt.Sprintf("handler: %v \ntraceback: %s", err, stack)
}
