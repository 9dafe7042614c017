// Package worker implements the job lifecycle engine of a serverless worker:
// acquisition from the remote queue, in-flight tracking, handler execution,
// and normalization of handler output into wire-ready result envelopes.
//
// Handlers are registered once via [HandlerSet] before the runner starts; a
// deployment is either a plain handler or a streaming handler, never both.
package worker

import (
	"context"
	"encoding/json"
)

// Job is a single unit of work acquired from the queue. A Job is only ever
// constructed from a queue message carrying both a non-empty id and a non-null
// input; messages missing either field are discarded at the source.
type Job struct {
	ID    string          `json:"id"`
	Input json.RawMessage `json:"input"`
}

// Handler computes a job's output. The returned value is normalized into a
// result envelope: a map[string]any has its "error" and "refresh_worker" keys
// consumed, everything else wraps directly as output. A non-nil error (or a
// panic) is captured into a structured diagnostic payload, never propagated.
type Handler func(ctx context.Context, job *Job) (any, error)

// Partial is one incremental output from a streaming handler. A Partial with
// Err set terminates the stream after the error is reported.
type Partial struct {
	Output any
	Err    error
}

// StreamHandler produces incremental outputs on the returned channel. The
// handler closes the channel when the stream is exhausted.
type StreamHandler func(ctx context.Context, job *Job) (<-chan Partial, error)

// HandlerSet fixes the handler capability at registration time. Exactly one
// of Handler or Stream must be set.
type HandlerSet struct {
	Handler Handler
	Stream  StreamHandler

	// AggregateStream collects every partial output into the terminal result
	// submitted after the stream ends. Off by default: the terminal envelope
	// is then empty and partials exist only on the stream endpoint.
	AggregateStream bool
}

// Valid reports whether exactly one handler variant is registered.
func (h HandlerSet) Valid() bool {
	return (h.Handler != nil) != (h.Stream != nil)
}
