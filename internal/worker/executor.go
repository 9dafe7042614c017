// ABOUTME: Synchronous job execution: invoke handler, normalize output, capture failures.
// ABOUTME: Never panics past its boundary; every failure becomes a diagnostic in the envelope.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Executor invokes a handler against a job and normalizes the outcome into a
// [Result]. Hostname and worker ID feed the diagnostic payload; the size
// policy is an injected collaborator whose failure is captured like any other
// handler failure.
type Executor struct {
	hostname  string
	workerID  string
	sizeCheck SizePolicy
	log       *slog.Logger
}

// NewExecutor creates an Executor. A nil sizeCheck applies the default
// 20 MiB [MaxBytesPolicy].
func NewExecutor(hostname, workerID string, sizeCheck SizePolicy) *Executor {
	if sizeCheck == nil {
		sizeCheck = MaxBytesPolicy(DefaultMaxResultBytes)
	}
	return &Executor{
		hostname:  hostname,
		workerID:  workerID,
		sizeCheck: sizeCheck,
		log:       slog.Default(),
	}
}

// Execute runs handler against job and returns the normalized envelope.
// It never panics: handler panics and error returns are both captured into
// the diagnostic payload carried in Result.Error.
func (e *Executor) Execute(ctx context.Context, handler Handler, job *Job) (res Result) {
	e.log.Info("job started", "job_id", job.ID)

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("captured handler panic", "job_id", job.ID, "panic", r)
			res = Result{Error: e.captureError(r, debug.Stack())}
		}
		e.log.Debug("job result ready",
			"job_id", job.ID, "has_output", res.Output != nil, "has_error", res.Error != "")
	}()

	out, err := handler(ctx, job)
	if err != nil {
		e.log.Error("captured handler error", "job_id", job.ID, "err", err)
		return Result{Error: e.captureError(err, debug.Stack())}
	}

	res = normalize(out)

	if err := e.sizeCheck(&res); err != nil {
		e.log.Error("result rejected by size policy", "job_id", job.ID, "err", err)
		return Result{Error: e.captureError(err, debug.Stack())}
	}
	return res
}

// normalize maps a handler's raw return value onto the envelope.
//
// A map[string]any is treated as structured output: the "error" and
// "refresh_worker" entries are consumed (deleted from the map — the handler
// does not get them echoed back) and the remaining keys become the output. An
// empty remainder means the output key is omitted entirely. Every other value,
// booleans included, wraps directly as output; nil stays absent.
func normalize(out any) Result {
	m, ok := out.(map[string]any)
	if !ok {
		return Result{Output: out}
	}

	var res Result
	if v, present := m["error"]; present {
		delete(m, "error")
		if truthy(v) {
			res.Error = stringify(v)
		}
	}
	if v, present := m["refresh_worker"]; present {
		delete(m, "refresh_worker")
		if truthy(v) {
			res.StopPod = true
		}
	}
	if len(m) > 0 {
		res.Output = m
	}
	return res
}

// truthy mirrors the consumed-key semantics for JSON-decoded values: nil,
// false, empty string and zero numbers do not set the error/stopPod fields.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	// Non-string error values (maps, numbers) are carried as their JSON form.
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
