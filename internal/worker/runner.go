// ABOUTME: The acquire → execute → submit pipeline; N independent pipelines run concurrently.
// ABOUTME: Tracker removal and between-jobs cleanup happen here, after submission.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// JobSource yields jobs to a pipeline. Implemented by [Source]; stubbed in tests.
type JobSource interface {
	Acquire(ctx context.Context, retry bool) (*Job, error)
}

// Submitter delivers result envelopes to the queue submission layer.
type Submitter interface {
	SendResult(ctx context.Context, jobID string, res Result) error
	SendStreamResult(ctx context.Context, jobID string, res Result) error
}

// Observer receives job lifecycle notifications. All methods must be safe for
// concurrent use; a nil Observer disables observation.
type Observer interface {
	JobAcquired()
	JobSucceeded(d time.Duration)
	JobFailed(d time.Duration)
}

// Runner drives the full job lifecycle: it runs Concurrency independent
// acquire/execute/submit pipelines until ctx is cancelled or a handler
// requests a worker refresh via stopPod.
type Runner struct {
	Source   JobSource
	Executor *Executor
	Stream   *StreamExecutor
	Handlers HandlerSet
	Submit   Submitter
	Tracker  *Tracker
	// Cleanup runs between jobs, after submission and tracker removal.
	Cleanup  func()
	Observer Observer
	// Concurrency is the number of pipelines; values < 1 mean one.
	Concurrency int

	log *slog.Logger
}

// Run blocks until ctx is cancelled and all in-flight jobs have drained.
// A job already started runs to completion; only acquisition stops.
func (r *Runner) Run(ctx context.Context) error {
	if !r.Handlers.Valid() {
		return errors.New("worker: exactly one of Handler or Stream must be registered")
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	n := r.Concurrency
	if n < 1 {
		n = 1
	}

	// stopPod cancels this derived context so all pipelines wind down together.
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.pipeline(ctx, stop, id)
		}(i)
	}
	wg.Wait()
	r.log.Info("worker stopped", "pipelines", n)
	return nil
}

func (r *Runner) pipeline(ctx context.Context, stop context.CancelFunc, id int) {
	r.log.Info("pipeline started", "pipeline", id)
	for {
		job, err := r.Source.Acquire(ctx, true)
		if err != nil {
			r.log.Info("pipeline stopping", "pipeline", id)
			return
		}
		if job == nil {
			continue
		}
		if r.Observer != nil {
			r.Observer.JobAcquired()
		}
		r.process(ctx, stop, job)
	}
}

// process executes one job end to end. The job runs to completion even if ctx
// is cancelled mid-flight; only acquisition observes the worker's lifetime.
func (r *Runner) process(ctx context.Context, stop context.CancelFunc, job *Job) {
	defer func() {
		r.Tracker.Remove(job.ID)
		if r.Cleanup != nil {
			r.Cleanup()
		}
	}()

	start := time.Now()

	// Execution and submission run on a non-cancellable context: worker
	// shutdown stops acquisition only, and a cancelled ctx must not truncate
	// an in-flight stream or drop a finished result mid-drain.
	jobCtx := context.WithoutCancel(ctx)

	var res Result
	if r.Handlers.Stream != nil {
		res = r.runStream(jobCtx, job)
	} else {
		res = r.Executor.Execute(jobCtx, r.Handlers.Handler, job)
	}

	if err := r.Submit.SendResult(jobCtx, job.ID, res); err != nil {
		r.log.Error("submit result", "job_id", job.ID, "err", err)
	}

	if r.Observer != nil {
		if res.Error != "" {
			r.Observer.JobFailed(time.Since(start))
		} else {
			r.Observer.JobSucceeded(time.Since(start))
		}
	}

	if res.StopPod {
		r.log.Warn("worker refresh requested, stopping", "job_id", job.ID)
		stop()
	}
}

// runStream forwards each partial envelope to the stream endpoint and builds
// the terminal result: the error envelope if production failed, the collected
// partials when AggregateStream is set, an empty envelope otherwise.
func (r *Runner) runStream(ctx context.Context, job *Job) Result {
	var (
		aggregate []any
		final     Result
	)
	for res := range r.Stream.Execute(ctx, r.Handlers.Stream, job) {
		if res.Error != "" {
			final = res
			continue // channel closes after a terminal error
		}
		if r.Handlers.AggregateStream {
			aggregate = append(aggregate, res.Output)
		}
		if err := r.Submit.SendStreamResult(ctx, job.ID, res); err != nil {
			r.log.Error("submit stream partial", "job_id", job.ID, "err", err)
		}
	}
	if final.Error == "" && r.Handlers.AggregateStream {
		final = Result{Output: aggregate}
	}
	return final
}
