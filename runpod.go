// Package runpod is the public surface of the serverless worker SDK. A worker
// binary registers its handler and calls [Start] for remote mode or
// [StartLocal] for the queue-less development API:
//
//	func main() {
//		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
//		defer stop()
//		if err := runpod.Start(ctx, runpod.HandlerSet{Handler: myHandler}); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// All configuration is environment-driven; see internal/config for the
// RUNPOD_* variables the platform injects into pods.
package runpod

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MartinKlefas/runpod-go/internal/cleanup"
	"github.com/MartinKlefas/runpod-go/internal/config"
	"github.com/MartinKlefas/runpod-go/internal/localapi"
	"github.com/MartinKlefas/runpod-go/internal/metrics"
	"github.com/MartinKlefas/runpod-go/internal/queue"
	"github.com/MartinKlefas/runpod-go/internal/worker"
)

// Re-exported worker types; see the worker package for documentation.
type (
	Job           = worker.Job
	Result        = worker.Result
	Handler       = worker.Handler
	StreamHandler = worker.StreamHandler
	Partial       = worker.Partial
	HandlerSet    = worker.HandlerSet
)

// Start runs the remote worker loop until ctx is cancelled or a handler
// requests a pod refresh. Configuration is loaded from the environment.
func Start(ctx context.Context, handlers HandlerSet) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return StartWithConfig(ctx, cfg, handlers)
}

// StartWithConfig is Start with an explicit configuration, for callers that
// load or override config themselves.
func StartWithConfig(ctx context.Context, cfg *config.Config, handlers HandlerSet) error {
	if cfg.WebhookGetJob == "" {
		return errors.New("runpod: RUNPOD_WEBHOOK_GET_JOB is not set")
	}
	if !handlers.Valid() {
		return errors.New("runpod: exactly one of Handler or Stream must be set")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	tracker := worker.NewTracker()

	source, err := worker.NewSource(
		httpClient,
		strings.ReplaceAll(cfg.WebhookGetJob, "$ID", cfg.PodID),
		cfg.APIKey,
		tracker,
		cfg.PollInterval,
	)
	if err != nil {
		return err
	}

	submit := queue.New(httpClient, cfg.WebhookPostOutput, cfg.WebhookPostStream, cfg.APIKey, cfg.SubmitAttempts)

	pinger := queue.NewPinger(
		httpClient,
		strings.ReplaceAll(cfg.WebhookPing, "$ID", cfg.PodID),
		cfg.APIKey,
		cfg.PingInterval,
		tracker,
	)
	go pinger.Start(ctx)

	var observer worker.Observer
	if cfg.MetricsAddr != "" {
		m := metrics.New(prometheus.DefaultRegisterer)
		observer = m
		go metrics.Serve(ctx, cfg.MetricsAddr)
	}

	runner := &worker.Runner{
		Source:      source,
		Executor:    worker.NewExecutor(cfg.PodHostname, cfg.PodID, worker.MaxBytesPolicy(cfg.MaxResultBytes)),
		Stream:      worker.NewStreamExecutor(),
		Handlers:    handlers,
		Submit:      submit,
		Tracker:     tracker,
		Cleanup:     func() { cleanup.Clean(nil) },
		Observer:    observer,
		Concurrency: cfg.Concurrency,
	}
	return runner.Run(ctx)
}

// StartLocal serves the local development API (POST /run, POST /stream,
// GET /health) instead of polling a queue. Blocks until ctx is cancelled.
func StartLocal(ctx context.Context, handlers HandlerSet) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !handlers.Valid() {
		return errors.New("runpod: exactly one of Handler or Stream must be set")
	}

	srv := localapi.NewServer(
		handlers,
		worker.NewExecutor(cfg.PodHostname, cfg.PodID, worker.MaxBytesPolicy(cfg.MaxResultBytes)),
		worker.NewStreamExecutor(),
	)
	return srv.Serve(ctx, cfg.LocalAPIAddr)
}
