// ABOUTME: Prometheus instrumentation for the job lifecycle, exposed on a debug listener.
// ABOUTME: Implements the worker.Observer interface consumed by the runner.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the worker's Prometheus collectors.
type Metrics struct {
	jobsAcquired prometheus.Counter
	jobsDone     *prometheus.CounterVec
	jobDuration  prometheus.Histogram
}

// New registers the worker collectors on reg (use prometheus.DefaultRegisterer
// in production; a fresh registry in tests).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsAcquired: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_jobs_acquired_total",
			Help: "Jobs acquired from the queue.",
		}),
		jobsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_done_total",
			Help: "Jobs finished, by outcome.",
		}, []string{"outcome"}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Wall time from acquisition to submitted result.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms .. ~7m
		}),
	}
}

// JobAcquired implements worker.Observer.
func (m *Metrics) JobAcquired() { m.jobsAcquired.Inc() }

// JobSucceeded implements worker.Observer.
func (m *Metrics) JobSucceeded(d time.Duration) {
	m.jobsDone.WithLabelValues("success").Inc()
	m.jobDuration.Observe(d.Seconds())
}

// JobFailed implements worker.Observer.
func (m *Metrics) JobFailed(d time.Duration) {
	m.jobsDone.WithLabelValues("error").Inc()
	m.jobDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled. Call in its own
// goroutine; listener failures are logged, never fatal to the worker.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics listener failed", "err", err)
	}
}
