// ABOUTME: Local development API: invoke the registered handler over HTTP without a queue.
// ABOUTME: POST /run and POST /stream mirror the platform's invocation endpoints.
package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MartinKlefas/runpod-go/internal/worker"
)

// Server exposes the registered handler for local testing. Jobs are
// synthesized from request bodies; nothing touches the remote queue.
type Server struct {
	handlers worker.HandlerSet
	exec     *worker.Executor
	stream   *worker.StreamExecutor
	log      *slog.Logger
}

// NewServer creates a local API server around the given handler set.
func NewServer(handlers worker.HandlerSet, exec *worker.Executor, stream *worker.StreamExecutor) *Server {
	return &Server{
		handlers: handlers,
		exec:     exec,
		stream:   stream,
		log:      slog.Default(),
	}
}

// runRequest is the invocation body: the same shape a queue message carries,
// minus the id (one is generated per request).
type runRequest struct {
	Input json.RawMessage `json:"input"`
}

type runResponse struct {
	ID string `json:"id"`
	worker.Result
}

type streamResponse struct {
	ID     string          `json:"id"`
	Stream []worker.Result `json:"stream"`
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 20 MB body limit mirrors the platform's request payload cap.
	r.Use(middleware.RequestSize(20 << 20))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Post("/run", s.runHandler)
	r.Post("/stream", s.streamHandler)
	return r
}

// Serve runs the local API on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("local API started", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// runHandler executes the handler once and returns the terminal envelope.
// Streaming deployments always get their partials collected into an output
// list here, regardless of the AggregateStream flag — a /run caller has no
// stream endpoint to read partials from, so an unaggregated response would
// always be empty.
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := s.decodeJob(w, r)
	if !ok {
		return
	}

	var res worker.Result
	if s.handlers.Stream != nil {
		var aggregate []any
		for partial := range s.stream.Execute(r.Context(), s.handlers.Stream, job) {
			if partial.Error != "" {
				res = partial
				continue
			}
			aggregate = append(aggregate, partial.Output)
		}
		if res.Error == "" {
			res = worker.Result{Output: aggregate}
		}
	} else {
		res = s.exec.Execute(r.Context(), s.handlers.Handler, job)
	}

	writeJSON(w, http.StatusOK, runResponse{ID: job.ID, Result: res})
}

// streamHandler runs a streaming handler and returns every partial envelope.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	if s.handlers.Stream == nil {
		http.Error(w, "no stream handler registered", http.StatusNotImplemented)
		return
	}
	job, ok := s.decodeJob(w, r)
	if !ok {
		return
	}

	partials := make([]worker.Result, 0)
	for partial := range s.stream.Execute(r.Context(), s.handlers.Stream, job) {
		partials = append(partials, partial)
	}
	writeJSON(w, http.StatusOK, streamResponse{ID: job.ID, Stream: partials})
}

func (s *Server) decodeJob(w http.ResponseWriter, r *http.Request) (*worker.Job, bool) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if len(req.Input) == 0 {
		http.Error(w, "missing input", http.StatusBadRequest)
		return nil, false
	}
	return &worker.Job{ID: "test-" + uuid.NewString(), Input: req.Input}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}
