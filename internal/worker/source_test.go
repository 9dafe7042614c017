// ABOUTME: Tests for job acquisition: status classification, shape validation, busy flag.
package worker_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MartinKlefas/runpod-go/internal/worker"
)

const testPollInterval = 5 * time.Millisecond

func newTestSource(t *testing.T, url string, tracker *worker.Tracker) *worker.Source {
	t.Helper()
	src, err := worker.NewSource(&http.Client{Timeout: time.Second}, url, "test-key", tracker, testPollInterval)
	require.NoError(t, err)
	return src
}

func TestAcquire_ValidJobRegisteredWithTracker(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("job_in_progress"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"job-1","input":{"prompt":"hi"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tracker := worker.NewTracker()
	job, err := newTestSource(t, srv.URL, tracker).Acquire(context.Background(), false)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.JSONEq(t, `{"prompt":"hi"}`, string(job.Input))
	assert.True(t, tracker.IsBusy(), "tracker must be busy immediately after acquisition")
}

func TestAcquire_NoRetryReturnsImmediately(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
	}{
		{"204 no content", http.StatusNoContent},
		{"400 bad request", http.StatusBadRequest},
		{"500 unexpected", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			job, err := newTestSource(t, srv.URL, worker.NewTracker()).Acquire(context.Background(), false)

			require.NoError(t, err)
			assert.Nil(t, job)
			assert.Equal(t, int32(1), calls.Load(), "retry=false must not loop")
		})
	}
}

func TestAcquire_MalformedJobsDiscardedAndPollingContinues(t *testing.T) {
	t.Parallel()
	responses := []string{
		`{"input":{"x":1}}`,                  // missing id
		`{"id":"job-a"}`,                     // missing input
		`{"id":"","input":null}`,             // both missing
		`not json at all`,                    // parse failure
		`{"id":"job-b","input":{"ok":true}}`, // finally valid
	}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		w.Write([]byte(responses[n-1])) //nolint:errcheck
	}))
	defer srv.Close()

	tracker := worker.NewTracker()
	job, err := newTestSource(t, srv.URL, tracker).Acquire(context.Background(), true)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-b", job.ID)
	assert.Equal(t, int32(5), calls.Load())
	assert.ElementsMatch(t, []string{"job-b"}, tracker.IDs())
}

func TestAcquire_RetriesThroughTransientStatuses(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusNoContent)
		case 2:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"id":"job-2","input":42}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	job, err := newTestSource(t, srv.URL, worker.NewTracker()).Acquire(context.Background(), true)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-2", job.ID)
}

func TestAcquire_BusyFlagReflectsTracker(t *testing.T) {
	t.Parallel()
	var flag atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flag.Store(r.URL.Query().Get("job_in_progress"))
		w.Write([]byte(`{"id":"job-3","input":1}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tracker := worker.NewTracker()
	tracker.Add("already-running")

	_, err := newTestSource(t, srv.URL, tracker).Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "1", flag.Load())
}

func TestAcquire_ExistingQueryParamsPreserved(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "worker-9", r.URL.Query().Get("pod"))
		assert.Equal(t, "0", r.URL.Query().Get("job_in_progress"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := newTestSource(t, srv.URL+"/?pod=worker-9", worker.NewTracker()).Acquire(context.Background(), false)
	require.NoError(t, err)
}

func TestAcquire_BackToBackAcquisitionsAreNotPaced(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		w.Write([]byte(fmt.Sprintf(`{"id":"job-%d","input":1}`, n))) //nolint:errcheck
	}))
	defer srv.Close()

	// Long poll interval: the idle delay applies only between empty polls, so
	// a backlogged queue drains without waiting it out.
	tracker := worker.NewTracker()
	src, err := worker.NewSource(&http.Client{Timeout: time.Second}, srv.URL, "", tracker, 5*time.Second)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		job, err := src.Acquire(context.Background(), true)
		require.NoError(t, err)
		require.NotNil(t, job)
	}
	assert.Less(t, time.Since(start), time.Second, "successful acquisitions must not consume the poll limiter")
}

func TestAcquire_CancelledContextStopsRetrying(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	job, err := newTestSource(t, srv.URL, worker.NewTracker()).Acquire(ctx, true)

	assert.Nil(t, job)
	require.Error(t, err, "cancellation is the only condition Acquire surfaces as an error")
}
