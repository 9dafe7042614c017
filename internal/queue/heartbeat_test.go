// ABOUTME: Tests for the heartbeat pinger: job-ID reporting and interval behavior.
package queue_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MartinKlefas/runpod-go/internal/queue"
)

type staticJobs struct {
	mu  sync.Mutex
	ids []string
}

func (s *staticJobs) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func TestPinger_ReportsHeldJobIDs(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("job_id"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := queue.NewPinger(
		&http.Client{Timeout: time.Second},
		srv.URL+"/ping",
		"key",
		10*time.Millisecond,
		&staticJobs{ids: []string{"a", "b"}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); p.Start(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(queries) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a,b", queries[0])
}

func TestPinger_NoURLDisablesHeartbeat(t *testing.T) {
	t.Parallel()
	p := queue.NewPinger(&http.Client{}, "", "", 10*time.Millisecond, &staticJobs{})

	done := make(chan struct{})
	go func() { defer close(done); p.Start(context.Background()) }()

	select {
	case <-done: // returned immediately
	case <-time.After(time.Second):
		t.Fatal("pinger did not return with no URL configured")
	}
}
