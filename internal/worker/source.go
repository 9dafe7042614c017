// ABOUTME: Job acquisition: long-poll the queue endpoint, validate shape, register with tracker.
// ABOUTME: Every transient failure collapses into "keep polling"; nothing here raises past Acquire.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Source polls the remote queue endpoint for new work. The busy flag derived
// from the tracker annotates every poll; accepted jobs are registered with the
// tracker before being handed to the caller.
type Source struct {
	client  *http.Client
	getURL  *url.URL
	apiKey  string
	tracker *Tracker
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewSource creates a Source polling getURL, idling pollInterval between
// empty polls. getURL must already have the worker-ID placeholder
// substituted. apiKey may be empty for unauthenticated local endpoints.
func NewSource(client *http.Client, getURL, apiKey string, tracker *Tracker, pollInterval time.Duration) (*Source, error) {
	u, err := url.Parse(getURL)
	if err != nil {
		return nil, fmt.Errorf("worker: parse job-get url: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Source{
		client:  client,
		getURL:  u,
		apiKey:  apiKey,
		tracker: tracker,
		limiter: rate.NewLimiter(rate.Every(pollInterval), 1),
		log:     slog.Default(),
	}, nil
}

// Acquire polls until a valid job is available and returns it, registered
// with the tracker. With retry=false the first "no job" outcome — 204, 400,
// unexpected status, transport error, or a malformed message — returns
// (nil, nil) immediately so bounded-wait callers never block.
//
// Acquire returns an error only when ctx is cancelled; all queue-side failure
// modes are logged and retried.
func (s *Source) Acquire(ctx context.Context, retry bool) (*Job, error) {
	for {
		job := s.poll(ctx)
		if job != nil {
			s.tracker.Add(job.ID)
			s.log.Debug("job acquired", "job_id", job.ID)
			return job, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !retry {
			return nil, nil
		}
		s.log.Debug("no job available, waiting for the next one")

		// Idle only between empty polls, so a backlogged queue drains at full
		// speed while an empty one never turns into a tight loop against the
		// endpoint.
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// poll issues one GET against the queue and returns a valid job or nil.
func (s *Source) poll(ctx context.Context) *Job {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pollURL(), nil)
	if err != nil {
		s.log.Error("build job request", "err", err)
		return nil
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("error while getting job", "err", err)
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNoContent:
		s.log.Debug("no content, no job to process")
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		// Expected when FlashBoot is enabled; not an error condition.
		s.log.Debug("received 400 status from job endpoint")
		return nil
	case resp.StatusCode != http.StatusOK:
		s.log.Error("failed to get job", "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Error("read job body", "err", err)
		return nil
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("parse job body", "err", err)
		return nil
	}

	if missing := missingFields(&job); len(missing) > 0 {
		s.log.Error("job has missing fields", "missing", strings.Join(missing, ", "))
		return nil
	}
	return &job
}

// pollURL renders the acquisition URL with the current busy flag.
func (s *Source) pollURL() string {
	u := *s.getURL
	q := u.Query()
	flag := "0"
	if s.tracker.IsBusy() {
		flag = "1"
	}
	q.Set("job_in_progress", flag)
	u.RawQuery = q.Encode()
	return u.String()
}

// missingFields names the invalid or absent required fields of a queue
// message. A JSON null input counts as missing.
func missingFields(job *Job) []string {
	var missing []string
	if job.ID == "" {
		missing = append(missing, "id")
	}
	input := bytes.TrimSpace(job.Input)
	if len(input) == 0 || bytes.Equal(input, []byte("null")) {
		missing = append(missing, "input")
	}
	return missing
}
