// ABOUTME: Result submission client: POSTs envelopes to the job-done and job-stream URLs.
// ABOUTME: Retries with exponential backoff + jitter; the http.Client is injected at startup.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/MartinKlefas/runpod-go/internal/worker"
)

const (
	defaultMaxAttempts = 3
	backoffBase        = time.Second
)

// Client submits job results to the queue API. Both URL templates carry a
// "$ID" placeholder replaced with the job ID at submission time.
type Client struct {
	http        *http.Client
	doneURL     string
	streamURL   string
	apiKey      string
	maxAttempts int
	log         *slog.Logger
}

// New creates a Client. maxAttempts < 1 falls back to 3.
func New(httpClient *http.Client, doneURL, streamURL, apiKey string, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	return &Client{
		http:        httpClient,
		doneURL:     doneURL,
		streamURL:   streamURL,
		apiKey:      apiKey,
		maxAttempts: maxAttempts,
		log:         slog.Default(),
	}
}

// SendResult posts the terminal envelope for jobID to the job-done endpoint.
func (c *Client) SendResult(ctx context.Context, jobID string, res worker.Result) error {
	return c.post(ctx, c.doneURL, jobID, res)
}

// SendStreamResult posts one partial envelope for jobID to the stream endpoint.
func (c *Client) SendStreamResult(ctx context.Context, jobID string, res worker.Result) error {
	return c.post(ctx, c.streamURL, jobID, res)
}

func (c *Client) post(ctx context.Context, urlTemplate, jobID string, res worker.Result) error {
	if urlTemplate == "" {
		return fmt.Errorf("queue: no submission URL configured for job %q", jobID)
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("queue: encode result: %w", err)
	}
	url := strings.ReplaceAll(urlTemplate, "$ID", jobID)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.postOnce(ctx, url, payload)
		if lastErr == nil {
			return nil
		}
		c.log.Warn("result submission failed",
			"job_id", jobID, "attempt", attempt, "err", lastErr)
		if attempt == c.maxAttempts {
			break
		}

		// time.NewTimer (not time.After) to avoid leaking the timer if ctx is
		// cancelled before it fires.
		timer := time.NewTimer(backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("queue: submit result for job %q: %w", jobID, lastErr)
}

func (c *Client) postOnce(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	// Discard response body to allow connection reuse; cap at 4 KiB.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// backoff returns the delay before retry attempt+1: exponential with jitter.
func backoff(attempt int) time.Duration {
	delay := float64(backoffBase) * math.Pow(2, float64(attempt-1))
	jitter := 0.5 + rand.Float64()
	return time.Duration(delay * jitter)
}
