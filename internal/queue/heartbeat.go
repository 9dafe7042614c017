// ABOUTME: Background heartbeat: pings the queue API with the currently held job IDs.
// ABOUTME: Failures are logged and skipped; the heartbeat never takes the worker down.
package queue

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// jobLister is the tracker-side view the pinger needs.
type jobLister interface {
	IDs() []string
}

// Pinger reports worker liveness to the queue API at a fixed interval,
// attaching the in-flight job IDs so the platform can detect orphaned jobs.
type Pinger struct {
	http     *http.Client
	pingURL  string
	apiKey   string
	interval time.Duration
	jobs     jobLister
	log      *slog.Logger
}

// NewPinger creates a Pinger. pingURL must already have the worker-ID
// placeholder substituted. interval <= 0 falls back to 10s.
func NewPinger(httpClient *http.Client, pingURL, apiKey string, interval time.Duration, jobs jobLister) *Pinger {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Pinger{
		http:     httpClient,
		pingURL:  pingURL,
		apiKey:   apiKey,
		interval: interval,
		jobs:     jobs,
		log:      slog.Default(),
	}
}

// Start pings until ctx is cancelled. Call in its own goroutine.
func (p *Pinger) Start(ctx context.Context) {
	if p.pingURL == "" {
		p.log.Debug("heartbeat disabled, no ping URL configured")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("heartbeat started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("heartbeat stopping")
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	u, err := url.Parse(p.pingURL)
	if err != nil {
		p.log.Error("parse ping url", "err", err)
		return
	}
	q := u.Query()
	if ids := p.jobs.IDs(); len(ids) > 0 {
		q.Set("job_id", strings.Join(ids, ","))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		p.log.Error("build ping request", "err", err)
		return
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.Warn("heartbeat failed", "err", err)
		return
	}
	defer resp.Body.Close()                              //nolint:errcheck
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		p.log.Warn("heartbeat rejected", "status", resp.StatusCode)
	}
}
