// ABOUTME: Concurrency-safe set of job IDs currently held by this worker process.
// ABOUTME: Advisory state only — annotates outbound polls, never blocks re-acquisition.
package worker

import "sync"

// Tracker maintains the set of jobs acquired but not yet marked complete.
// The source adds on acquisition; the runner removes after submission. It is
// the only shared state touched by concurrent pipelines, so every method is
// safe for parallel use.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]struct{}
}

// NewTracker creates an empty Tracker. Trackers are injected, not global, so
// tests can instantiate independent instances per scenario.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]struct{})}
}

// Add inserts id into the tracked set. Idempotent.
func (t *Tracker) Add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = struct{}{}
}

// Remove deletes id from the tracked set. Removing an untracked id is a no-op.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// IsBusy reports whether any job is currently tracked.
func (t *Tracker) IsBusy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs) > 0
}

// IDs returns a snapshot of the tracked job IDs, in no particular order.
// Consumed by the heartbeat pinger.
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.jobs))
	for id := range t.jobs {
		ids = append(ids, id)
	}
	return ids
}
