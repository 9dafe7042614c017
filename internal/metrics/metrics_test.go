// ABOUTME: Tests for job lifecycle counters.
package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/MartinKlefas/runpod-go/internal/metrics"
)

func TestLifecycleCounters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.JobAcquired()
	m.JobAcquired()
	m.JobSucceeded(100 * time.Millisecond)
	m.JobFailed(50 * time.Millisecond)

	families, err := reg.Gather()
	assert.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	assert.True(t, found["worker_jobs_acquired_total"])
	assert.True(t, found["worker_jobs_done_total"])
	assert.True(t, found["worker_job_duration_seconds"])
}
