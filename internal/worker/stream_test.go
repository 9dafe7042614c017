// ABOUTME: Tests for the streaming executor: per-partial envelopes and terminal error behavior.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MartinKlefas/runpod-go/internal/worker"
)

// producer returns a StreamHandler yielding the given partials in order.
func producer(partials ...worker.Partial) worker.StreamHandler {
	return func(ctx context.Context, _ *worker.Job) (<-chan worker.Partial, error) {
		out := make(chan worker.Partial)
		go func() {
			defer close(out)
			for _, p := range partials {
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

func collect(t *testing.T, ch <-chan worker.Result) []worker.Result {
	t.Helper()
	var results []worker.Result
	for res := range ch {
		results = append(results, res)
	}
	return results
}

func TestExecuteStream_EmitsOnePartialPerOutput(t *testing.T) {
	t.Parallel()
	handler := producer(
		worker.Partial{Output: 1},
		worker.Partial{Output: 2},
		worker.Partial{Output: 3},
	)

	results := collect(t, worker.NewStreamExecutor().Execute(context.Background(), handler, testJob(t)))

	require.Len(t, results, 3)
	for i, res := range results {
		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"output":%d}`, i+1), string(b))
	}
}

func TestExecuteStream_ErrorTerminatesSequence(t *testing.T) {
	t.Parallel()
	handler := producer(
		worker.Partial{Output: 1},
		worker.Partial{Output: 2},
		worker.Partial{Output: 3},
		worker.Partial{Err: errors.New("step 4 failed")},
		worker.Partial{Output: 5}, // must never surface
	)

	results := collect(t, worker.NewStreamExecutor().Execute(context.Background(), handler, testJob(t)))

	require.Len(t, results, 4)
	for _, res := range results[:3] {
		assert.Empty(t, res.Error)
		assert.NotNil(t, res.Output)
	}
	terminal := results[3]
	assert.Nil(t, terminal.Output)
	assert.Contains(t, terminal.Error, "handler: step 4 failed")
	assert.Contains(t, terminal.Error, "traceback:")
}

func TestExecuteStream_NormalExhaustionHasNoTerminalMarker(t *testing.T) {
	t.Parallel()
	handler := producer(worker.Partial{Output: "only"})

	results := collect(t, worker.NewStreamExecutor().Execute(context.Background(), handler, testJob(t)))

	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
}

func TestExecuteStream_HandlerStartupErrorEmitsSingleEnvelope(t *testing.T) {
	t.Parallel()
	handler := func(context.Context, *worker.Job) (<-chan worker.Partial, error) {
		return nil, errors.New("cannot start")
	}

	results := collect(t, worker.NewStreamExecutor().Execute(context.Background(), handler, testJob(t)))

	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "handler: cannot start")
}

func TestExecuteStream_HandlerPanicEmitsSingleEnvelope(t *testing.T) {
	t.Parallel()
	handler := func(context.Context, *worker.Job) (<-chan worker.Partial, error) {
		panic("stream boom")
	}

	results := collect(t, worker.NewStreamExecutor().Execute(context.Background(), handler, testJob(t)))

	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "stream boom")
}
