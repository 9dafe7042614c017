// ABOUTME: Result envelope returned to the queue submission layer, plus the size policy.
// ABOUTME: Output and Error are mutually exclusive except for partial success.
package worker

import (
	"encoding/json"
	"fmt"
)

// DefaultMaxResultBytes is the serialized-envelope cap applied when no explicit
// size policy is configured. 20 MiB matches the platform's /run payload limit.
const DefaultMaxResultBytes = 20 << 20

// Result is the wire envelope for one job outcome (or one stream partial).
//
// Output holds nil — and therefore serializes to nothing — when the handler
// produced an empty map; an envelope with neither output nor error is a valid
// terminal state. StopPod is true or absent, never false.
type Result struct {
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
	StopPod bool   `json:"stopPod,omitempty"`
}

// SizePolicy validates a candidate envelope before submission. A non-nil
// return is treated exactly like a handler failure by the executor.
type SizePolicy func(*Result) error

// MaxBytesPolicy returns a SizePolicy rejecting envelopes whose JSON encoding
// exceeds maxBytes. maxBytes <= 0 falls back to DefaultMaxResultBytes.
func MaxBytesPolicy(maxBytes int) SizePolicy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResultBytes
	}
	return func(r *Result) error {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("worker: encode result: %w", err)
		}
		if len(b) > maxBytes {
			return fmt.Errorf("worker: result size %d bytes exceeds limit of %d bytes", len(b), maxBytes)
		}
		return nil
	}
}
