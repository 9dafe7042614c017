// ABOUTME: Structured diagnostic payload built from a captured handler failure.
// ABOUTME: Serialized to JSON and placed verbatim in the result envelope's error field.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/MartinKlefas/runpod-go/internal/version"
)

// errorInfo is the fixed-shape diagnostic record embedded in Result.Error when
// a handler fails. Field names are part of the wire contract consumed by the
// platform's error reporting; do not rename.
type errorInfo struct {
	ErrorType      string `json:"error_type"`
	ErrorMessage   string `json:"error_message"`
	ErrorTraceback string `json:"error_traceback"`
	Hostname       string `json:"hostname"`
	WorkerID       string `json:"worker_id"`
	RunpodVersion  string `json:"runpod_version"`
}

// captureError converts a failure (an error return or a recovered panic value)
// plus the goroutine stack at the capture point into the serialized diagnostic
// payload. Falls back to a plain message if the payload itself will not encode.
func (e *Executor) captureError(cause any, stack []byte) string {
	info := errorInfo{
		ErrorType:      fmt.Sprintf("%T", cause),
		ErrorMessage:   fmt.Sprint(cause),
		ErrorTraceback: string(stack),
		Hostname:       e.hostname,
		WorkerID:       e.workerID,
		RunpodVersion:  version.Version,
	}
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Sprintf("handler error: %v", cause)
	}
	return string(b)
}
