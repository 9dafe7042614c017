// Package cleanup removes the ephemeral working files a handler may leave
// behind, so consecutive jobs on the same pod start from a clean slate.
package cleanup

import (
	"log/slog"
	"os"
)

// defaultTargets are the conventional scratch locations used by handlers that
// download inputs and stage outputs for upload.
var defaultTargets = []string{"input_objects", "output_objects"}

// Clean removes the default scratch directories, the staged output archive,
// and any caller-supplied folders. Absent paths are tolerated silently;
// anything else that fails to delete is logged and skipped.
func Clean(folders []string) {
	for _, dir := range append(append([]string{}, defaultTargets...), folders...) {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("cleanup: remove directory", "dir", dir, "err", err)
		}
	}
	if err := os.Remove("output.zip"); err != nil && !os.IsNotExist(err) {
		slog.Warn("cleanup: remove output.zip", "err", err)
	}
}
