// ABOUTME: Tests for between-jobs cleanup of scratch directories and staged archives.
package cleanup_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MartinKlefas/runpod-go/internal/cleanup"
)

// chdir changes into dir for the duration of the test. testing.T.Chdir
// requires Go 1.24; this helper does the same on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestClean_RemovesScratchLocations(t *testing.T) {
	chdir(t, t.TempDir())

	for _, dir := range []string{"input_objects", "output_objects", "job_tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "f.bin"), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile("output.zip", []byte("zip"), 0o644))
	require.NoError(t, os.WriteFile("keep.txt", []byte("keep"), 0o644))

	cleanup.Clean([]string{"job_tmp"})

	for _, path := range []string{"input_objects", "output_objects", "job_tmp", "output.zip"} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "%s should be removed", path)
	}
	_, err := os.Stat("keep.txt")
	assert.NoError(t, err, "unrelated files must survive cleanup")
}

func TestClean_ToleratesAbsentTargets(t *testing.T) {
	chdir(t, t.TempDir())

	assert.NotPanics(t, func() {
		cleanup.Clean([]string{"never_existed"})
		cleanup.Clean(nil)
	})
}
