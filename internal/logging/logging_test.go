package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Dir: dir})
	log.Info("daemon started", "pid", 123)

	data, err := os.ReadFile(filepath.Join(dir, defaultFilename))
	require.NoError(t, err)
	require.Contains(t, string(data), "daemon started")
	require.Contains(t, string(data), "pid=123")
}

func TestNewColorModeDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Dir: dir, Color: true})
	log.Warn("retrying")
}

func TestValOrFallsBackToDefault(t *testing.T) {
	require.Equal(t, defaultMaxSizeMB, valOr(0, defaultMaxSizeMB))
	require.Equal(t, 42, valOr(42, defaultMaxSizeMB))
}
