package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPublishesUpdateOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  max_steps: 4\n"), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("search:\n  max_steps: 9\n"), 0o644))

	select {
	case cfg := <-w.Updates():
		assert.Equal(t, 9, cfg.Search.MaxSteps)
	case err := <-w.Errors():
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatchMissingFileErrors(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
