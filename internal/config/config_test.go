package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.Search.MaxSteps)
	assert.Equal(t, 3, cfg.Search.DiffsPerStep)
	assert.Equal(t, 2, cfg.Search.Finalists)
	assert.Equal(t, 1, cfg.Search.RetriesPerStep)
	assert.False(t, cfg.Search.InvestigationsEnabled)
	assert.False(t, cfg.Search.UseLandmarks)
	assert.Equal(t, 12, cfg.Limits.MaxLOCChanges)
	assert.Equal(t, 2, cfg.Limits.MaxFilesPerDiff)
	assert.Equal(t, 80, cfg.Limits.SlicePaddingLines)
	assert.Equal(t, 3, cfg.TNR.ActionsPerTxn)
	assert.True(t, cfg.TNR.RequireMuNonworsening)
	assert.True(t, cfg.Gates.Static)
	assert.True(t, cfg.Gates.TargetedTests)
	assert.False(t, cfg.Gates.Smoke)
	assert.Equal(t, ".agent_runs", cfg.Logging.Dir)
	assert.False(t, cfg.Logging.Stream)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadAppliesDefaultsForOmittedKeysAndKeepsOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cip-agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  max_steps: 8
gates:
  static: false
tnr:
  require_mu_nonworsening: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Search.MaxSteps)
	assert.Equal(t, 3, cfg.Search.DiffsPerStep, "omitted key should fall back to default")
	assert.False(t, cfg.Gates.Static, "explicit false must not be overridden")
	assert.True(t, cfg.Gates.TargetedTests, "omitted boolean should default true")
	assert.False(t, cfg.TNR.RequireMuNonworsening, "explicit false must not be overridden")
}
