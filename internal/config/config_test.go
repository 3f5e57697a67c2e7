package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysProvidedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plazza.yaml")
	require.NoError(t, os.WriteFile(path, []byte("idle_timeout_seconds: 30\nmetrics_port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.IdleTimeoutSeconds)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, Default().RestockCeiling, cfg.RestockCeiling)
}
