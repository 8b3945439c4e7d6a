package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, int64(30_000), cfg.Limits.TimeoutMS)
	assert.Equal(t, int64(10_000_000), cfg.Limits.MemoryBytes)
	assert.Contains(t, cfg.EssentialJSONKeys, "name")
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxResponseBytes, cfg.MaxResponseBytes)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scriptbox.yaml")
	yaml := []byte("allowed_hosts:\n  - api.example.com\nlimits:\n  timeout_ms: 5000\n  memory_bytes: 2000000\n")
	require.NoError(t, os.WriteFile(path, yaml, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"api.example.com"}, cfg.AllowedHosts)
	assert.Equal(t, int64(5000), cfg.Limits.TimeoutMS)
	assert.Equal(t, int64(2_000_000), cfg.Limits.MemoryBytes)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scriptbox.yaml")
	cfg := DefaultConfig()
	cfg.AllowedHosts = []string{"pokeapi.co"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pokeapi.co"}, loaded.AllowedHosts)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCRIPTBOX_ALLOWED_HOSTS", "a.example.com,b.example.com")
	t.Setenv("SCRIPTBOX_TIMEOUT_MS", "1234")
	t.Setenv("SCRIPTBOX_MEMORY_BYTES", "999")
	t.Setenv("SCRIPTBOX_VERBOSE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.AllowedHosts)
	assert.Equal(t, int64(1234), cfg.Limits.TimeoutMS)
	assert.Equal(t, int64(999), cfg.Limits.MemoryBytes)
	assert.True(t, cfg.Logging.Verbose)
}

func TestRunLimits_Validate(t *testing.T) {
	assert.Error(t, RunLimits{TimeoutMS: 0, MemoryBytes: 100}.Validate())
	assert.Error(t, RunLimits{TimeoutMS: 100, MemoryBytes: 0}.Validate())
	assert.NoError(t, RunLimits{TimeoutMS: 100, MemoryBytes: 100}.Validate())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"tools": false}}
	assert.False(t, lc.IsCategoryEnabled("tools"))
	assert.True(t, lc.IsCategoryEnabled("executor"))

	var unset LoggingConfig
	assert.True(t, unset.IsCategoryEnabled("anything"))
}
