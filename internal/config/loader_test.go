package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, "leakgate.yaml", cfg.Policy.Path)
	assert.Equal(t, "30s", cfg.Watchdog.Interval)
	assert.Equal(t, 4, cfg.Watchdog.Parallelism)
	assert.Equal(t, "none", cfg.State.Backend)
	assert.False(t, cfg.Server.Enabled)
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
  format: json
watchdog:
  interval: 5s
state:
  backend: sqlite
  path: /tmp/leakgate-state
server:
  enabled: true
  addr: 127.0.0.1:8800
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "5s", cfg.Watchdog.Interval)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "127.0.0.1:8800", cfg.Server.Addr)
	// Untouched sections keep defaults.
	assert.Equal(t, 4, cfg.Watchdog.Parallelism)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEAKGATE_POLICY_PATH", "/etc/leakgate/policies.yaml")
	t.Setenv("LEAKGATE_WATCHDOG_INTERVAL", "2m")
	t.Setenv("LEAKGATE_ALERT_ENDPOINT", "https://alerts.internal/hook")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/leakgate/policies.yaml", cfg.Policy.Path)
	assert.Equal(t, "2m", cfg.Watchdog.Interval)
	assert.Equal(t, "https://alerts.internal/hook", cfg.Alert.Endpoint)
}

func TestLoader_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigFile(path).Load()
	require.Error(t, err)
}
