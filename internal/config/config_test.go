package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "zaloga.yaml", `
db: /var/lib/zaloga/data.sqlite3
server:
  addr: 127.0.0.1:9000
log:
  level: debug
  format: json
alerts:
  default_threshold: 20
  due_window_days: 3
  cooldown: 6h
  sweep_interval: 1m
cors:
  allowed_origins: [https://inventory.example.com]
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/zaloga/data.sqlite3", cfg.DB)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Alerts.DefaultThreshold)
	assert.Equal(t, 3, cfg.Alerts.DueWindowDays)
	assert.Equal(t, 6*time.Hour, cfg.Alerts.Cooldown)
	assert.Equal(t, time.Minute, cfg.Alerts.SweepInterval)
	assert.Equal(t, []string{"https://inventory.example.com"}, cfg.CORS.AllowedOrigins)

	// Unset keys keep their defaults.
	assert.Equal(t, 30, cfg.Alerts.ExpirationWindowDays)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "zaloga.yaml", "server:\n  addr: :9000\nalerts:\n  sweep_interval: 1m\n")
	t.Setenv("ZALOGA_ADDR", ":7000")
	t.Setenv("ZALOGA_SWEEP_INTERVAL", "0s")
	t.Setenv("ZALOGA_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Zero(t, cfg.Alerts.SweepInterval)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestDotEnvBelowProcessEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "ZALOGA_DB=from-dotenv.sqlite3\nZALOGA_LOG_LEVEL=warn\n")
	t.Setenv("ZALOGA_LOG_LEVEL", "error")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.sqlite3", cfg.DB)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad level", yaml: "log:\n  level: loud\n"},
		{name: "bad format", yaml: "log:\n  format: xml\n"},
		{name: "negative window", yaml: "alerts:\n  due_window_days: -1\n"},
		{name: "malformed yaml", yaml: "server: [\n"},
		{name: "bad env duration", env: map[string]string{"ZALOGA_COOLDOWN": "soon"}},
		{name: "bad env number", env: map[string]string{"ZALOGA_DEFAULT_THRESHOLD": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "zaloga.yaml", tt.yaml)
			_, err := Load(path, "")
			assert.Error(t, err)
		})
	}
}

func TestAlertEngineConfig(t *testing.T) {
	a := Default().Alerts
	a.Cooldown = time.Hour
	got := a.Engine()
	assert.Equal(t, 10, got.DefaultThreshold)
	assert.Equal(t, 30*24*time.Hour, got.ExpirationWindow)
	assert.Equal(t, 7*24*time.Hour, got.DueWindow)
	assert.Equal(t, time.Hour, got.Cooldown)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
