package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/gauge/internal/testutil"
)

func TestReadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := ReadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTimeout())
}

func TestWriteThenRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cfg := DefaultConfig()
	cfg.Session.TimeoutDays = 7
	cfg.Session.AutoResume = true
	cfg.Sharing.Endpoint = "https://example.com/results"
	require.NoError(t, WriteConfig(dir, cfg))

	loaded, err := ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Session.TimeoutDays)
	assert.True(t, loaded.Session.AutoResume)
	assert.Equal(t, "https://example.com/results", loaded.Sharing.Endpoint)
	assert.Equal(t, 5*time.Second, loaded.SharingTimeout())
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	dir := testutil.TempDataDir(t, testutil.ConfigWith("session:\n  timeout_days: 14"))

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Session.TimeoutDays)
	assert.Equal(t, "gauge.db", cfg.Storage.DBFile)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"zero timeout", func(c *Config) { c.Session.TimeoutDays = 0 }, "session.timeout_days must be at least 1"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level must be one of"},
		{"bad endpoint", func(c *Config) { c.Sharing.Endpoint = "not a url" }, "sharing.endpoint must be a URL"},
		{"no db", func(c *Config) { c.Storage.DBFile = "" }, "storage.db_file is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(cfg)
			err := WriteConfig(t.TempDir(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadConfigRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("session: [oops"), 0644))

	_, err := ReadConfig(dir)
	assert.ErrorContains(t, err, "parsing config")
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/data", "gauge.db"), cfg.DBPath("/data"))

	cfg.Storage.DBFile = "/var/lib/gauge.db"
	assert.Equal(t, "/var/lib/gauge.db", cfg.DBPath("/data"))

	cfg.Storage.DBFile = ":memory:"
	assert.Equal(t, ":memory:", cfg.DBPath("/data"))
}
