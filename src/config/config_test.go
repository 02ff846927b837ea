package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("MYSQL_DSN", "geo:pw@tcp(localhost:3306)/geo")
	t.Setenv("IPFS_CONCURRENCY", "8")
	t.Setenv("STREAM_IDLE_TIMEOUT", "90s")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, _, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "geo:pw@tcp(localhost:3306)/geo", cfg.Database.DSN)
	assert.Equal(t, 500, cfg.Database.ChunkSize)
	assert.Equal(t, 8, cfg.IPFS.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.IPFS.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Stream.IdleTimeout)
	assert.Equal(t, 5, cfg.Stream.MaxAttempts)
	assert.Equal(t, "geo_out", cfg.Stream.OutputModule)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")
	_, _, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geo-sink.yaml")
	yaml := "database:\n  dsn: file-dsn\n  chunk_size: 100\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-dsn", cfg.Database.DSN)
	assert.Equal(t, 100, cfg.Database.ChunkSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestSettingsOverlay(t *testing.T) {
	t.Setenv("MYSQL_DSN", "env-dsn")
	_, loader, err := Load("")
	require.NoError(t, err)

	cfg, err := loader.Apply(SettingsProvider(map[string]string{
		"ipfs_gateway":       "https://gw.example/ipfs/",
		"redis_url":          "redis://cache:6379/2",
		"unknown_setting":    "ignored",
		"discord_webhook_url": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example/ipfs/", cfg.IPFS.Gateway)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, "env-dsn", cfg.Database.DSN)
}

func TestValidateRejectsBadRetryWindow(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.DSN = "x"
	cfg.Retry.BaseDelay = time.Second
	cfg.Retry.MaxDelay = time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "database.dsn", KeyFor("MYSQL_DSN"))
	assert.Equal(t, "ipfs.gateway", KeyFor("ipfs_gateway"))
	assert.Equal(t, "", KeyFor("HOME"))
}
