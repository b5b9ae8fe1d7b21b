package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMustLoadPathAppliesDefaults(t *testing.T) {
	cfg := MustLoadPath(writeConfig(t, "env: prod\n"))

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.WebRTC.STUNServers)
	assert.Equal(t, StorageFile, cfg.Storage.Driver)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "@hourly", cfg.Auth.CompactionSpec)
	assert.Equal(t, "ringcall", cfg.Storage.Redis.Prefix)
}

func TestMustLoadPathReadsSections(t *testing.T) {
	cfg := MustLoadPath(writeConfig(t, `
env: dev
http:
  address: ":9000"
  allowed_origins: ["http://localhost:3000"]
storage:
  driver: sqlite
  dsn: ringcall.db
auth:
  session_ttl: 48h
  session_cache_ttl: 5m
`))

	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "ringcall.db", cfg.Storage.DSN)
	assert.Equal(t, 48*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.SessionCacheTTL)
}

func TestMustLoadPathPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}
