package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/bonds-mcp/internal/cache"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bonds-mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "lru", cfg.Cache.Kind)
	assert.Equal(t, cache.KindLRU, cfg.CacheKind())
	assert.Equal(t, cache.DefaultTTL, cfg.Cache.TTL)
	assert.Equal(t, cache.DefaultLimit, cfg.Cache.Limit)
	require.NotNil(t, cfg.Cache.SingleFlight)
	assert.True(t, *cfg.Cache.SingleFlight)
	assert.Equal(t, ModeSocket, cfg.Upstream.Mode)
	assert.Equal(t, DefaultSocketPath(), cfg.Upstream.Socket)
	assert.Equal(t, 20*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
cache:
  kind: plain
  ttl: 30s
  single_flight: false
upstream:
  mode: http
  base_url: https://bonds.example.com
  timeout: 5s
log:
  level: debug
metrics:
  addr: 127.0.0.1:9464
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cache.KindPlain, cfg.CacheKind())
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.False(t, *cfg.Cache.SingleFlight)
	assert.Equal(t, ModeHTTP, cfg.Upstream.Mode)
	assert.Equal(t, "https://bonds.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "cache:\n  kind: plain\n  limit: 10\n")
	t.Setenv(envCacheKind, "lru")
	t.Setenv(envCacheLimit, "3")
	t.Setenv(envCacheTTL, "1m")
	t.Setenv(envSingleFlight, "false")
	t.Setenv(envMode, ModeBolt)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cache.KindLRU, cfg.CacheKind())
	assert.Equal(t, 3, cfg.Cache.Limit)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.False(t, *cfg.Cache.SingleFlight)
	assert.Equal(t, ModeBolt, cfg.Upstream.Mode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad yaml", body: "cache: ["},
		{name: "unknown kind", body: "cache:\n  kind: lfu\n"},
		{name: "unknown mode", body: "upstream:\n  mode: carrier-pigeon\n"},
		{name: "http without url", body: "upstream:\n  mode: http\n"},
		{name: "bad ttl env", env: map[string]string{envCacheTTL: "soon"}},
		{name: "bad limit env", env: map[string]string{envCacheLimit: "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
