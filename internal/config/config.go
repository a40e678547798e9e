// Package config loads bonds-mcp settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leonardcser/bonds-mcp/internal/cache"
)

// Upstream modes.
const (
	ModeSocket = "socket"
	ModeHTTP   = "http"
	ModeBolt   = "bolt"
)

// Environment variables; each overrides the matching file setting.
const (
	EnvConfigPath   = "BONDS_MCP_CONFIG"
	envCacheKind    = "BONDS_MCP_CACHE_KIND"
	envCacheTTL     = "BONDS_MCP_CACHE_TTL"
	envCacheLimit   = "BONDS_MCP_CACHE_LIMIT"
	envSingleFlight = "BONDS_MCP_SINGLE_FLIGHT"
	envMode         = "BONDS_MCP_UPSTREAM"
	envSocket       = "BONDS_MCP_STORE_SOCK"
	envDB           = "BONDS_MCP_STORE_DB"
	envBaseURL      = "BONDS_MCP_BASE_URL"
	envLogPath      = "BONDS_MCP_LOG"
	envLogLevel     = "BONDS_MCP_LOG_LEVEL"
	envMetricsAddr  = "BONDS_MCP_METRICS_ADDR"
)

// Config is the whole application configuration.
type Config struct {
	Cache struct {
		Kind         string        `yaml:"kind"` // "plain" or "lru"
		TTL          time.Duration `yaml:"ttl"`
		Limit        int           `yaml:"limit"`
		SingleFlight *bool         `yaml:"single_flight"`
	} `yaml:"cache"`

	Upstream struct {
		Mode    string        `yaml:"mode"` // "socket", "http" or "bolt"
		Socket  string        `yaml:"socket"`
		DBPath  string        `yaml:"db_path"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`

	Log struct {
		Path  string `yaml:"path"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Metrics struct {
		// Addr enables the Prometheus endpoint when non-empty, e.g. "127.0.0.1:9464".
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load reads path if it exists, applies environment overrides and fills
// defaults. An empty path uses BONDS_MCP_CONFIG; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Cache.Kind = defaultString(os.Getenv(envCacheKind), c.Cache.Kind)
	c.Upstream.Mode = defaultString(os.Getenv(envMode), c.Upstream.Mode)
	c.Upstream.Socket = defaultString(os.Getenv(envSocket), c.Upstream.Socket)
	c.Upstream.DBPath = defaultString(os.Getenv(envDB), c.Upstream.DBPath)
	c.Upstream.BaseURL = defaultString(os.Getenv(envBaseURL), c.Upstream.BaseURL)
	c.Log.Path = defaultString(os.Getenv(envLogPath), c.Log.Path)
	c.Log.Level = defaultString(os.Getenv(envLogLevel), c.Log.Level)
	c.Metrics.Addr = defaultString(os.Getenv(envMetricsAddr), c.Metrics.Addr)

	if v := os.Getenv(envCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envCacheTTL, err)
		}
		c.Cache.TTL = d
	}
	if v := os.Getenv(envCacheLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envCacheLimit, err)
		}
		c.Cache.Limit = n
	}
	if v := os.Getenv(envSingleFlight); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envSingleFlight, err)
		}
		c.Cache.SingleFlight = &b
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Cache.Kind = defaultString(c.Cache.Kind, "lru")
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = cache.DefaultTTL
	}
	if c.Cache.Limit <= 0 {
		c.Cache.Limit = cache.DefaultLimit
	}
	if c.Cache.SingleFlight == nil {
		on := true
		c.Cache.SingleFlight = &on
	}
	c.Upstream.Mode = defaultString(c.Upstream.Mode, ModeSocket)
	c.Upstream.Socket = defaultString(c.Upstream.Socket, DefaultSocketPath())
	c.Upstream.DBPath = defaultString(c.Upstream.DBPath, DefaultDBPath())
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 20 * time.Second
	}
	c.Log.Level = defaultString(c.Log.Level, "info")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := cache.ParseKind(c.Cache.Kind); err != nil {
		return err
	}
	switch c.Upstream.Mode {
	case ModeSocket, ModeBolt:
	case ModeHTTP:
		if c.Upstream.BaseURL == "" {
			return errors.New("config: upstream.base_url is required in http mode")
		}
	default:
		return fmt.Errorf("config: unknown upstream mode %q", c.Upstream.Mode)
	}
	return nil
}

// CacheKind returns the parsed cache kind. Validate has already accepted it.
func (c *Config) CacheKind() cache.Kind {
	k, _ := cache.ParseKind(c.Cache.Kind)
	return k
}

func DefaultSocketPath() string {
	return filepath.Join(cacheDir(), "bondstore.sock")
}

func DefaultDBPath() string {
	return filepath.Join(cacheDir(), "bonds.bbolt")
}

func cacheDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "bonds-mcp")
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
