// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"TRIMMARR__LISTEN_ADDR", "SONARR_URL", "SONARR_API_KEY",
		"TRIMMARR__CONCURRENCY", "CACHE_TYPE", "REDIS_HOST", "REDIS_PORT",
		"TRIMMARR__DB_TYPE", "TRIMMARR__DB_PATH", "TRIMMARR__DB_HOST", "TRIMMARR__DB_PORT",
		"TRIMMARR__DB_USER", "TRIMMARR__DB_PASSWORD", "TRIMMARR__DB_NAME",
		"TRIMMARR__LOG_LEVEL", "TRIMMARR__LOG_PATH",
	}
	for k, legacy := range legacyEnv {
		keys = append(keys, k, legacy)
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "http://localhost:8989", cfg.Sonarr.URL)
	assert.True(t, cfg.Trimmarr.DryRun)
	assert.False(t, cfg.Trimmarr.Run)
	assert.Zero(t, cfg.Trimmarr.IntervalHours)
	assert.Equal(t, 4, cfg.Trimmarr.Concurrency)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.SonarrConfigured())
}

func TestLoadConfig_TOML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
listen_addr = ":9090"

[sonarr]
url = "http://sonarr:8989"
api_key = "abc"

[trimmarr]
dry_run = false
interval_hours = 6.5

[database]
type = "postgres"
host = "db"
port = 5432
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "http://sonarr:8989", cfg.Sonarr.URL)
	assert.Equal(t, "abc", cfg.Sonarr.APIKey)
	assert.False(t, cfg.Trimmarr.DryRun)
	assert.Equal(t, 6.5, cfg.Trimmarr.IntervalHours)
	// Keys absent from the file keep their defaults
	assert.Equal(t, 4, cfg.Trimmarr.Concurrency)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sonarr:
  url: https://sonarr.example.com
  api_key: key
trimmarr:
  concurrency: 8
cache:
  type: redis
  redis:
    host: redis
    port: 6380
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sonarr.example.com", cfg.Sonarr.URL)
	assert.Equal(t, 8, cfg.Trimmarr.Concurrency)
	assert.True(t, cfg.Trimmarr.DryRun)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 6380, cfg.Cache.Redis.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrConfigFileAccess)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sonarr]\nurl = \"http://file:8989\"\n"), 0o600))

	t.Setenv("SONARR_URL", "http://env:8989/")
	t.Setenv("SONARR_API_KEY", "envkey")
	t.Setenv("TRIMMARR_DRY_RUN", "no")
	t.Setenv("TRIMMARR_RUN", "YES")
	t.Setenv("TRIMMARR_INTERVAL", "0.25")
	t.Setenv("TRIMMARR__CONCURRENCY", "2")
	t.Setenv("TRIMMARR__DB_PATH", "/tmp/t.db")
	t.Setenv("TRIMMARR__LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env:8989", cfg.Sonarr.URL)
	assert.Equal(t, "envkey", cfg.Sonarr.APIKey)
	assert.False(t, cfg.Trimmarr.DryRun)
	assert.True(t, cfg.Trimmarr.Run)
	assert.Equal(t, 0.25, cfg.Trimmarr.IntervalHours)
	assert.Equal(t, 2, cfg.Trimmarr.Concurrency)
	assert.Equal(t, "/tmp/t.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, HasRequiredEnvVars())
}

func TestLoadConfig_LegacyEnvNames(t *testing.T) {
	clearEnv(t)

	t.Setenv("TRIMARR_DRY_RUN", "false")
	t.Setenv("TRIMARR_INTERVAL", "12")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.False(t, cfg.Trimmarr.DryRun)
	assert.Equal(t, 12.0, cfg.Trimmarr.IntervalHours)

	// The current spelling wins over the legacy one
	t.Setenv("TRIMMARR_DRY_RUN", "true")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.Trimmarr.DryRun)
}

func TestLoadConfig_InvalidInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRIMMARR_INTERVAL", "daily")

	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", " Yes "} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"0", "false", "no", "on", ""} {
		assert.False(t, parseBool(v), v)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "missing key", modify: func(c *Config) { c.Sonarr.APIKey = " " }, wantErr: true},
		{name: "no scheme", modify: func(c *Config) { c.Sonarr.URL = "sonarr:8989" }, wantErr: true},
		{name: "bad scheme", modify: func(c *Config) { c.Sonarr.URL = "ftp://sonarr" }, wantErr: true},
		{name: "negative interval", modify: func(c *Config) { c.Trimmarr.IntervalHours = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sonarr.APIKey = "key"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
