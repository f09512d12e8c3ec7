// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Sonarr   SonarrConfig   `toml:"sonarr" yaml:"sonarr"`
	Trimmarr TrimmarrConfig `toml:"trimmarr" yaml:"trimmarr"`
	Cache    CacheConfig    `toml:"cache" yaml:"cache"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr" yaml:"listen_addr" env:"TRIMMARR__LISTEN_ADDR"`
}

// SonarrConfig points at the Sonarr instance being managed
type SonarrConfig struct {
	URL    string `toml:"url" yaml:"url" env:"SONARR_URL"`
	APIKey string `toml:"api_key" yaml:"api_key" env:"SONARR_API_KEY"`
}

// TrimmarrConfig holds the cleanup behaviour
type TrimmarrConfig struct {
	DryRun        bool    `toml:"dry_run" yaml:"dry_run" env:"TRIMMARR_DRY_RUN"`
	Run           bool    `toml:"run" yaml:"run" env:"TRIMMARR_RUN"`
	IntervalHours float64 `toml:"interval_hours" yaml:"interval_hours" env:"TRIMMARR_INTERVAL"`
	Concurrency   int     `toml:"concurrency" yaml:"concurrency" env:"TRIMMARR__CONCURRENCY"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type  string      `toml:"type" yaml:"type" env:"CACHE_TYPE"`
	Redis RedisConfig `toml:"redis" yaml:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Host string `toml:"host" yaml:"host" env:"REDIS_HOST"`
	Port int    `toml:"port" yaml:"port" env:"REDIS_PORT"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Type     string `toml:"type" yaml:"type" env:"TRIMMARR__DB_TYPE"`
	Path     string `toml:"path" yaml:"path" env:"TRIMMARR__DB_PATH"`
	Host     string `toml:"host" yaml:"host" env:"TRIMMARR__DB_HOST"`
	Port     int    `toml:"port" yaml:"port" env:"TRIMMARR__DB_PORT"`
	User     string `toml:"user" yaml:"user" env:"TRIMMARR__DB_USER"`
	Password string `toml:"password" yaml:"password" env:"TRIMMARR__DB_PASSWORD"`
	Name     string `toml:"name" yaml:"name" env:"TRIMMARR__DB_NAME"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `toml:"level" yaml:"level" env:"TRIMMARR__LOG_LEVEL"`
	Path       string `toml:"path" yaml:"path" env:"TRIMMARR__LOG_PATH"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Sonarr: SonarrConfig{
			URL: "http://localhost:8989",
		},
		Trimmarr: TrimmarrConfig{
			DryRun:      true,
			Concurrency: 4,
		},
		Cache: CacheConfig{
			Type: "memory",
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join("data", "trimmarr.db"),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional TOML or YAML
// file, a .env file next to the working directory and the environment, in
// that order of precedence (later wins). An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := LoadEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFileAccess, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("error decoding config file: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("error decoding config file: %w", err)
		}
	}

	return nil
}

// loadDotEnv loads variables from a .env file without overriding the real environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings every cleanup path depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sonarr.APIKey) == "" {
		return fmt.Errorf("%w: SONARR_API_KEY is not set", ErrConfiguration)
	}

	u, err := url.Parse(c.Sonarr.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid SONARR_URL %q", ErrConfiguration, c.Sonarr.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: SONARR_URL must use http or https", ErrConfiguration)
	}

	if c.Trimmarr.IntervalHours < 0 {
		return fmt.Errorf("%w: TRIMMARR_INTERVAL must not be negative", ErrConfiguration)
	}

	return nil
}

// SonarrConfigured reports whether an API key is present.
func (c *Config) SonarrConfigured() bool {
	return strings.TrimSpace(c.Sonarr.APIKey) != ""
}
