// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// legacyEnv maps setting names to the spelling used by earlier releases.
var legacyEnv = map[string]string{
	"TRIMMARR_DRY_RUN":  "TRIMARR_DRY_RUN",
	"TRIMMARR_RUN":      "TRIMARR_RUN",
	"TRIMMARR_INTERVAL": "TRIMARR_INTERVAL",
}

// getEnv returns the value of key, falling back to its legacy name.
func getEnv(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if legacy, ok := legacyEnv[key]; ok {
		return strings.TrimSpace(os.Getenv(legacy))
	}
	return ""
}

// parseBool accepts 1, true and yes (any case). Everything else is false.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// HasRequiredEnvVars reports whether the environment alone is enough to run.
func HasRequiredEnvVars() bool {
	return getEnv("SONARR_API_KEY") != ""
}

// LoadEnvOverrides checks for environment variables and overrides config values
func LoadEnvOverrides(config *Config) error {
	// Server
	if env := getEnv("TRIMMARR__LISTEN_ADDR"); env != "" {
		config.Server.ListenAddr = env
	}

	// Sonarr
	if env := getEnv("SONARR_URL"); env != "" {
		config.Sonarr.URL = strings.TrimRight(env, "/")
	}
	if env := getEnv("SONARR_API_KEY"); env != "" {
		config.Sonarr.APIKey = env
	}

	// Trimmarr
	if env := getEnv("TRIMMARR_DRY_RUN"); env != "" {
		config.Trimmarr.DryRun = parseBool(env)
	}
	if env := getEnv("TRIMMARR_RUN"); env != "" {
		config.Trimmarr.Run = parseBool(env)
	}
	if env := getEnv("TRIMMARR_INTERVAL"); env != "" {
		hours, err := strconv.ParseFloat(env, 64)
		if err != nil {
			return fmt.Errorf("%w: TRIMMARR_INTERVAL %q is not a number", ErrConfiguration, env)
		}
		config.Trimmarr.IntervalHours = hours
	}
	if env := getEnv("TRIMMARR__CONCURRENCY"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("%w: TRIMMARR__CONCURRENCY %q is not a number", ErrConfiguration, env)
		}
		config.Trimmarr.Concurrency = n
	}

	// Cache
	if env := getEnv("CACHE_TYPE"); env != "" {
		config.Cache.Type = env
	}
	if env := getEnv("REDIS_HOST"); env != "" {
		config.Cache.Redis.Host = env
	}
	if env := getEnv("REDIS_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil {
			config.Cache.Redis.Port = port
		}
	}

	// Database
	if env := getEnv("TRIMMARR__DB_TYPE"); env != "" {
		config.Database.Type = env
	}
	if env := getEnv("TRIMMARR__DB_PATH"); env != "" {
		config.Database.Path = env
	}
	if env := getEnv("TRIMMARR__DB_HOST"); env != "" {
		config.Database.Host = env
	}
	if env := getEnv("TRIMMARR__DB_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil {
			config.Database.Port = port
		}
	}
	if env := getEnv("TRIMMARR__DB_USER"); env != "" {
		config.Database.User = env
	}
	if env := getEnv("TRIMMARR__DB_PASSWORD"); env != "" {
		config.Database.Password = env
	}
	if env := getEnv("TRIMMARR__DB_NAME"); env != "" {
		config.Database.Name = env
	}

	// Logging
	if env := getEnv("TRIMMARR__LOG_LEVEL"); env != "" {
		config.Log.Level = env
	}
	if env := getEnv("TRIMMARR__LOG_PATH"); env != "" {
		config.Log.Path = env
	}

	return nil
}
