// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/trimmarr/internal/cleanup"
	"github.com/autobrr/trimmarr/internal/config"
	"github.com/autobrr/trimmarr/internal/database"
	"github.com/autobrr/trimmarr/internal/logger"
	"github.com/autobrr/trimmarr/internal/metrics"
	"github.com/autobrr/trimmarr/internal/models"
	"github.com/autobrr/trimmarr/internal/services/cache"
	"github.com/autobrr/trimmarr/internal/services/sonarr"
)

// loadConfig reads the config file named by --config. The default file is
// optional, an explicitly passed one must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	return config.LoadConfig(path)
}

// app wires the services every command shares.
type app struct {
	cfg     *config.Config
	store   cache.Store
	db      *database.DB
	sonarr  *sonarr.SonarrService
	metrics *metrics.Collector
	cleanup *cleanup.Service
}

type appOptions struct {
	// history opens the database and records runs in it
	history bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	if err := logger.Configure(logger.Config{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	store, err := cache.InitCache(ctx, cache.Config{
		Type:      cfg.Cache.Type,
		RedisHost: cfg.Cache.Redis.Host,
		RedisPort: cfg.Cache.Redis.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		sonarr:  sonarr.NewSonarrService(cfg.Sonarr.URL, cfg.Sonarr.APIKey, store),
		metrics: metrics.NewCollector(),
	}

	var history cleanup.History
	if opts.history {
		a.db, err = database.InitDBWithConfig(database.NewConfig(
			cfg.Database.Type,
			cfg.Database.Path,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
		))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		history = a.db
	}

	a.cleanup = cleanup.NewService(a.sonarr, cleanup.NewRunGuard(), history, a.metrics, cleanup.Options{
		DryRun:      cfg.Trimmarr.DryRun,
		Concurrency: cfg.Trimmarr.Concurrency,
	})

	return a, nil
}

// Close releases the cache and database.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
	if err := a.store.Close(); err != nil && !errors.Is(err, cache.ErrClosed) {
		log.Error().Err(err).Msg("Failed to close cache")
	}
	logger.Close()
}

// runOnce performs a single cleanup of every retention-tagged series and
// returns the one-line summary.
func runOnce(ctx context.Context, a *app, dryRun bool) (string, error) {
	result, err := a.cleanup.Run(ctx, cleanup.Request{Source: models.SourceOneShot, DryRun: dryRun})
	if err != nil {
		return "", err
	}
	return oneShotSummary(result), nil
}

func oneShotSummary(result *cleanup.Result) string {
	would := ""
	if result.DryRun {
		would = "would "
	}
	return fmt.Sprintf("Cleanup: %sdeleted %d files, %sunmonitored %d episodes across %d series",
		would, result.Deleted, would, result.Unmonitored, result.SeriesProcessed)
}
