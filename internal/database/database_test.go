// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/trimmarr/internal/models"
)

func setupSQLiteDB(t *testing.T) *DB {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "data", "trimmarr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testRun(id string, started time.Time, failures ...models.CleanupFailure) *models.CleanupRun {
	return &models.CleanupRun{
		RunID:               id,
		Source:              models.SourceManual,
		DryRun:              false,
		StartedAt:           started,
		FinishedAt:          started.Add(3 * time.Second),
		SeriesProcessed:     2,
		FilesDeleted:        5,
		EpisodesUnmonitored: 6,
		FailureCount:        len(failures),
		Failures:            failures,
	}
}

func TestInitDB_SQLite(t *testing.T) {
	db := setupSQLiteDB(t)

	assert.Equal(t, "sqlite", db.Driver())

	info, err := os.Stat(db.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	// Schema creation is idempotent
	require.NoError(t, db.initSchema())
}

func TestCreateAndFindRun(t *testing.T) {
	db := setupSQLiteDB(t)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run := testRun("run-1", started,
		models.CleanupFailure{SeriesID: 1, EpisodeID: 101, EpisodeFileID: 10101, Op: "delete_file", Reason: "boom"},
		models.CleanupFailure{SeriesID: 1, EpisodeID: 102, Op: "unmonitor", Reason: "timeout"},
	)

	require.NoError(t, db.CreateRun(ctx, run))
	assert.NotZero(t, run.ID)

	found, err := db.FindRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, "run-1", found.RunID)
	assert.Equal(t, models.SourceManual, found.Source)
	assert.False(t, found.DryRun)
	assert.True(t, found.StartedAt.Equal(started))
	assert.Equal(t, 3*time.Second, found.Duration())
	assert.Equal(t, 5, found.FilesDeleted)
	assert.Equal(t, 6, found.EpisodesUnmonitored)
	assert.Equal(t, 2, found.FailureCount)
	require.Len(t, found.Failures, 2)
	assert.Equal(t, 10101, found.Failures[0].EpisodeFileID)
	assert.Equal(t, "unmonitor", found.Failures[1].Op)

	missing, err := db.FindRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	db := setupSQLiteDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateRun(ctx, testRun("dup", time.Now())))
	assert.Error(t, db.CreateRun(ctx, testRun("dup", time.Now())))
}

func TestListRuns(t *testing.T) {
	db := setupSQLiteDB(t)
	ctx := context.Background()

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NotNil(t, runs)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		run := testRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))
		run.DryRun = i%2 == 0
		require.NoError(t, db.CreateRun(ctx, run))
	}

	runs, err = db.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-1", runs[2].RunID)
	assert.False(t, runs[0].DryRun)
	assert.True(t, runs[1].DryRun)
	assert.Empty(t, runs[0].Failures)
}

func TestPruneRuns(t *testing.T) {
	db := setupSQLiteDB(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		failure := models.CleanupFailure{SeriesID: i, EpisodeID: i, Op: "unmonitor", Reason: "x"}
		require.NoError(t, db.CreateRun(ctx, testRun(fmt.Sprintf("run-%d", i), base, failure)))
	}

	deleted, err := db.PruneRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-4", runs[0].RunID)

	var failures int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cleanup_failures").Scan(&failures))
	assert.Equal(t, 2, failures)
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("", "", "", 0, "", "", "")
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "./data/trimmarr.db", cfg.Path)

	cfg = NewConfig("postgres", "", "db", 6543, "", "secret", "")
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, "6543", cfg.Port)
	assert.Equal(t, "trimmarr", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "trimmarr", cfg.DBName)
	assert.Empty(t, cfg.Path)
}
