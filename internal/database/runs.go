// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/autobrr/trimmarr/internal/models"
)

const DefaultRunLimit = 50

var runColumns = []string{
	"id", "run_id", "source", "dry_run", "started_at", "finished_at",
	"series_processed", "files_deleted", "episodes_unmonitored", "failure_count", "error",
}

// CreateRun stores a run summary together with its failures
func (db *DB) CreateRun(ctx context.Context, run *models.CleanupRun) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}
	defer tx.Rollback()

	queryBuilder := db.squirrel.Insert("cleanup_runs").
		Columns(runColumns[1:]...).
		Values(
			run.RunID, run.Source, run.DryRun, run.StartedAt.UTC(), run.FinishedAt.UTC(),
			run.SeriesProcessed, run.FilesDeleted, run.EpisodesUnmonitored, run.FailureCount, run.Error,
		).
		Suffix("RETURNING id").RunWith(tx)

	if err := queryBuilder.QueryRowContext(ctx).Scan(&run.ID); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	if len(run.Failures) > 0 {
		insert := db.squirrel.Insert("cleanup_failures").
			Columns("run_id", "series_id", "episode_id", "episode_file_id", "op", "reason")
		for _, f := range run.Failures {
			insert = insert.Values(run.RunID, f.SeriesID, f.EpisodeID, f.EpisodeFileID, f.Op, f.Reason)
		}

		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return errors.Wrap(err, "error inserting failures")
		}
	}

	return errors.Wrap(tx.Commit(), "error committing run")
}

// ListRuns returns the most recent runs, newest first, without their failures
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.CleanupRun, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	query, args, err := db.squirrel.Select(runColumns...).
		From("cleanup_runs").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	runs := make([]models.CleanupRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// FindRun retrieves a run and its failures. It returns nil when no run matches.
func (db *DB) FindRun(ctx context.Context, runID string) (*models.CleanupRun, error) {
	query, args, err := db.squirrel.Select(runColumns...).
		From("cleanup_runs").
		Where(sq.Eq{"run_id": runID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	run, err := scanRun(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	query, args, err = db.squirrel.Select("series_id", "episode_id", "episode_file_id", "op", "reason").
		From("cleanup_failures").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	for rows.Next() {
		var f models.CleanupFailure
		if err := rows.Scan(&f.SeriesID, &f.EpisodeID, &f.EpisodeFileID, &f.Op, &f.Reason); err != nil {
			return nil, err
		}
		run.Failures = append(run.Failures, f)
	}

	return &run, rows.Err()
}

// PruneRuns keeps the newest keep runs and deletes the rest
func (db *DB) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query, args, err := db.squirrel.Delete("cleanup_runs").
		Where(sq.Expr("id NOT IN (SELECT id FROM cleanup_runs ORDER BY id DESC LIMIT ?)", keep)).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "error pruning runs")
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM cleanup_failures WHERE run_id NOT IN (SELECT run_id FROM cleanup_runs)`); err != nil {
		return 0, errors.Wrap(err, "error pruning failures")
	}

	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (models.CleanupRun, error) {
	var run models.CleanupRun
	err := row.Scan(
		&run.ID,
		&run.RunID,
		&run.Source,
		&run.DryRun,
		&run.StartedAt,
		&run.FinishedAt,
		&run.SeriesProcessed,
		&run.FilesDeleted,
		&run.EpisodesUnmonitored,
		&run.FailureCount,
		&run.Error,
	)
	return run, err
}
