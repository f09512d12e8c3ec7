// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultCallTimeout = 30 * time.Second

	OpDeleteFile = "delete_file"
	OpUnmonitor  = "unmonitor"
)

// Actions performs the external side effects of a plan.
type Actions interface {
	DeleteEpisodeFile(ctx context.Context, episodeFileID int) error
	SetEpisodesMonitored(ctx context.Context, episodeIDs []int, monitored bool) error
}

// Failure describes one external call that did not succeed.
type Failure struct {
	SeriesID      int    `json:"series_id"`
	EpisodeID     int    `json:"episode_id"`
	EpisodeFileID int    `json:"episode_file_id,omitempty"`
	Op            string `json:"op"`
	Reason        string `json:"reason"`
}

// ExecutionResult summarizes an executed (or simulated) plan.
type ExecutionResult struct {
	Deleted         int       `json:"deleted"`
	Unmonitored     int       `json:"unmonitored"`
	SeriesProcessed int       `json:"series_processed"`
	DryRun          bool      `json:"dry_run"`
	Failures        []Failure `json:"failures"`
}

// Executor applies plans through an Actions implementation.
type Executor struct {
	actions     Actions
	concurrency int
	callTimeout time.Duration
}

// NewExecutor creates an executor. Non-positive values fall back to the defaults.
func NewExecutor(actions Actions, concurrency int, callTimeout time.Duration) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Executor{
		actions:     actions,
		concurrency: concurrency,
		callTimeout: callTimeout,
	}
}

type seriesOutcome struct {
	deleted     int
	unmonitored int
	failures    []Failure
}

// Execute applies the plan. In dry-run mode no calls are made and the counts
// mirror the plan exactly. Otherwise every series is handled independently and
// individual failures are collected instead of aborting the run.
func (e *Executor) Execute(ctx context.Context, plan *Plan, dryRun bool) ExecutionResult {
	result := ExecutionResult{
		DryRun:   dryRun,
		Failures: []Failure{},
	}
	if plan == nil {
		return result
	}

	result.SeriesProcessed = plan.ActionableSeries()

	if dryRun {
		result.Deleted = plan.FilesToDeleteCount
		result.Unmonitored = plan.EpisodesToUnmonitorCount
		return result
	}

	outcomes := make([]seriesOutcome, len(plan.SeriesIDs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, seriesID := range plan.SeriesIDs {
		i, seriesID := i, seriesID
		removals := plan.Removals(seriesID)
		if len(removals) == 0 {
			continue
		}
		g.Go(func() error {
			outcomes[i] = e.executeSeries(ctx, seriesID, removals)
			return nil
		})
	}

	_ = g.Wait()

	for _, o := range outcomes {
		result.Deleted += o.deleted
		result.Unmonitored += o.unmonitored
		result.Failures = append(result.Failures, o.failures...)
	}

	return result
}

// executeSeries runs the calls of one series in order: delete, then unmonitor.
func (e *Executor) executeSeries(ctx context.Context, seriesID int, removals []Decision) seriesOutcome {
	var out seriesOutcome
	deletedFiles := make(map[int]struct{})

	for _, d := range removals {
		if d.Action == ActionUnmonitorAndDelete {
			if _, done := deletedFiles[d.EpisodeFileID]; !done {
				err := e.call(ctx, func(ctx context.Context) error {
					return e.actions.DeleteEpisodeFile(ctx, d.EpisodeFileID)
				})
				if err != nil {
					out.failures = append(out.failures, newFailure(seriesID, d, OpDeleteFile, err))
					continue
				}
				deletedFiles[d.EpisodeFileID] = struct{}{}
			}
			out.deleted++
		}

		err := e.call(ctx, func(ctx context.Context) error {
			return e.actions.SetEpisodesMonitored(ctx, []int{d.EpisodeID}, false)
		})
		if err != nil {
			out.failures = append(out.failures, newFailure(seriesID, d, OpUnmonitor, err))
			continue
		}
		out.unmonitored++
	}

	return out
}

func (e *Executor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return fn(ctx)
}

func newFailure(seriesID int, d Decision, op string, err error) Failure {
	log.Warn().
		Err(err).
		Int("seriesId", seriesID).
		Int("episodeId", d.EpisodeID).
		Int("episodeFileId", d.EpisodeFileID).
		Str("op", op).
		Msg("Cleanup action failed")

	return Failure{
		SeriesID:      seriesID,
		EpisodeID:     d.EpisodeID,
		EpisodeFileID: d.EpisodeFileID,
		Op:            op,
		Reason:        err.Error(),
	}
}
