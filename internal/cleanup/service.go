// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/trimmarr/internal/metrics"
	"github.com/autobrr/trimmarr/internal/models"
	"github.com/autobrr/trimmarr/internal/retention"
	"github.com/autobrr/trimmarr/internal/services/sonarr"
	"github.com/autobrr/trimmarr/internal/types"
)

const (
	DefaultHistoryLimit = 100
	DefaultConcurrency  = retention.DefaultConcurrency
)

// Upstream is the Sonarr surface the service needs.
type Upstream interface {
	retention.Actions
	FetchLibrary(ctx context.Context, withProfiles bool) (*sonarr.Library, error)
	FetchSnapshot(ctx context.Context, lib *sonarr.Library, series types.SonarrSeries) (retention.SeriesSnapshot, error)
	GetTags(ctx context.Context) ([]types.SonarrTag, error)
	Ping(ctx context.Context) (string, error)
}

// History persists run summaries.
type History interface {
	CreateRun(ctx context.Context, run *models.CleanupRun) error
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// Options configures the service.
type Options struct {
	// DryRun forces every run into dry-run mode, whatever the request says.
	DryRun       bool
	Concurrency  int
	CallTimeout  time.Duration
	HistoryLimit int
}

// Service fetches Sonarr state, plans and executes cleanup runs.
type Service struct {
	upstream Upstream
	executor *retention.Executor
	guard    *RunGuard
	history  History
	metrics  *metrics.Collector
	opts     Options
}

// NewService creates a cleanup service. history and collector may be nil.
func NewService(upstream Upstream, guard *RunGuard, history History, collector *metrics.Collector, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if guard == nil {
		guard = NewRunGuard()
	}

	return &Service{
		upstream: upstream,
		executor: retention.NewExecutor(upstream, opts.Concurrency, opts.CallTimeout),
		guard:    guard,
		history:  history,
		metrics:  collector,
		opts:     opts,
	}
}

// DryRun reports whether the service is configured to never change anything.
func (s *Service) DryRun() bool {
	return s.opts.DryRun
}

// Running reports whether a run is in progress.
func (s *Service) Running() bool {
	return s.guard.Running()
}

// Request selects what a run or plan covers.
//
// With SeriesIDs set, those series are planned with their tag rules. With Tag
// set, every monitored series carrying that exact tag is planned with Rule.
// With neither, every monitored series with a retention tag is planned.
type Request struct {
	Source    string
	DryRun    bool
	SeriesIDs []int
	Tag       string
	Rule      *retention.Rule
}

func (r Request) validate() error {
	if len(r.SeriesIDs) == 0 && r.Tag != "" && (r.Rule == nil || !r.Rule.Active()) {
		return fmt.Errorf("%w: a tag run needs a keep rule", ErrInvalidRequest)
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	RunID string `json:"run_id"`
	retention.ExecutionResult
}

// Plan builds the plan for req without executing it.
func (s *Service) Plan(ctx context.Context, req Request) (*retention.Plan, []retention.SeriesSnapshot, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	lib, err := s.upstream.FetchLibrary(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	var (
		candidates []types.SonarrSeries
		opts       retention.PlanOptions
	)

	switch {
	case len(req.SeriesIDs) > 0:
		selected := retention.NewSelection(req.SeriesIDs)
		for _, series := range lib.Series {
			if _, ok := selected[series.ID]; ok && lib.Rule(series) != nil {
				candidates = append(candidates, series)
			}
		}
		opts.Selected = selected
	case req.Tag != "":
		candidates = lib.WithTag(req.Tag, true)
		opts.Override = &retention.RuleOverride{Rule: *req.Rule}
	default:
		candidates = lib.RetentionTagged()
	}

	snapshots, err := s.fetchSnapshots(ctx, lib, candidates)
	if err != nil {
		return nil, nil, err
	}

	return retention.BuildPlan(snapshots, opts), snapshots, nil
}

// fetchSnapshots loads episode data for every series in parallel, keeping input order.
func (s *Service) fetchSnapshots(ctx context.Context, lib *sonarr.Library, series []types.SonarrSeries) ([]retention.SeriesSnapshot, error) {
	snapshots := make([]retention.SeriesSnapshot, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, item := range series {
		i, item := i, item
		g.Go(func() error {
			snapshot, err := s.upstream.FetchSnapshot(gctx, lib, item)
			if err != nil {
				return fmt.Errorf("%w: series %d: %w", ErrUpstreamUnavailable, item.ID, err)
			}
			snapshots[i] = snapshot
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Run plans and executes a cleanup. The effective dry-run mode is the request's
// OR the configured one. Per-call failures end up in the result; an error is
// only returned when nothing was attempted.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Source == "" {
		req.Source = models.SourceManual
	}
	dryRun := req.DryRun || s.opts.DryRun

	if !s.guard.TryAcquire() {
		s.recordMetrics(req.Source, dryRun, metrics.OutcomeSkipped, 0, nil)
		return nil, ErrRunInProgress
	}
	defer s.guard.Release()

	runID := uuid.NewString()
	started := time.Now()

	logger := log.With().Str("runId", runID).Str("source", req.Source).Logger()
	logger.Info().Msgf("Cleanup started (dry_run=%t, series_ids=%v)", dryRun, req.SeriesIDs)

	plan, _, err := s.Plan(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg(failedMessage(req.Source))
		s.recordMetrics(req.Source, dryRun, metrics.OutcomeError, time.Since(started), nil)
		if errors.Is(err, ErrUpstreamUnavailable) {
			s.recordHistory(ctx, &models.CleanupRun{
				RunID:      runID,
				Source:     req.Source,
				DryRun:     dryRun,
				StartedAt:  started,
				FinishedAt: time.Now(),
				Error:      err.Error(),
			})
		}
		return nil, err
	}

	exec := s.executor.Execute(ctx, plan, dryRun)

	for _, seriesID := range plan.SeriesIDs {
		if line, ok := seriesLine(plan, seriesID, dryRun); ok {
			if req.Source == models.SourceScheduled {
				line = "Scheduled: " + line
			}
			logger.Info().
				Int("series_id", seriesID).
				Str("series_title", plan.Titles[seriesID]).
				Bool("dry_run", dryRun).
				Msg(line)
		}
	}

	logger.Info().
		Int("deleted", exec.Deleted).
		Int("unmonitored", exec.Unmonitored).
		Int("failures", len(exec.Failures)).
		Msg(summaryLine(req.Source, exec))

	outcome := metrics.OutcomeSuccess
	if len(exec.Failures) > 0 {
		outcome = metrics.OutcomePartial
	}
	s.recordMetrics(req.Source, dryRun, outcome, time.Since(started), &exec)

	run := &models.CleanupRun{
		RunID:               runID,
		Source:              req.Source,
		DryRun:              dryRun,
		StartedAt:           started,
		FinishedAt:          time.Now(),
		SeriesProcessed:     exec.SeriesProcessed,
		FilesDeleted:        exec.Deleted,
		EpisodesUnmonitored: exec.Unmonitored,
		FailureCount:        len(exec.Failures),
	}
	for _, f := range exec.Failures {
		run.Failures = append(run.Failures, models.CleanupFailure{
			SeriesID:      f.SeriesID,
			EpisodeID:     f.EpisodeID,
			EpisodeFileID: f.EpisodeFileID,
			Op:            f.Op,
			Reason:        f.Reason,
		})
	}
	s.recordHistory(ctx, run)

	return &Result{RunID: runID, ExecutionResult: exec}, nil
}

func (s *Service) recordHistory(ctx context.Context, run *models.CleanupRun) {
	if s.history == nil {
		return
	}

	// The run already happened, a cancelled request must not lose its record
	ctx = context.WithoutCancel(ctx)

	if err := s.history.CreateRun(ctx, run); err != nil {
		log.Error().Err(err).Str("runId", run.RunID).Msg("Failed to record cleanup run")
		return
	}
	if _, err := s.history.PruneRuns(ctx, s.opts.HistoryLimit); err != nil {
		log.Warn().Err(err).Msg("Failed to prune cleanup history")
	}
}

func (s *Service) recordMetrics(source string, dryRun bool, outcome string, took time.Duration, exec *retention.ExecutionResult) {
	if s.metrics == nil {
		return
	}

	result := metrics.RunResult{
		Source:   source,
		DryRun:   dryRun,
		Outcome:  outcome,
		Duration: took,
	}
	if exec != nil {
		result.SeriesProcessed = exec.SeriesProcessed
		result.Deleted = exec.Deleted
		result.Unmonitored = exec.Unmonitored
		result.FailuresByOp = map[string]int{}
		for _, f := range exec.Failures {
			result.FailuresByOp[f.Op]++
		}
	}
	s.metrics.RecordRun(result)
}
