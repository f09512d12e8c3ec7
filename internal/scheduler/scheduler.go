// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/trimmarr/internal/cleanup"
	"github.com/autobrr/trimmarr/internal/models"
)

// Runner executes a cleanup run.
type Runner interface {
	Run(ctx context.Context, req cleanup.Request) (*cleanup.Result, error)
}

// Scheduler triggers a cleanup of every retention-tagged series at a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	logger  zerolog.Logger
}

// IntervalFromHours converts the configured interval. Non-positive values disable scheduling.
func IntervalFromHours(hours float64) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours * float64(time.Hour))
}

// New creates a scheduler. An interval of zero disables it.
func New(runner Runner, interval time.Duration) *Scheduler {
	logger := log.With().Str("module", "scheduler").Logger()
	cronLogger := cronLogger{logger: logger}

	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Start schedules the cleanup job. Runs stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 {
		s.logger.Info().Msg("Scheduler disabled, TRIMMARR_INTERVAL is 0")
		return nil
	}
	if s.interval < time.Second {
		return fmt.Errorf("interval %s is shorter than one second", s.interval)
	}
	if s.running {
		return nil
	}

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runOnce(ctx)
	}))
	s.cron.Start()
	s.running = true

	s.logger.Info().Msgf("Scheduler enabled: cleanup every %gh", s.interval.Hours())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := s.runner.Run(ctx, cleanup.Request{Source: models.SourceScheduled})
	switch {
	case errors.Is(err, cleanup.ErrRunInProgress):
		s.logger.Info().Msg("Skipping scheduled cleanup, a run is already in progress")
	case err != nil:
		// The cleanup service already logged the failure
		s.logger.Debug().Err(err).Msg("Scheduled cleanup did not complete")
	}
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run, or nil when disabled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
