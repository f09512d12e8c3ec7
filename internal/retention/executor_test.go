// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	mu          sync.Mutex
	calls       []string
	failDelete  map[int]bool
	failMonitor map[int]bool
	block       bool
}

func (f *fakeActions) DeleteEpisodeFile(ctx context.Context, episodeFileID int) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("delete:%d", episodeFileID))
	fail := f.failDelete[episodeFileID]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeActions) SetEpisodesMonitored(_ context.Context, episodeIDs []int, monitored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range episodeIDs {
		f.calls = append(f.calls, fmt.Sprintf("monitor:%d:%t", id, monitored))
		if f.failMonitor[id] {
			return errors.New("boom")
		}
	}
	return nil
}

func (f *fakeActions) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestExecutor_DryRunMatchesPlan(t *testing.T) {
	plan := BuildPlan(testLibrary(), PlanOptions{})
	actions := &fakeActions{}

	result := NewExecutor(actions, 2, time.Second).Execute(context.Background(), plan, true)

	assert.True(t, result.DryRun)
	assert.Equal(t, plan.FilesToDeleteCount, result.Deleted)
	assert.Equal(t, plan.EpisodesToUnmonitorCount, result.Unmonitored)
	assert.Equal(t, 2, result.SeriesProcessed)
	assert.Empty(t, result.Failures)
	assert.Empty(t, actions.snapshot())
}

func TestExecutor_Execute(t *testing.T) {
	plan := BuildPlan(testLibrary(), PlanOptions{Selected: NewSelection([]int{2})})
	actions := &fakeActions{}

	result := NewExecutor(actions, 1, time.Second).Execute(context.Background(), plan, false)

	assert.False(t, result.DryRun)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 2, result.Unmonitored)
	assert.Equal(t, 1, result.SeriesProcessed)
	assert.Empty(t, result.Failures)

	assert.Equal(t, []string{
		"delete:10501",
		"monitor:501:false",
		"delete:10502",
		"monitor:502:false",
	}, actions.snapshot())
}

func TestExecutor_FailuresDoNotAbort(t *testing.T) {
	plan := BuildPlan(testLibrary(), PlanOptions{})
	actions := &fakeActions{
		failDelete:  map[int]bool{10101: true},
		failMonitor: map[int]bool{102: true},
	}

	result := NewExecutor(actions, 4, time.Second).Execute(context.Background(), plan, false)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, 4, result.Deleted)
	assert.Equal(t, 3, result.Unmonitored)
	assert.Equal(t, 2, result.SeriesProcessed)

	byOp := make(map[string]Failure)
	for _, f := range result.Failures {
		byOp[f.Op] = f
	}
	assert.Equal(t, Failure{SeriesID: 1, EpisodeID: 101, EpisodeFileID: 10101, Op: OpDeleteFile, Reason: "boom"}, byOp[OpDeleteFile])
	assert.Equal(t, 1, byOp[OpUnmonitor].SeriesID)
	assert.Equal(t, 102, byOp[OpUnmonitor].EpisodeID)

	calls := actions.snapshot()
	assert.NotContains(t, calls, "monitor:101:false", "a failed delete leaves the episode monitored")
	assert.Contains(t, calls, "delete:10103")
}

func TestExecutor_SharedFileDeletedOnce(t *testing.T) {
	first := downloaded(1, 1, 1)
	second := downloaded(1, 2, 2)
	second.EpisodeFileID = first.EpisodeFileID

	series := []SeriesSnapshot{{
		ID:      7,
		Title:   "Double Episode",
		Tags:    []string{"trimmarr_retain_1_season"},
		Seasons: []SeasonSnapshot{{SeasonNumber: 1, Episodes: []EpisodeSnapshot{first, second}}, fullSeason(2, 1)},
	}}
	plan := BuildPlan(series, PlanOptions{})
	require.Equal(t, 2, plan.FilesToDeleteCount)

	actions := &fakeActions{}
	result := NewExecutor(actions, 1, time.Second).Execute(context.Background(), plan, false)

	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 2, result.Unmonitored)
	assert.Equal(t, []string{
		"delete:10101",
		"monitor:101:false",
		"monitor:102:false",
	}, actions.snapshot())
}

func TestExecutor_CallTimeout(t *testing.T) {
	plan := BuildPlan(testLibrary(), PlanOptions{Selected: NewSelection([]int{2})})
	actions := &fakeActions{block: true}

	result := NewExecutor(actions, 1, 10*time.Millisecond).Execute(context.Background(), plan, false)

	assert.Zero(t, result.Deleted)
	assert.Zero(t, result.Unmonitored)
	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		assert.Equal(t, OpDeleteFile, f.Op)
		assert.Equal(t, context.DeadlineExceeded.Error(), f.Reason)
	}
}

func TestExecutor_NilPlan(t *testing.T) {
	result := NewExecutor(&fakeActions{}, 0, 0).Execute(context.Background(), nil, false)
	assert.Zero(t, result.Deleted)
	assert.NotNil(t, result.Failures)
}
