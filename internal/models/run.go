// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"time"
)

// Run sources
const (
	SourceManual    = "manual"
	SourceScheduled = "scheduled"
	SourceOneShot   = "oneshot"
)

// CleanupRun is the persisted summary of one cleanup run
type CleanupRun struct {
	ID                  int64            `json:"-"`
	RunID               string           `json:"runId"`
	Source              string           `json:"source"`
	DryRun              bool             `json:"dryRun"`
	StartedAt           time.Time        `json:"startedAt"`
	FinishedAt          time.Time        `json:"finishedAt"`
	SeriesProcessed     int              `json:"seriesProcessed"`
	FilesDeleted        int              `json:"filesDeleted"`
	EpisodesUnmonitored int              `json:"episodesUnmonitored"`
	FailureCount        int              `json:"failureCount"`
	Error               string           `json:"error,omitempty"`
	Failures            []CleanupFailure `json:"failures,omitempty"`
}

// Duration returns how long the run took
func (r CleanupRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CleanupFailure is one failed external call of a run
type CleanupFailure struct {
	SeriesID      int    `json:"seriesId"`
	EpisodeID     int    `json:"episodeId"`
	EpisodeFileID int    `json:"episodeFileId,omitempty"`
	Op            string `json:"op"`
	Reason        string `json:"reason"`
}
