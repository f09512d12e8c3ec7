// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package retention

import (
	"fmt"
	"time"
)

// Rule is the normalized retention policy of a single series.
// A zero value for either count means that part of the rule is not set.
type Rule struct {
	SeasonsToKeep  int `json:"seasonsToKeep,omitempty"`
	EpisodesToKeep int `json:"episodesToKeep,omitempty"`
}

// Active reports whether the rule retains anything at all.
func (r Rule) Active() bool {
	return r.SeasonsToKeep > 0 || r.EpisodesToKeep > 0
}

// Label renders the rule for display, e.g. "Keep 2 seasons" or "1 season + 3 episodes".
func (r Rule) Label() string {
	switch {
	case r.SeasonsToKeep > 0 && r.EpisodesToKeep > 0:
		return fmt.Sprintf("%s + %s", plural(r.SeasonsToKeep, "season"), plural(r.EpisodesToKeep, "episode"))
	case r.SeasonsToKeep > 0:
		return "Keep " + plural(r.SeasonsToKeep, "season")
	case r.EpisodesToKeep > 0:
		return "Keep " + plural(r.EpisodesToKeep, "episode")
	}
	return ""
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// SeriesSnapshot is a point-in-time view of one series as reported upstream.
type SeriesSnapshot struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Network        string `json:"network,omitempty"`
	QualityProfile string `json:"qualityProfile,omitempty"`
	PosterURL      string `json:"posterUrl,omitempty"`
	Monitored      bool   `json:"monitored"`
	SeasonCount    int    `json:"seasonCount"`
	FileCount      int    `json:"episodeFileCount"`

	// Tags holds tag labels in the order the upstream service returned them.
	Tags []string `json:"tags"`

	// Seasons are ordered by season number ascending.
	Seasons []SeasonSnapshot `json:"seasons"`
}

// EpisodeCounts returns the number of episodes with a file and the total episode count.
func (s SeriesSnapshot) EpisodeCounts() (withFile, total int) {
	for _, season := range s.Seasons {
		for _, ep := range season.Episodes {
			total++
			if ep.HasFile {
				withFile++
			}
		}
	}
	return withFile, total
}

// SeasonSnapshot holds the episodes of one season in upstream order.
type SeasonSnapshot struct {
	SeasonNumber int               `json:"seasonNumber"`
	Episodes     []EpisodeSnapshot `json:"episodes"`
}

// HasAnyFile reports whether at least one episode of the season has a file on disk.
func (s SeasonSnapshot) HasAnyFile() bool {
	for _, ep := range s.Episodes {
		if ep.HasFile {
			return true
		}
	}
	return false
}

// EpisodeSnapshot is the retention-relevant state of a single episode.
type EpisodeSnapshot struct {
	EpisodeID     int        `json:"episodeId"`
	SeasonNumber  int        `json:"seasonNumber"`
	EpisodeNumber int        `json:"episodeNumber"`
	Title         string     `json:"title,omitempty"`
	AirDate       *time.Time `json:"airDate,omitempty"`
	HasFile       bool       `json:"hasFile"`
	Monitored     bool       `json:"monitored"`
	EpisodeFileID int        `json:"episodeFileId,omitempty"`
}

// Action is what the engine decided to do with an episode.
type Action string

const (
	ActionKeep               Action = "keep"
	ActionUnmonitorOnly      Action = "unmonitorOnly"
	ActionUnmonitorAndDelete Action = "unmonitorAndDelete"
)

// Decision is the per-episode output of the evaluator.
type Decision struct {
	EpisodeID     int    `json:"episodeId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title,omitempty"`
	EpisodeFileID int    `json:"episodeFileId,omitempty"`
	Action        Action `json:"action"`
}

// Removes reports whether the decision requires an external action.
func (d Decision) Removes() bool {
	return d.Action == ActionUnmonitorOnly || d.Action == ActionUnmonitorAndDelete
}

// Code formats the episode as S01E02.
func (d Decision) Code() string {
	return fmt.Sprintf("S%02dE%02d", d.SeasonNumber, d.EpisodeNumber)
}
