// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"context"
	"fmt"
	"strings"

	"github.com/autobrr/trimmarr/internal/models"
	"github.com/autobrr/trimmarr/internal/retention"
	"github.com/autobrr/trimmarr/internal/services/sonarr"
	"github.com/autobrr/trimmarr/internal/types"
)

// maxLoggedEpisodes caps the episode list of a per-series log line.
const maxLoggedEpisodes = 10

// SeriesSummary is one row of the retention-tagged series listing.
type SeriesSummary struct {
	ID                  int     `json:"id"`
	Title               string  `json:"title"`
	Network             *string `json:"network"`
	QualityProfile      string  `json:"qualityProfile"`
	SeasonCount         int     `json:"seasonCount"`
	EpisodeFileCount    int     `json:"episodeFileCount"`
	TotalEpisodeCount   int     `json:"totalEpisodeCount"`
	PosterURL           *string `json:"posterUrl"`
	RetentionLabel      string  `json:"retentionLabel"`
	EpisodesToUnmonitor int     `json:"episodesToUnmonitor"`
	FilesToDelete       int     `json:"filesToDelete"`
}

// PreviewEntry is one series an ad-hoc tag rule would touch.
type PreviewEntry struct {
	SeriesID            int    `json:"series_id"`
	Title               string `json:"title"`
	EpisodesToUnmonitor int    `json:"episodes_to_unmonitor"`
	FilesToDelete       int    `json:"files_to_delete"`
}

// TagSummary is a Sonarr tag.
type TagSummary struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// SeriesListing is one row of the plain series listing.
type SeriesListing struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Monitored   bool   `json:"monitored"`
	SeasonCount int    `json:"seasonCount"`
}

// Status is the result of a Sonarr connectivity check.
type Status struct {
	OK      bool   `json:"ok"`
	Sonarr  string `json:"sonarr"`
	Version string `json:"version,omitempty"`
	Detail  string `json:"detail,omitempty"`
	DryRun  bool   `json:"dry_run"`
	Running bool   `json:"running"`
}

// Tags lists every Sonarr tag in upstream order.
func (s *Service) Tags(ctx context.Context) ([]TagSummary, error) {
	tags, err := s.upstream.GetTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	out := make([]TagSummary, 0, len(tags))
	for _, tag := range tags {
		out = append(out, TagSummary{ID: tag.ID, Label: tag.Label})
	}
	return out, nil
}

// Series lists every series, or only the monitored series carrying the exact
// tag label when tag is set.
func (s *Service) Series(ctx context.Context, tag string) ([]SeriesListing, error) {
	lib, err := s.upstream.FetchLibrary(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	series := lib.Series
	if tag != "" {
		series = lib.WithTag(tag, true)
	}

	return listings(series), nil
}

func listings(series []types.SonarrSeries) []SeriesListing {
	out := make([]SeriesListing, 0, len(series))
	for _, item := range series {
		out = append(out, SeriesListing{
			ID:          item.ID,
			Title:       item.Title,
			Monitored:   item.Monitored,
			SeasonCount: sonarr.SeasonCount(item),
		})
	}
	return out
}

// ListSeries plans every retention-tagged series and summarizes it. Nothing is executed.
func (s *Service) ListSeries(ctx context.Context) ([]SeriesSummary, error) {
	lib, err := s.upstream.FetchLibrary(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	snapshots, err := s.fetchSnapshots(ctx, lib, lib.RetentionTagged())
	if err != nil {
		return nil, err
	}

	plan := retention.BuildPlan(snapshots, retention.PlanOptions{})

	out := make([]SeriesSummary, 0, len(snapshots))
	for _, snap := range snapshots {
		rule, ok := plan.Rules[snap.ID]
		if !ok {
			continue
		}
		files, episodes := plan.SeriesCounts(snap.ID)
		_, total := snap.EpisodeCounts()

		out = append(out, SeriesSummary{
			ID:                  snap.ID,
			Title:               snap.Title,
			Network:             nullable(snap.Network),
			QualityProfile:      snap.QualityProfile,
			SeasonCount:         snap.SeasonCount,
			EpisodeFileCount:    snap.FileCount,
			TotalEpisodeCount:   total,
			PosterURL:           nullable(snap.PosterURL),
			RetentionLabel:      rule.Label(),
			EpisodesToUnmonitor: episodes,
			FilesToDelete:       files,
		})
	}

	return out, nil
}

// Preview plans rule against every monitored series tagged with tag and returns
// the series that would change.
func (s *Service) Preview(ctx context.Context, tag string, rule retention.Rule) ([]PreviewEntry, error) {
	plan, _, err := s.Plan(ctx, Request{Tag: tag, Rule: &rule})
	if err != nil {
		return nil, err
	}

	out := make([]PreviewEntry, 0)
	for _, id := range plan.SeriesIDs {
		files, episodes := plan.SeriesCounts(id)
		if files == 0 && episodes == 0 {
			continue
		}
		out = append(out, PreviewEntry{
			SeriesID:            id,
			Title:               plan.Titles[id],
			EpisodesToUnmonitor: episodes,
			FilesToDelete:       files,
		})
	}
	return out, nil
}

// Status checks that Sonarr answers with the configured credentials.
func (s *Service) Status(ctx context.Context) Status {
	status := Status{DryRun: s.opts.DryRun, Running: s.guard.Running()}

	version, err := s.upstream.Ping(ctx)
	if err != nil {
		status.Sonarr = "error"
		status.Detail = err.Error()
		return status
	}

	status.OK = true
	status.Sonarr = "connected"
	status.Version = version
	return status
}

// seriesLine renders the log line of one series, or false when nothing changes.
func seriesLine(plan *retention.Plan, seriesID int, dryRun bool) (string, bool) {
	files, episodes := plan.SeriesCounts(seriesID)
	if files == 0 && episodes == 0 {
		return "", false
	}

	would := ""
	if dryRun {
		would = "would "
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %sdelete %d files, unmonitor %d episodes", plan.Titles[seriesID], would, files, episodes)

	var deleted []retention.Decision
	for _, d := range plan.PerSeries[seriesID] {
		if d.Action == retention.ActionUnmonitorAndDelete {
			deleted = append(deleted, d)
		}
	}

	if len(deleted) > 0 {
		details := make([]string, 0, maxLoggedEpisodes)
		for i, d := range deleted {
			if i == maxLoggedEpisodes {
				break
			}
			details = append(details, strings.TrimSpace(fmt.Sprintf("S%dE%d %s", d.SeasonNumber, d.EpisodeNumber, d.Title)))
		}
		b.WriteString(" | Episodes: ")
		b.WriteString(strings.Join(details, "; "))
		if len(deleted) > maxLoggedEpisodes {
			fmt.Fprintf(&b, " ... +%d more", len(deleted)-maxLoggedEpisodes)
		}
	}

	return b.String(), true
}

func summaryLine(source string, r retention.ExecutionResult) string {
	prefix := "Cleanup complete"
	if source == models.SourceScheduled {
		prefix = "Scheduled cleanup complete"
	}

	would := ""
	if r.DryRun {
		would = "would "
	}

	return fmt.Sprintf("%s: %sdeleted %d files, %sunmonitored %d episodes across %d series",
		prefix, would, r.Deleted, would, r.Unmonitored, r.SeriesProcessed)
}

func failedMessage(source string) string {
	if source == models.SourceScheduled {
		return "Scheduled cleanup failed"
	}
	return "Cleanup failed"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
