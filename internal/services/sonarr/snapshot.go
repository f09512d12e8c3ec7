// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sonarr

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autobrr/trimmarr/internal/retention"
	"github.com/autobrr/trimmarr/internal/types"
)

// ProxyPrefix is where the HTTP API serves Sonarr media.
const ProxyPrefix = "/api/proxy/sonarr/"

// Library is the series level view of a Sonarr instance.
type Library struct {
	Series          []types.SonarrSeries
	TagLabels       map[int]string
	QualityProfiles map[int]string
}

// FetchLibrary loads series, tags and (optionally) quality profiles concurrently.
func (s *SonarrService) FetchLibrary(ctx context.Context, withProfiles bool) (*Library, error) {
	lib := &Library{
		TagLabels:       map[int]string{},
		QualityProfiles: map[int]string{},
	}

	var (
		tags     []types.SonarrTag
		profiles []types.SonarrQualityProfile
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lib.Series, err = s.GetSeries(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = s.GetTags(ctx)
		return err
	})
	if withProfiles {
		g.Go(func() error {
			var err error
			profiles, err = s.GetQualityProfiles(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range tags {
		lib.TagLabels[t.ID] = t.Label
	}
	for _, p := range profiles {
		lib.QualityProfiles[p.ID] = p.Name
	}

	return lib, nil
}

// Labels resolves the tag ids of a series to labels, keeping Sonarr's order.
// Ids without a known tag are skipped.
func (l *Library) Labels(series types.SonarrSeries) []string {
	labels := make([]string, 0, len(series.Tags))
	for _, id := range series.Tags {
		if label, ok := l.TagLabels[id]; ok {
			labels = append(labels, label)
		}
	}
	return labels
}

// Rule returns the tag derived retention rule of a series, or nil.
func (l *Library) Rule(series types.SonarrSeries) *retention.Rule {
	return retention.ParseTags(l.Labels(series))
}

// RetentionTagged returns the monitored series carrying a valid retention tag.
func (l *Library) RetentionTagged() []types.SonarrSeries {
	out := make([]types.SonarrSeries, 0)
	for _, s := range l.Series {
		if s.Monitored && retention.HasRetentionTag(l.Labels(s)) {
			out = append(out, s)
		}
	}
	return out
}

// WithTag returns the series carrying the tag with exactly this label.
func (l *Library) WithTag(label string, monitoredOnly bool) []types.SonarrSeries {
	out := make([]types.SonarrSeries, 0)

	tagID, found := -1, false
	for id, name := range l.TagLabels {
		if name == label {
			tagID, found = id, true
			break
		}
	}
	if !found {
		return out
	}

	for _, s := range l.Series {
		if monitoredOnly && !s.Monitored {
			continue
		}
		for _, id := range s.Tags {
			if id == tagID {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// PosterURL returns the poster of a series, routed through the media proxy
// when Sonarr serves it locally.
func PosterURL(series types.SonarrSeries) string {
	for _, img := range series.Images {
		if img.CoverType != "poster" {
			continue
		}
		if img.URL != "" {
			return ProxyPrefix + strings.TrimLeft(img.URL, "/")
		}
		if img.RemoteURL != "" {
			return img.RemoteURL
		}
	}
	return ""
}

// FetchSnapshot loads the episodes and files of one series and builds its snapshot.
func (s *SonarrService) FetchSnapshot(ctx context.Context, lib *Library, series types.SonarrSeries) (retention.SeriesSnapshot, error) {
	var (
		episodes []types.SonarrEpisode
		files    []types.SonarrEpisodeFile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		episodes, err = s.GetEpisodes(gctx, series.ID)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = s.GetEpisodeFiles(gctx, series.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return retention.SeriesSnapshot{}, err
	}

	return BuildSnapshot(lib, series, episodes, files), nil
}

// BuildSnapshot converts Sonarr DTOs into the engine's view of a series.
func BuildSnapshot(lib *Library, series types.SonarrSeries, episodes []types.SonarrEpisode, files []types.SonarrEpisodeFile) retention.SeriesSnapshot {
	snapshot := retention.SeriesSnapshot{
		ID:          series.ID,
		Title:       series.Title,
		Network:     strings.TrimSpace(series.Network),
		PosterURL:   PosterURL(series),
		Monitored:   series.Monitored,
		SeasonCount: SeasonCount(series),
		FileCount:   len(files),
		Tags:        []string{},
		Seasons:     []retention.SeasonSnapshot{},
	}

	if lib != nil {
		snapshot.Tags = lib.Labels(series)
		snapshot.QualityProfile = lib.QualityProfiles[series.QualityProfileID]
	}

	knownFiles := make(map[int]struct{}, len(files))
	for _, f := range files {
		knownFiles[f.ID] = struct{}{}
	}

	bySeason := make(map[int][]retention.EpisodeSnapshot)
	for _, ep := range episodes {
		fileID := 0
		if ep.HasFile && ep.EpisodeFileID > 0 {
			fileID = ep.EpisodeFileID
		}
		// A file listed on the episode but missing from the file list is stale
		if fileID != 0 && len(files) > 0 {
			if _, ok := knownFiles[fileID]; !ok {
				fileID = 0
			}
		}

		bySeason[ep.SeasonNumber] = append(bySeason[ep.SeasonNumber], retention.EpisodeSnapshot{
			EpisodeID:     ep.ID,
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
			Title:         ep.Title,
			AirDate:       parseAirDate(ep),
			HasFile:       fileID != 0,
			Monitored:     ep.Monitored,
			EpisodeFileID: fileID,
		})
	}

	numbers := make([]int, 0, len(bySeason))
	for n := range bySeason {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		snapshot.Seasons = append(snapshot.Seasons, retention.SeasonSnapshot{
			SeasonNumber: n,
			Episodes:     bySeason[n],
		})
	}

	return snapshot
}

// SeasonCount prefers the series field and falls back to its statistics.
func SeasonCount(series types.SonarrSeries) int {
	if series.SeasonCount > 0 {
		return series.SeasonCount
	}
	if series.Statistics != nil {
		return series.Statistics.SeasonCount
	}
	return 0
}

func parseAirDate(ep types.SonarrEpisode) *time.Time {
	if ep.AirDateUTC != "" {
		if t, err := time.Parse(time.RFC3339, ep.AirDateUTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if ep.AirDate != "" {
		if t, err := time.Parse(time.DateOnly, ep.AirDate); err == nil {
			return &t
		}
	}
	return nil
}
