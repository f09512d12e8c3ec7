// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package types

// SonarrSeries represents a series as returned by GET /api/v3/series
type SonarrSeries struct {
	ID               int                `json:"id"`
	Title            string             `json:"title"`
	SortTitle        string             `json:"sortTitle,omitempty"`
	Status           string             `json:"status,omitempty"`
	Network          string             `json:"network,omitempty"`
	Year             int                `json:"year,omitempty"`
	Monitored        bool               `json:"monitored"`
	QualityProfileID int                `json:"qualityProfileId"`
	SeasonCount      int                `json:"seasonCount,omitempty"`
	Tags             []int              `json:"tags"`
	Images           []SonarrImage      `json:"images,omitempty"`
	Seasons          []SonarrSeason     `json:"seasons,omitempty"`
	Statistics       *SonarrSeriesStats `json:"statistics,omitempty"`
	TvdbID           int                `json:"tvdbId,omitempty"`
	TitleSlug        string             `json:"titleSlug,omitempty"`
}

// SonarrSeason is the per-season summary embedded in a series
type SonarrSeason struct {
	SeasonNumber int                `json:"seasonNumber"`
	Monitored    bool               `json:"monitored"`
	Statistics   *SonarrSeasonStats `json:"statistics,omitempty"`
}

// SonarrSeriesStats holds the statistics block of a series
type SonarrSeriesStats struct {
	SeasonCount       int   `json:"seasonCount"`
	EpisodeFileCount  int   `json:"episodeFileCount"`
	EpisodeCount      int   `json:"episodeCount"`
	TotalEpisodeCount int   `json:"totalEpisodeCount"`
	SizeOnDisk        int64 `json:"sizeOnDisk"`
}

// SonarrSeasonStats holds the statistics block of a season
type SonarrSeasonStats struct {
	EpisodeFileCount  int   `json:"episodeFileCount"`
	EpisodeCount      int   `json:"episodeCount"`
	TotalEpisodeCount int   `json:"totalEpisodeCount"`
	SizeOnDisk        int64 `json:"sizeOnDisk"`
}

// SonarrImage is a cover image reference
type SonarrImage struct {
	CoverType string `json:"coverType"`
	URL       string `json:"url,omitempty"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}

// SonarrEpisode represents an episode as returned by GET /api/v3/episode?seriesId=
type SonarrEpisode struct {
	ID            int    `json:"id"`
	SeriesID      int    `json:"seriesId"`
	EpisodeFileID int    `json:"episodeFileId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	AirDate       string `json:"airDate,omitempty"`
	AirDateUTC    string `json:"airDateUtc,omitempty"`
	HasFile       bool   `json:"hasFile"`
	Monitored     bool   `json:"monitored"`
}

// SonarrEpisodeFile represents a file as returned by GET /api/v3/episodefile?seriesId=
type SonarrEpisodeFile struct {
	ID           int    `json:"id"`
	SeriesID     int    `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
	RelativePath string `json:"relativePath,omitempty"`
	Size         int64  `json:"size"`
	DateAdded    string `json:"dateAdded,omitempty"`
}

// SonarrTag represents a tag as returned by GET /api/v3/tag
type SonarrTag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// SonarrQualityProfile represents an entry of GET /api/v3/qualityprofile
type SonarrQualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SonarrSystemStatus is the subset of GET /api/v3/system/status we use
type SonarrSystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// SonarrEpisodeMonitorRequest is the body of PUT /api/v3/episode/monitor
type SonarrEpisodeMonitorRequest struct {
	EpisodeIDs []int `json:"episodeIds"`
	Monitored  bool  `json:"monitored"`
}

// SonarrErrorResponse is the error body Sonarr returns on failed requests
type SonarrErrorResponse struct {
	Message string `json:"message"`
}
