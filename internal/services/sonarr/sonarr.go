// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sonarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/trimmarr/internal/retention"
	"github.com/autobrr/trimmarr/internal/services/arr"
	"github.com/autobrr/trimmarr/internal/services/cache"
	"github.com/autobrr/trimmarr/internal/services/core"
	"github.com/autobrr/trimmarr/internal/services/resilience"
	"github.com/autobrr/trimmarr/internal/types"
)

const (
	serviceName = "sonarr"
	apiPrefix   = "/api/v3"

	DefaultURL = "http://localhost:8989"
)

// SonarrService talks to the Sonarr v3 API
type SonarrService struct {
	core.ServiceCore
	breaker *resilience.CircuitBreaker
}

var _ retention.Actions = (*SonarrService)(nil)

// NewSonarrService creates a client for the Sonarr instance at baseURL.
// store may be nil, in which case metadata is never cached.
func NewSonarrService(baseURL, apiKey string, store cache.Store) *SonarrService {
	service := &SonarrService{
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}
	service.Type = serviceName
	service.DisplayName = "Sonarr"
	service.BaseURL = baseURL
	service.ApiKey = apiKey
	service.SetCache(store)
	return service
}

func (s *SonarrService) apiURL(path string, query url.Values) string {
	u := arr.JoinURL(s.BaseURL, apiPrefix+path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get issues an idempotent read with retries behind the circuit breaker.
func (s *SonarrService) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	if !s.Configured() {
		return &arr.ErrArr{Service: serviceName, Op: op, Err: core.ErrServiceNotConfigured}
	}

	target := s.apiURL(path, query)

	log.Trace().Str("op", op).Str("url", target).Msg("Making request to Sonarr API")

	err := s.breaker.Do(ctx, func() error {
		resp, err := arr.MakeArrRequest(ctx, http.MethodGet, target, s.ApiKey, nil)
		if err != nil {
			return &arr.ErrArr{Service: serviceName, Op: op, Err: fmt.Errorf("failed to make request: %w", err)}
		}
		if err := arr.DecodeArrResponse(resp, serviceName, op, out); err != nil {
			// Client errors will not go away by retrying
			if code := arr.StatusCode(err); code >= 400 && code < 500 && code != http.StatusTooManyRequests {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &arr.ErrArr{Service: serviceName, Op: op, Err: err}
	}
	return err
}

// send issues a single mutating request. Writes are never retried here.
func (s *SonarrService) send(ctx context.Context, method, op, path string, payload interface{}) error {
	if !s.Configured() {
		return &arr.ErrArr{Service: serviceName, Op: op, Err: core.ErrServiceNotConfigured}
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &arr.ErrArr{Service: serviceName, Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
	}

	target := s.apiURL(path, nil)

	resp, err := arr.MakeArrRequest(ctx, method, target, s.ApiKey, body)
	if err != nil {
		return &arr.ErrArr{Service: serviceName, Op: op, Err: fmt.Errorf("failed to execute request: %w", err)}
	}

	return arr.DecodeArrResponse(resp, serviceName, op, nil)
}

// GetSeries fetches every series in the library
func (s *SonarrService) GetSeries(ctx context.Context) ([]types.SonarrSeries, error) {
	var series []types.SonarrSeries
	if err := s.get(ctx, "get_series", "/series", nil, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// GetTags fetches all tags. Results are cached briefly since every listing needs them.
func (s *SonarrService) GetTags(ctx context.Context) ([]types.SonarrTag, error) {
	var tags []types.SonarrTag
	if s.GetCached(ctx, cache.PrefixTags, &tags) {
		return tags, nil
	}

	if err := s.get(ctx, "get_tags", "/tag", nil, &tags); err != nil {
		return nil, err
	}

	s.SetCached(ctx, cache.PrefixTags, tags, cache.MetadataTTL)
	return tags, nil
}

// GetQualityProfiles fetches the quality profiles, cached like tags
func (s *SonarrService) GetQualityProfiles(ctx context.Context) ([]types.SonarrQualityProfile, error) {
	var profiles []types.SonarrQualityProfile
	if s.GetCached(ctx, cache.PrefixQualityProfiles, &profiles) {
		return profiles, nil
	}

	if err := s.get(ctx, "get_quality_profiles", "/qualityprofile", nil, &profiles); err != nil {
		return nil, err
	}

	s.SetCached(ctx, cache.PrefixQualityProfiles, profiles, cache.MetadataTTL)
	return profiles, nil
}

// GetEpisodes fetches all episodes of a series
func (s *SonarrService) GetEpisodes(ctx context.Context, seriesID int) ([]types.SonarrEpisode, error) {
	var episodes []types.SonarrEpisode
	query := url.Values{"seriesId": []string{strconv.Itoa(seriesID)}}
	if err := s.get(ctx, "get_episodes", "/episode", query, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// GetEpisodeFiles fetches all episode files of a series
func (s *SonarrService) GetEpisodeFiles(ctx context.Context, seriesID int) ([]types.SonarrEpisodeFile, error) {
	var files []types.SonarrEpisodeFile
	query := url.Values{"seriesId": []string{strconv.Itoa(seriesID)}}
	if err := s.get(ctx, "get_episode_files", "/episodefile", query, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteEpisodeFile deletes a file from disk. A file that is already gone counts as deleted.
func (s *SonarrService) DeleteEpisodeFile(ctx context.Context, episodeFileID int) error {
	err := s.send(ctx, http.MethodDelete, "delete_episode_file", fmt.Sprintf("/episodefile/%d", episodeFileID), nil)
	if arr.IsNotFound(err) {
		log.Debug().Int("episodeFileId", episodeFileID).Msg("Episode file already removed")
		return nil
	}
	return err
}

// SetEpisodesMonitored toggles the monitored flag of the given episodes
func (s *SonarrService) SetEpisodesMonitored(ctx context.Context, episodeIDs []int, monitored bool) error {
	if len(episodeIDs) == 0 {
		return nil
	}

	return s.send(ctx, http.MethodPut, "set_episodes_monitored", "/episode/monitor", types.SonarrEpisodeMonitorRequest{
		EpisodeIDs: episodeIDs,
		Monitored:  monitored,
	})
}

// GetSystemStatus returns the Sonarr version, served from cache when possible
func (s *SonarrService) GetSystemStatus(ctx context.Context) (string, error) {
	if version := s.GetVersionFromCache(ctx); version != "" {
		return version, nil
	}

	var status types.SonarrSystemStatus
	if err := s.get(ctx, "get_system_status", "/system/status", nil, &status); err != nil {
		return "", err
	}

	s.CacheVersion(ctx, status.Version, cache.VersionTTL)
	return status.Version, nil
}

// FetchMedia proxies a non-API resource such as a poster image. The caller closes the body.
func (s *SonarrService) FetchMedia(ctx context.Context, path string) (*http.Response, error) {
	if !s.Configured() {
		return nil, &arr.ErrArr{Service: serviceName, Op: "fetch_media", Err: core.ErrServiceNotConfigured}
	}

	resp, err := arr.MakeArrRequest(ctx, http.MethodGet, arr.JoinURL(s.BaseURL, path), s.ApiKey, nil)
	if err != nil {
		return nil, &arr.ErrArr{Service: serviceName, Op: "fetch_media", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &arr.ErrArr{Service: serviceName, Op: "fetch_media", HttpCode: resp.StatusCode}
	}
	return resp, nil
}

// Ping checks connectivity, bypassing and then refreshing the cached version.
func (s *SonarrService) Ping(ctx context.Context) (string, error) {
	s.InvalidateCached(ctx, cache.PrefixVersion)
	return s.GetSystemStatus(ctx)
}
