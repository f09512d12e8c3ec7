// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/trimmarr/internal/cleanup"
	"github.com/autobrr/trimmarr/internal/models"
	"github.com/autobrr/trimmarr/internal/retention"
)

const (
	errNotConfigured   = "Sonarr not configured: set SONARR_API_KEY"
	errExactlyOneKeep  = "Provide exactly one of keep_seasons or keep_episodes"
	errCleanupSelector = "Provide series_ids or tag with keep_seasons/keep_episodes"
)

// CleanupService is what the API needs from the cleanup service.
type CleanupService interface {
	Run(ctx context.Context, req cleanup.Request) (*cleanup.Result, error)
	ListSeries(ctx context.Context) ([]cleanup.SeriesSummary, error)
	Preview(ctx context.Context, tag string, rule retention.Rule) ([]cleanup.PreviewEntry, error)
	Status(ctx context.Context) cleanup.Status
	Tags(ctx context.Context) ([]cleanup.TagSummary, error)
	Series(ctx context.Context, tag string) ([]cleanup.SeriesListing, error)
}

type TrimmarrHandler struct {
	service    CleanupService
	sonarrURL  string
	configured bool
	sf         *singleflight.Group
}

// NewTrimmarrHandler creates the handler for the Sonarr-backed endpoints.
// When configured is false every endpoint answers 503.
func NewTrimmarrHandler(service CleanupService, sonarrURL string, configured bool) *TrimmarrHandler {
	return &TrimmarrHandler{
		service:    service,
		sonarrURL:  sonarrURL,
		configured: configured,
		sf:         &singleflight.Group{},
	}
}

func (h *TrimmarrHandler) requireSonarr(c *gin.Context) bool {
	if !h.configured {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNotConfigured})
		return false
	}
	return true
}

// GetStatus reports Sonarr connectivity. A failed check is still a 200.
func (h *TrimmarrHandler) GetStatus(c *gin.Context) {
	if !h.requireSonarr(c) {
		return
	}

	status := h.service.Status(c.Request.Context())
	if !status.OK {
		log.Error().Str("detail", status.Detail).Msgf("Sonarr connection failed: %s", status.Detail)
	}

	c.JSON(http.StatusOK, status)
}

func (h *TrimmarrHandler) GetTags(c *gin.Context) {
	if !h.requireSonarr(c) {
		return
	}

	tags, err := h.service.Tags(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// GetSeries lists all series, or the monitored series with the exact ?tag= label.
func (h *TrimmarrHandler) GetSeries(c *gin.Context) {
	if !h.requireSonarr(c) {
		return
	}

	series, err := h.service.Series(c.Request.Context(), c.Query("tag"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"series": series})
}

// GetRetentionSeries lists every retention-tagged series with its pending changes.
// Concurrent requests share one upstream fetch, which outlives the caller that
// started it.
func (h *TrimmarrHandler) GetRetentionSeries(c *gin.Context) {
	if !h.requireSonarr(c) {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	v, err, _ := h.sf.Do("retention-series", func() (interface{}, error) {
		return h.service.ListSeries(ctx)
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"series":    v.([]cleanup.SeriesSummary),
		"sonarrUrl": h.sonarrURL,
	})
}

type previewRequest struct {
	Tag          string `json:"tag" binding:"required"`
	KeepSeasons  *int   `json:"keep_seasons"`
	KeepEpisodes *int   `json:"keep_episodes"`
}

// PostPreview shows what an ad-hoc keep rule would do to every series with a tag.
func (h *TrimmarrHandler) PostPreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	rule, ok := keepRule(req.KeepSeasons, req.KeepEpisodes)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errExactlyOneKeep})
		return
	}

	if !h.requireSonarr(c) {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	key := fmt.Sprintf("preview:%s:%d:%d", req.Tag, rule.SeasonsToKeep, rule.EpisodesToKeep)
	v, err, _ := h.sf.Do(key, func() (interface{}, error) {
		return h.service.Preview(ctx, req.Tag, rule)
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"preview": v.([]cleanup.PreviewEntry),
		"tag":     req.Tag,
	})
}

type cleanupRequest struct {
	SeriesIDs    []int  `json:"series_ids"`
	DryRun       bool   `json:"dry_run"`
	Tag          string `json:"tag"`
	KeepSeasons  *int   `json:"keep_seasons"`
	KeepEpisodes *int   `json:"keep_episodes"`
}

// toRequest picks the run selector: explicit series first, then an ad-hoc tag rule.
func (r cleanupRequest) toRequest() (cleanup.Request, string) {
	req := cleanup.Request{Source: models.SourceManual, DryRun: r.DryRun}

	switch {
	case len(r.SeriesIDs) > 0:
		req.SeriesIDs = r.SeriesIDs
	case r.Tag != "" && (r.KeepSeasons != nil || r.KeepEpisodes != nil):
		rule, ok := keepRule(r.KeepSeasons, r.KeepEpisodes)
		if !ok {
			return req, errExactlyOneKeep
		}
		req.Tag = r.Tag
		req.Rule = &rule
	default:
		return req, errCleanupSelector
	}

	return req, ""
}

// PostCleanup runs a cleanup. The run outlives the request so a client
// disconnect cannot leave it half done.
func (h *TrimmarrHandler) PostCleanup(c *gin.Context) {
	if !h.requireSonarr(c) {
		return
	}

	var body cleanupRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	req, problem := body.toRequest()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}

	result, err := h.service.Run(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// keepRule builds a rule from exactly one of the two keep values.
func keepRule(seasons, episodes *int) (retention.Rule, bool) {
	switch {
	case seasons != nil && episodes == nil:
		return retention.Rule{SeasonsToKeep: *seasons}, true
	case episodes != nil && seasons == nil:
		return retention.Rule{EpisodesToKeep: *episodes}, true
	default:
		return retention.Rule{}, false
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cleanup.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, cleanup.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A cleanup run is already in progress"})
	case errors.Is(err, cleanup.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Sonarr request failed", "detail": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
