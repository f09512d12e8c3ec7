// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	proxyTimeout       = 10 * time.Second
	defaultContentType = "image/jpeg"
	mediaCoverSegment  = "MediaCover/"
)

// MediaFetcher fetches non-API resources from Sonarr.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, path string) (*http.Response, error)
}

// ProxyHandler serves Sonarr poster images so the browser never needs the API key.
type ProxyHandler struct {
	media   MediaFetcher
	timeout time.Duration
}

func NewProxyHandler(media MediaFetcher) *ProxyHandler {
	return &ProxyHandler{media: media, timeout: proxyTimeout}
}

// GetSonarrImage proxies /api/proxy/sonarr/*path. Only MediaCover paths are served.
func (h *ProxyHandler) GetSonarrImage(c *gin.Context) {
	path := strings.TrimLeft(c.Param("path"), "/")
	if !strings.Contains(path, mediaCoverSegment) || strings.Contains(path, "..") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp, err := h.media.FetchMedia(ctx, path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Poster proxy request failed")
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, nil)
}
