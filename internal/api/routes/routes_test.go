// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/trimmarr/internal/cleanup"
	"github.com/autobrr/trimmarr/internal/logger"
	"github.com/autobrr/trimmarr/internal/metrics"
	"github.com/autobrr/trimmarr/internal/services/cache"
	"github.com/autobrr/trimmarr/internal/services/sonarr"
	"github.com/autobrr/trimmarr/internal/services/sonarr/sonarrtest"
	"github.com/autobrr/trimmarr/internal/types"
)

func setupRouter(t *testing.T) (*gin.Engine, *sonarrtest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := sonarrtest.NewServer()
	t.Cleanup(srv.Close)

	tag := srv.AddTag("trimmarr_retain_2_episodes")
	srv.AddSeries(types.SonarrSeries{ID: 7, Title: "Delta", Monitored: true, Tags: []int{tag}}, sonarrtest.Season(1, 4)...)

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	collector := metrics.NewCollector()
	upstream := sonarr.NewSonarrService(srv.URL, sonarrtest.APIKey, store)
	service := cleanup.NewService(upstream, nil, nil, collector, cleanup.Options{DryRun: true})

	r := gin.New()
	SetupRoutes(r, Dependencies{
		Cleanup:    service,
		Media:      upstream,
		Logs:       logger.NewLogBuffer(10),
		Store:      store,
		SonarrURL:  srv.URL,
		Configured: true,
		Metrics:    collector.Handler(),
	})

	return r, srv
}

func request(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/status", "", http.StatusOK},
		{http.MethodGet, "/api/tags", "", http.StatusOK},
		{http.MethodGet, "/api/series", "", http.StatusOK},
		{http.MethodGet, "/api/trimmarr-series", "", http.StatusOK},
		{http.MethodGet, "/api/trimarr-series", "", http.StatusOK},
		{http.MethodGet, "/api/logs", "", http.StatusOK},
		{http.MethodPost, "/api/preview", `{"tag":"trimmarr_retain_2_episodes","keep_episodes":1}`, http.StatusOK},
		{http.MethodPost, "/api/cleanup", `{"series_ids":[7]}`, http.StatusOK},
		{http.MethodGet, "/api/proxy/sonarr/MediaCover/7/poster.jpg", "", http.StatusOK},
		{http.MethodGet, "/api/runs", "", http.StatusNotFound},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := request(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestSetupRoutes_Headers(t *testing.T) {
	r, _ := setupRouter(t)

	w := request(r, http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestSetupRoutes_Metrics(t *testing.T) {
	r, _ := setupRouter(t)

	w := request(r, http.MethodPost, "/api/cleanup", `{"series_ids":[7]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trimmarr_cleanup_runs_total")
}

func TestSetupRoutes_CleanupIsRateLimited(t *testing.T) {
	r, srv := setupRouter(t)

	codes := map[int]int{}
	for i := 0; i < 12; i++ {
		w := request(r, http.MethodPost, "/api/cleanup", `{"series_ids":[7]}`)
		codes[w.Code]++
	}

	assert.Equal(t, 10, codes[http.StatusOK])
	assert.Equal(t, 2, codes[http.StatusTooManyRequests])
	assert.Empty(t, srv.Deleted())
}
