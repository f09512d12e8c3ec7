// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/trimmarr/internal/cleanup"
	"github.com/autobrr/trimmarr/internal/services/sonarr"
	"github.com/autobrr/trimmarr/internal/services/sonarr/sonarrtest"
	"github.com/autobrr/trimmarr/internal/types"
)

type testEnv struct {
	srv    *sonarrtest.Server
	guard  *cleanup.RunGuard
	router *gin.Engine
}

type envOptions struct {
	unconfigured bool
	dryRun       bool
}

// newTestEnv serves a library where "Alpha" keeps one of two seasons and
// "Charlie" only carries the plain "weekly" tag.
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := sonarrtest.NewServer()
	t.Cleanup(srv.Close)

	retain := srv.AddTag("trimmarr_retain_1_season")
	weekly := srv.AddTag("weekly")
	srv.AddProfile(1, "HD-1080p")

	srv.AddSeries(types.SonarrSeries{
		ID: 1, Title: "Alpha", Monitored: true, Tags: []int{retain}, QualityProfileID: 1, SeasonCount: 2,
		Images: []types.SonarrImage{{CoverType: "poster", URL: "/MediaCover/1/poster.jpg"}},
	}, append(sonarrtest.Season(1, 2), sonarrtest.Season(2, 2)...)...)
	srv.AddSeries(types.SonarrSeries{
		ID: 3, Title: "Charlie", Monitored: true, Tags: []int{weekly}, SeasonCount: 2,
	}, append(sonarrtest.Season(3, 3), sonarrtest.Season(4, 3)...)...)

	upstream := sonarr.NewSonarrService(srv.URL, sonarrtest.APIKey, nil)
	guard := cleanup.NewRunGuard()
	service := cleanup.NewService(upstream, guard, nil, nil, cleanup.Options{DryRun: opts.dryRun})

	h := NewTrimmarrHandler(service, srv.URL, !opts.unconfigured)
	proxy := NewProxyHandler(upstream)

	r := gin.New()
	r.GET("/api/status", h.GetStatus)
	r.GET("/api/tags", h.GetTags)
	r.GET("/api/series", h.GetSeries)
	r.GET("/api/trimmarr-series", h.GetRetentionSeries)
	r.GET("/api/trimarr-series", h.GetRetentionSeries)
	r.POST("/api/preview", h.PostPreview)
	r.POST("/api/cleanup", h.PostCleanup)
	r.GET("/api/proxy/sonarr/*path", proxy.GetSonarrImage)

	return &testEnv{srv: srv, guard: guard, router: r}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestTrimmarrHandler_NotConfigured(t *testing.T) {
	env := newTestEnv(t, envOptions{unconfigured: true})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/status", ""},
		{http.MethodGet, "/api/tags", ""},
		{http.MethodGet, "/api/series", ""},
		{http.MethodGet, "/api/trimmarr-series", ""},
		{http.MethodPost, "/api/preview", `{"tag":"weekly","keep_seasons":1}`},
		{http.MethodPost, "/api/cleanup", `{"series_ids":[1]}`},
	} {
		w := env.do(tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.path)
		assert.Equal(t, errNotConfigured, decode(t, w)["error"], tc.path)
	}

	assert.Empty(t, env.srv.Requests())
}

func TestTrimmarrHandler_Status(t *testing.T) {
	env := newTestEnv(t, envOptions{dryRun: true})

	w := env.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "connected", body["sonarr"])
	assert.Equal(t, true, body["dry_run"])

	env.srv.Fail(http.MethodGet, "/api/v3/system/status", http.StatusUnauthorized)

	w = env.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	body = decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "error", body["sonarr"])
	assert.NotEmpty(t, body["detail"])
}

func TestTrimmarrHandler_Tags(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tags":[{"id":1,"label":"trimmarr_retain_1_season"},{"id":2,"label":"weekly"}]}`, w.Body.String())
}

func TestTrimmarrHandler_Series(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(http.MethodGet, "/api/series", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["series"], 2)

	w = env.do(http.MethodGet, "/api/series?tag=weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"series":[{"id":3,"title":"Charlie","monitored":true,"seasonCount":2}]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/series?tag=Weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"series":[]}`, w.Body.String())
}

func TestTrimmarrHandler_RetentionSeries(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, path := range []string{"/api/trimmarr-series", "/api/trimarr-series"} {
		w := env.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)

		var body struct {
			Series    []cleanup.SeriesSummary `json:"series"`
			SonarrURL string                  `json:"sonarrUrl"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

		assert.Equal(t, env.srv.URL, body.SonarrURL)
		require.Len(t, body.Series, 1)
		assert.Equal(t, "Alpha", body.Series[0].Title)
		assert.Equal(t, "Keep 1 season", body.Series[0].RetentionLabel)
		assert.Equal(t, 2, body.Series[0].FilesToDelete)
		require.NotNil(t, body.Series[0].PosterURL)
		assert.Equal(t, "/api/proxy/sonarr/MediaCover/1/poster.jpg", *body.Series[0].PosterURL)
	}
}

func TestTrimmarrHandler_SharedFetchSurvivesCancelledCaller(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/trimmarr-series", ""},
		{http.MethodPost, "/api/preview", `{"tag":"weekly","keep_seasons":1}`},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)).WithContext(ctx)
		if tc.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, tc.path)
	}
}

func TestTrimmarrHandler_Preview(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{name: "no keep", body: `{"tag":"weekly"}`, code: http.StatusBadRequest, want: errExactlyOneKeep},
		{name: "both keeps", body: `{"tag":"weekly","keep_seasons":1,"keep_episodes":2}`, code: http.StatusBadRequest, want: errExactlyOneKeep},
		{name: "no tag", body: `{"keep_seasons":1}`, code: http.StatusBadRequest},
		{name: "not json", body: `nope`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/preview", tt.body)
			assert.Equal(t, tt.code, w.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, decode(t, w)["error"])
			}
		})
	}

	w := env.do(http.MethodPost, "/api/preview", `{"tag":"weekly","keep_episodes":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"tag": "weekly",
		"preview": [{"series_id":3,"title":"Charlie","episodes_to_unmonitor":4,"files_to_delete":4}]
	}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/preview", `{"tag":"missing","keep_seasons":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tag":"missing","preview":[]}`, w.Body.String())

	assert.Zero(t, env.srv.CountRequests("DELETE"))
}

func TestTrimmarrHandler_CleanupValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty body", body: "", want: errCleanupSelector},
		{name: "empty object", body: `{}`, want: errCleanupSelector},
		{name: "tag without keep", body: `{"tag":"weekly"}`, want: errCleanupSelector},
		{name: "keep without tag", body: `{"keep_seasons":1}`, want: errCleanupSelector},
		{name: "both keeps", body: `{"tag":"weekly","keep_seasons":1,"keep_episodes":1}`, want: errExactlyOneKeep},
		{name: "zero keep", body: `{"tag":"weekly","keep_seasons":0}`},
		{name: "bad type", body: `{"series_ids":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/cleanup", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			if tt.want != "" {
				assert.Equal(t, tt.want, decode(t, w)["error"])
			}
		})
	}

	assert.Zero(t, env.srv.CountRequests("DELETE"))
	assert.Zero(t, env.srv.CountRequests("PUT"))
}

func TestTrimmarrHandler_CleanupDryRun(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(http.MethodPost, "/api/cleanup", `{"series_ids":[1],"dry_run":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(2), body["deleted"])
	assert.Equal(t, float64(2), body["unmonitored"])
	assert.Equal(t, float64(1), body["series_processed"])
	assert.Equal(t, true, body["dry_run"])
	assert.NotEmpty(t, body["run_id"])
	assert.Empty(t, env.srv.Deleted())
}

func TestTrimmarrHandler_CleanupConfiguredDryRun(t *testing.T) {
	env := newTestEnv(t, envOptions{dryRun: true})

	w := env.do(http.MethodPost, "/api/cleanup", `{"series_ids":[1],"dry_run":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["dry_run"])
	assert.Empty(t, env.srv.Deleted())
}

func TestTrimmarrHandler_CleanupExecutes(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(http.MethodPost, "/api/cleanup", `{"tag":"weekly","keep_episodes":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(4), body["deleted"])
	assert.Equal(t, float64(4), body["unmonitored"])
	assert.Equal(t, false, body["dry_run"])
	assert.Empty(t, body["failures"])
	assert.Len(t, env.srv.Deleted(), 4)
}

func TestTrimmarrHandler_CleanupConflict(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	require.True(t, env.guard.TryAcquire())
	defer env.guard.Release()

	w := env.do(http.MethodPost, "/api/cleanup", `{"series_ids":[1]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, env.srv.Requests())
}

func TestTrimmarrHandler_UpstreamUnavailable(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.srv.Fail(http.MethodGet, "/api/v3/series", http.StatusUnauthorized)

	w := env.do(http.MethodPost, "/api/cleanup", `{"series_ids":[1]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotEmpty(t, decode(t, w)["detail"])

	w = env.do(http.MethodGet, "/api/trimmarr-series", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	assert.Zero(t, env.srv.CountRequests("DELETE"))
}

func TestProxyHandler(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(http.MethodGet, "/api/proxy/sonarr/MediaCover/1/poster.jpg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, sonarrtest.PosterBody, w.Body.Bytes())

	for _, path := range []string{
		"/api/proxy/sonarr/api/v3/series",
		"/api/proxy/sonarr/MediaCover/../api/v3/series",
	} {
		w = env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	assert.Zero(t, env.srv.CountRequests("GET /api/v3/series"))

	env.srv.Fail(http.MethodGet, "/MediaCover/", http.StatusInternalServerError)
	w = env.do(http.MethodGet, "/api/proxy/sonarr/MediaCover/1/poster.jpg", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Image not found", decode(t, w)["error"])
}

func TestKeepRule(t *testing.T) {
	one, two := 1, 2

	rule, ok := keepRule(&one, nil)
	assert.True(t, ok)
	assert.Equal(t, 1, rule.SeasonsToKeep)

	rule, ok = keepRule(nil, &two)
	assert.True(t, ok)
	assert.Equal(t, 2, rule.EpisodesToKeep)

	_, ok = keepRule(&one, &two)
	assert.False(t, ok)

	_, ok = keepRule(nil, nil)
	assert.False(t, ok)
}
