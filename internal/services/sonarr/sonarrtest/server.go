// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sonarrtest provides an in-memory Sonarr v3 API for tests.
package sonarrtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/autobrr/trimmarr/internal/types"
)

const APIKey = "test-api-key"

// PosterBody is served for every /MediaCover/ request.
var PosterBody = []byte("poster-bytes")

// Server is a fake Sonarr backed by plain slices. Deleting a file and
// unmonitoring an episode update the state like the real service does.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	series   []types.SonarrSeries
	tags     []types.SonarrTag
	profiles []types.SonarrQualityProfile
	episodes map[int][]types.SonarrEpisode
	files    map[int][]types.SonarrEpisodeFile
	version  string

	failures    map[string]int
	requests    []string
	deleted     []int
	unmonitored []int
}

// NewServer starts a fake Sonarr. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		episodes: map[int][]types.SonarrEpisode{},
		files:    map[int][]types.SonarrEpisodeFile{},
		failures: map[string]int{},
		version:  "4.0.10.2544",
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddTag registers a tag and returns its id.
func (s *Server) AddTag(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.tags) + 1
	s.tags = append(s.tags, types.SonarrTag{ID: id, Label: label})
	return id
}

// AddProfile registers a quality profile.
func (s *Server) AddProfile(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, types.SonarrQualityProfile{ID: id, Name: name})
}

// AddSeries registers a series with its episodes. Episode files are derived
// from the episodes' file ids.
func (s *Server) AddSeries(series types.SonarrSeries, episodes ...types.SonarrEpisode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = append(s.series, series)

	seen := map[int]struct{}{}
	for i := range episodes {
		episodes[i].SeriesID = series.ID
		ep := episodes[i]
		if !ep.HasFile || ep.EpisodeFileID == 0 {
			continue
		}
		if _, ok := seen[ep.EpisodeFileID]; ok {
			continue
		}
		seen[ep.EpisodeFileID] = struct{}{}
		s.files[series.ID] = append(s.files[series.ID], types.SonarrEpisodeFile{
			ID:           ep.EpisodeFileID,
			SeriesID:     series.ID,
			SeasonNumber: ep.SeasonNumber,
			Size:         1 << 20,
		})
	}
	s.episodes[series.ID] = episodes
}

// Fail makes every request matching method and path prefix answer with status.
func (s *Server) Fail(method, pathPrefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+pathPrefix] = status
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts requests starting with "METHOD /path".
func (s *Server) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// Deleted returns the deleted file ids in call order.
func (s *Server) Deleted() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.deleted...)
}

// Unmonitored returns the unmonitored episode ids in call order.
func (s *Server) Unmonitored() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.unmonitored...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("X-Api-Key") != APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	for key, status := range s.failures {
		if strings.HasPrefix(r.Method+" "+r.URL.Path, key) {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("injected failure %d", status)})
			return
		}
	}

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/MediaCover/"):
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(PosterBody)

	case r.Method == http.MethodGet && path == "/api/v3/series":
		writeJSON(w, http.StatusOK, s.series)

	case r.Method == http.MethodGet && path == "/api/v3/tag":
		writeJSON(w, http.StatusOK, s.tags)

	case r.Method == http.MethodGet && path == "/api/v3/qualityprofile":
		writeJSON(w, http.StatusOK, s.profiles)

	case r.Method == http.MethodGet && path == "/api/v3/system/status":
		writeJSON(w, http.StatusOK, types.SonarrSystemStatus{AppName: "Sonarr", Version: s.version})

	case r.Method == http.MethodGet && path == "/api/v3/episode":
		id, _ := strconv.Atoi(r.URL.Query().Get("seriesId"))
		writeJSON(w, http.StatusOK, nonNil(s.episodes[id]))

	case r.Method == http.MethodGet && path == "/api/v3/episodefile":
		id, _ := strconv.Atoi(r.URL.Query().Get("seriesId"))
		writeJSON(w, http.StatusOK, nonNil(s.files[id]))

	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/api/v3/episodefile/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(path, "/api/v3/episodefile/"))
		if !s.deleteFile(id) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "NotFound"})
			return
		}
		s.deleted = append(s.deleted, id)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut && path == "/api/v3/episode/monitor":
		var req types.SonarrEpisodeMonitorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		s.setMonitored(req.EpisodeIDs, req.Monitored)
		if !req.Monitored {
			s.unmonitored = append(s.unmonitored, req.EpisodeIDs...)
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "NotFound"})
	}
}

func (s *Server) deleteFile(fileID int) bool {
	for seriesID, files := range s.files {
		for i, f := range files {
			if f.ID != fileID {
				continue
			}
			s.files[seriesID] = append(files[:i:i], files[i+1:]...)
			for j := range s.episodes[seriesID] {
				if s.episodes[seriesID][j].EpisodeFileID == fileID {
					s.episodes[seriesID][j].EpisodeFileID = 0
					s.episodes[seriesID][j].HasFile = false
				}
			}
			return true
		}
	}
	return false
}

func (s *Server) setMonitored(ids []int, monitored bool) {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for seriesID := range s.episodes {
		for j := range s.episodes[seriesID] {
			if _, ok := want[s.episodes[seriesID][j].ID]; ok {
				s.episodes[seriesID][j].Monitored = monitored
			}
		}
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Episode builds a monitored episode. A non-zero fileID marks it downloaded.
func Episode(id, season, number, fileID int, airDate string) types.SonarrEpisode {
	return types.SonarrEpisode{
		ID:            id,
		EpisodeFileID: fileID,
		SeasonNumber:  season,
		EpisodeNumber: number,
		Title:         fmt.Sprintf("Episode %d", number),
		AirDate:       airDate,
		HasFile:       fileID != 0,
		Monitored:     true,
	}
}

// Season builds n downloaded episodes for a season. Episode ids are
// season*100+n and file ids 10000+episode id.
func Season(season, n int) []types.SonarrEpisode {
	out := make([]types.SonarrEpisode, 0, n)
	for i := 1; i <= n; i++ {
		id := season*100 + i
		out = append(out, Episode(id, season, i, 10000+id, fmt.Sprintf("%04d-01-%02d", 2000+season, i)))
	}
	return out
}
