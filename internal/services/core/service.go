// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/trimmarr/internal/services/cache"
)

var (
	// Common errors
	ErrServiceNotConfigured = errors.New("service is not configured")
)

// ServiceCore carries what every upstream client needs: where it lives, how
// to authenticate and a cache for slow-changing metadata.
type ServiceCore struct {
	Type        string
	DisplayName string
	BaseURL     string
	ApiKey      string
	cache       cache.Store
}

// SetCache attaches a cache store. Without one, cached lookups always miss.
func (s *ServiceCore) SetCache(store cache.Store) {
	s.cache = store
}

// Configured reports whether the URL and key are present.
func (s *ServiceCore) Configured() bool {
	return s.BaseURL != "" && s.ApiKey != ""
}

func (s *ServiceCore) cacheKey(prefix string) string {
	return prefix + s.BaseURL
}

// GetCached loads prefix+BaseURL into value and reports whether it was found.
func (s *ServiceCore) GetCached(ctx context.Context, prefix string, value interface{}) bool {
	if s.cache == nil {
		return false
	}
	// Cache miss is normal operation, no need to log it
	return s.cache.Get(ctx, s.cacheKey(prefix), value) == nil
}

// SetCached stores value under prefix+BaseURL. Failures are logged, not returned.
func (s *ServiceCore) SetCached(ctx context.Context, prefix string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(prefix), value, ttl); err != nil {
		log.Warn().Err(err).Str("service", s.Type).Str("key", prefix).Msg("Failed to write cache")
	}
}

// InvalidateCached drops prefix+BaseURL from the cache.
func (s *ServiceCore) InvalidateCached(ctx context.Context, prefix string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, s.cacheKey(prefix))
}

// GetVersionFromCache retrieves the version from cache
func (s *ServiceCore) GetVersionFromCache(ctx context.Context) string {
	var version string
	if !s.GetCached(ctx, cache.PrefixVersion, &version) {
		return ""
	}
	return version
}

// CacheVersion stores the version in cache with the specified TTL
func (s *ServiceCore) CacheVersion(ctx context.Context, version string, ttl time.Duration) {
	if version == "" {
		return
	}
	s.SetCached(ctx, cache.PrefixVersion, version, ttl)
}
