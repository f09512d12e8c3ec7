// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/trimmarr/internal/services/cache"
)

type RateLimiter struct {
	store     cache.Store
	window    time.Duration
	limit     int
	keyPrefix string
}

// NewRateLimiter creates a sliding-window limiter keyed by path and client IP.
func NewRateLimiter(store cache.Store, window time.Duration, limit int, keyPrefix string) *RateLimiter {
	if window == 0 {
		window = time.Minute
	}
	if limit == 0 {
		limit = 60
	}
	return &RateLimiter{
		store:     store,
		window:    window,
		limit:     limit,
		keyPrefix: cache.PrefixRate + keyPrefix,
	}
}

// RateLimit returns a Gin middleware function that implements rate limiting.
// Store failures let the request through.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not determine client IP"})
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s%s:%s", rl.keyPrefix, c.FullPath(), clientIP)
		now := time.Now().Unix()
		windowSeconds := int64(rl.window.Seconds())
		windowStart := now - windowSeconds
		reset := strconv.FormatInt(now+windowSeconds, 10)

		if err := rl.store.CleanAndCount(ctx, key, windowStart); err != nil {
			log.Error().Err(err).Msg("Failed to clean rate limit data")
			c.Next()
			return
		}

		count, err := rl.store.GetCount(ctx, key)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get rate limit count")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Reset", reset)

		if count >= int64(rl.limit) {
			c.Header("Retry-After", strconv.FormatInt(windowSeconds, 10))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"limit":       rl.limit,
				"window":      rl.window.String(),
				"retry_after": windowSeconds,
			})
			return
		}

		if err := rl.store.Increment(ctx, key, now); err != nil {
			log.Error().Err(err).Msg("Failed to record request")
			c.Next()
			return
		}

		if err := rl.store.Expire(ctx, key, rl.window); err != nil {
			log.Error().Err(err).Msg("Failed to set expiration")
		}

		remaining := rl.limit - int(count) - 1
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
