// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/trimmarr/internal/buildinfo"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers liveness checks. It never calls Sonarr, /api/status does.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates the handler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) GetHealth(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("Health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "error",
				"version":  buildinfo.Version,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}
