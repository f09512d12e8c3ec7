// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/trimmarr/internal/database"
	"github.com/autobrr/trimmarr/internal/models"
)

const maxRunLimit = 500

// RunStore reads the cleanup history.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]models.CleanupRun, error)
	FindRun(ctx context.Context, runID string) (*models.CleanupRun, error)
}

type RunsHandler struct {
	store RunStore
}

func NewRunsHandler(store RunStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// ListRuns returns the most recent runs, newest first. ?limit= caps the count.
func (h *RunsHandler) ListRuns(c *gin.Context) {
	limit := database.DefaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list cleanup runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cleanup runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *RunsHandler) GetRun(c *gin.Context) {
	runID := c.Param("id")

	run, err := h.store.FindRun(c.Request.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Failed to fetch cleanup run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cleanup run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}
