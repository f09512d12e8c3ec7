// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autobrr/trimmarr/internal/logger"
)

// LogSource returns recent log entries, oldest first.
type LogSource interface {
	Recent() []logger.LogEntry
}

type LogsHandler struct {
	source LogSource
}

func NewLogsHandler(source LogSource) *LogsHandler {
	return &LogsHandler{source: source}
}

func (h *LogsHandler) GetLogs(c *gin.Context) {
	entries := h.source.Recent()
	if entries == nil {
		entries = []logger.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
