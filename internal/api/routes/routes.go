// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autobrr/trimmarr/internal/api/handlers"
	"github.com/autobrr/trimmarr/internal/api/middleware"
	"github.com/autobrr/trimmarr/internal/services/cache"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Cleanup    handlers.CleanupService
	Media      handlers.MediaFetcher
	Logs       handlers.LogSource
	Store      cache.Store
	SonarrURL  string
	Configured bool

	// Optional
	Runs    handlers.RunStore
	DB      handlers.Pinger
	Metrics http.Handler
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.SetupCORS())
	r.Use(middleware.Secure(nil))

	// Create rate limiters with different configurations
	apiRateLimiter := middleware.NewRateLimiter(deps.Store, time.Minute, 60, "api:")         // 60 requests per minute for API
	cleanupRateLimiter := middleware.NewRateLimiter(deps.Store, time.Minute, 10, "cleanup:") // 10 cleanups per minute
	proxyRateLimiter := middleware.NewRateLimiter(deps.Store, time.Minute, 600, "proxy:")    // a poster grid loads many images
	healthRateLimiter := middleware.NewRateLimiter(deps.Store, time.Minute, 30, "health:")   // 30 health checks per minute

	trimmarrHandler := handlers.NewTrimmarrHandler(deps.Cleanup, deps.SonarrURL, deps.Configured)
	proxyHandler := handlers.NewProxyHandler(deps.Media)
	logsHandler := handlers.NewLogsHandler(deps.Logs)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.GET("/health", healthRateLimiter.RateLimit(), healthHandler.GetHealth)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api")
	{
		reads := api.Group("")
		reads.Use(apiRateLimiter.RateLimit())
		{
			reads.GET("/status", trimmarrHandler.GetStatus)
			reads.GET("/tags", trimmarrHandler.GetTags)
			reads.GET("/series", trimmarrHandler.GetSeries)
			reads.GET("/trimmarr-series", trimmarrHandler.GetRetentionSeries)
			reads.GET("/trimarr-series", trimmarrHandler.GetRetentionSeries)
			reads.GET("/logs", logsHandler.GetLogs)
			reads.POST("/preview", trimmarrHandler.PostPreview)

			if deps.Runs != nil {
				runsHandler := handlers.NewRunsHandler(deps.Runs)
				reads.GET("/runs", runsHandler.ListRuns)
				reads.GET("/runs/:id", runsHandler.GetRun)
			}
		}

		api.POST("/cleanup", cleanupRateLimiter.RateLimit(), trimmarrHandler.PostCleanup)
		api.GET("/proxy/sonarr/*path", proxyRateLimiter.RateLimit(), proxyHandler.GetSonarrImage)
	}
}
