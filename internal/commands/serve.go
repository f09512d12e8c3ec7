// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/trimmarr/internal/api/routes"
	"github.com/autobrr/trimmarr/internal/buildinfo"
	"github.com/autobrr/trimmarr/internal/logger"
	"github.com/autobrr/trimmarr/internal/scheduler"
)

func ServeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduler",
		Long: `Serve the HTTP API and run scheduled cleanups every TRIMMARR_INTERVAL hours.
When TRIMMARR_RUN is set a single cleanup runs instead and the process exits.`,
		Example: `  trimmarr serve
  trimmarr serve --config /config/config.toml`,
	}

	var listenAddr string
	command.Flags().StringVar(&listenAddr, "listen", "", "address to listen on, overrides TRIMMARR__LISTEN_ADDR")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Server.ListenAddr = listenAddr
		}

		if cfg.Trimmarr.Run {
			return oneShot(cmd, cfg, false)
		}

		if cfg.SonarrConfigured() {
			if err := cfg.Validate(); err != nil {
				return err
			}
		} else {
			log.Warn().Msg("SONARR_API_KEY is not set, Sonarr endpoints will answer 503")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{history: true})
		if err != nil {
			return err
		}
		defer a.Close()

		log.Info().
			Str("version", buildinfo.Version).
			Str("commit", buildinfo.Commit).
			Str("build_date", buildinfo.Date).
			Bool("dry_run", cfg.Trimmarr.DryRun).
			Msg("Starting trimmarr")

		if cfg.SonarrConfigured() {
			sched := scheduler.New(a.cleanup, scheduler.IntervalFromHours(cfg.Trimmarr.IntervalHours))
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()
		}

		return serveHTTP(ctx, a)
	}

	return command
}

func serveHTTP(ctx context.Context, a *app) error {
	if os.Getenv("GIN_MODE") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	var err error
	if gin.Mode() == gin.DebugMode {
		err = r.SetTrustedProxies(nil)
	} else {
		err = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to set trusted proxies")
	}

	routes.SetupRoutes(r, routes.Dependencies{
		Cleanup:    a.cleanup,
		Media:      a.sonarr,
		Logs:       logger.Buffer(),
		Store:      a.store,
		SonarrURL:  a.cfg.Sonarr.URL,
		Configured: a.cfg.SonarrConfigured(),
		Runs:       a.db,
		DB:         a.db,
		Metrics:    a.metrics.Handler(),
	})

	srv := newHTTPServer(a.cfg.Server.ListenAddr, r)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", a.cfg.Server.ListenAddr).
			Str("mode", gin.Mode()).
			Str("database", a.db.Path()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

// newHTTPServer builds the API server. It sets no write deadline: a cleanup
// responds only once its whole batch has run.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
