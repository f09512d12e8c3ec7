// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/trimmarr/internal/buildinfo"
)

// HealthCommand probes a running server, for container health checks.
func HealthCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "health",
		Short: "Check that a running trimmarr answers",
		Long:  `Request /health from a running trimmarr and exit non-zero unless it answers 200.`,
		Example: `  trimmarr health
  trimmarr health --url http://localhost:8080/health`,
	}

	var (
		target  string
		timeout time.Duration
	)

	command.Flags().StringVar(&target, "url", "", "health endpoint, defaults to the configured listen address")
	command.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if target == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			target = healthURL(cfg.Server.ListenAddr)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if err := probe(ctx, target); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}

	return command
}

// healthURL turns a listen address into a loopback health URL.
func healthURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://127.0.0.1:8080/health"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/health"
}

func probe(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	buildinfo.AttachUserAgentHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %s returned %d", target, resp.StatusCode)
	}
	return nil
}
