// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/trimmarr/internal/config"
)

var errRunNeedsKey = errors.New("TRIMMARR_RUN requires SONARR_API_KEY")

func RunCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "run",
		Short: "Run a single cleanup and exit",
		Long: `Run a single cleanup of every monitored series with a retention tag, print
the summary and exit. TRIMMARR_DRY_RUN is respected.`,
		Example: `  trimmarr run
  trimmarr run --dry-run`,
	}

	var dryRun bool
	command.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would change")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return oneShot(cmd, cfg, dryRun)
	}

	return command
}

// oneShot runs one cleanup and prints its summary to stdout. The configured
// dry-run mode always applies on top of dryRun.
func oneShot(cmd *cobra.Command, cfg *config.Config, dryRun bool) error {
	if !cfg.SonarrConfigured() {
		return errRunNeedsKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, appOptions{history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := runOnce(cmd.Context(), a, dryRun)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}
