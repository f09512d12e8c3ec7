// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/autobrr/trimmarr/internal/cleanup"
)

func PlanCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "plan",
		Short: "Show what a cleanup would change",
		Long:  `List every monitored series with a retention tag and what a cleanup would change. Nothing is modified.`,
		Example: `  trimmarr plan
  trimmarr plan --json`,
	}

	var outputJson bool
	command.Flags().BoolVar(&outputJson, "json", false, "output in JSON format")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.SonarrConfigured() {
			return errRunNeedsKey
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		series, err := a.cleanup.ListSeries(cmd.Context())
		if err != nil {
			return err
		}

		if outputJson {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(series)
		}

		planOutputText(cmd.OutOrStdout(), series)
		return nil
	}

	return command
}

func planOutputText(w io.Writer, series []cleanup.SeriesSummary) {
	if len(series) == 0 {
		fmt.Fprintln(w, "No monitored series with a retention tag")
		return
	}

	files, episodes := 0, 0
	for _, s := range series {
		fmt.Fprintf(w, "%s [%s]: delete %d files, unmonitor %d episodes\n",
			s.Title, s.RetentionLabel, s.FilesToDelete, s.EpisodesToUnmonitor)
		files += s.FilesToDelete
		episodes += s.EpisodesToUnmonitor
	}
	fmt.Fprintf(w, "\nTotal: %d files, %d episodes across %d series\n", files, episodes, len(series))
}
