// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.toml"

// RootCommand builds the trimmarr command tree. Without a subcommand it serves the API.
func RootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "trimmarr",
		Short: "Retention policies for Sonarr",
		Long: `trimmarr deletes episode files and unmonitors episodes of Sonarr series
according to retention tags such as trimmarr_retain_2_seasons.`,
		SilenceUsage: true,
	}

	command.PersistentFlags().String("config", defaultConfigPath, "path to a TOML or YAML config file")

	serve := ServeCommand()
	command.RunE = serve.RunE

	command.AddCommand(
		serve,
		RunCommand(),
		PlanCommand(),
		HealthCommand(),
		ConfigCommand(),
		VersionCommand(),
	)

	return command
}
