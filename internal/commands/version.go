// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/autobrr/trimmarr/internal/buildinfo"
)

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func VersionCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit and build date of this binary.`,
		Example: `  trimmarr version
  trimmarr version --json`,
	}

	var outputJson bool
	command.Flags().BoolVar(&outputJson, "json", false, "output in JSON format")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		current := VersionInfo{
			Version: buildinfo.Version,
			Commit:  buildinfo.Commit,
			Date:    buildinfo.Date,
		}

		if outputJson {
			return versionOutputJSON(cmd.OutOrStdout(), current)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "trimmarr version %s\n", current.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", current.Commit)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", current.Date)
		return nil
	}

	return command
}

func versionOutputJSON(w io.Writer, info VersionInfo) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}
