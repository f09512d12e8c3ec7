// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/trimmarr/internal/config"
)

const maskedSecret = "********"

// ConfigCommand groups configuration helpers.
func ConfigCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
		Long:  `Inspect the configuration after defaults, the config file, .env and the environment are merged.`,
	}

	command.AddCommand(configExportCommand(), configCheckCommand())

	return command
}

func configExportCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "export",
		Short: "Print or write the effective configuration",
		Example: `  trimmarr config export
  trimmarr config export --format=yaml --output=config.yaml
  trimmarr config export --mask-secrets=false`,
	}

	var (
		format      string
		outputPath  string
		maskSecrets bool
	)

	command.Flags().StringVar(&format, "format", "toml", "output format: toml, yaml or json")
	command.Flags().StringVar(&outputPath, "output", "", "write to a file instead of stdout")
	command.Flags().BoolVar(&maskSecrets, "mask-secrets", true, "replace the API key and database password")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if maskSecrets {
			cfg = masked(cfg)
		}

		data, err := encodeConfig(cfg, format)
		if err != nil {
			return err
		}

		if outputPath == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}

		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(outputPath, data, 0600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", outputPath)
		return nil
	}

	return command
}

func configCheckCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "check",
		Short: "Validate the effective configuration",
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		configCheckOutput(cmd.OutOrStdout(), cfg)
		return nil
	}

	return command
}

func configCheckOutput(w io.Writer, cfg *config.Config) {
	mode := "live"
	if cfg.Trimmarr.DryRun {
		mode = "dry run"
	}
	schedule := "disabled"
	if cfg.Trimmarr.IntervalHours > 0 {
		schedule = fmt.Sprintf("every %gh", cfg.Trimmarr.IntervalHours)
	}

	fmt.Fprintln(w, "Configuration OK")
	fmt.Fprintf(w, "  Sonarr:   %s\n", cfg.Sonarr.URL)
	fmt.Fprintf(w, "  Mode:     %s\n", mode)
	fmt.Fprintf(w, "  Schedule: %s\n", schedule)
	fmt.Fprintf(w, "  Database: %s\n", cfg.Database.Type)
	fmt.Fprintf(w, "  Cache:    %s\n", cfg.Cache.Type)
}

func masked(cfg *config.Config) *config.Config {
	out := *cfg
	if out.Sonarr.APIKey != "" {
		out.Sonarr.APIKey = maskedSecret
	}
	if out.Database.Password != "" {
		out.Database.Password = maskedSecret
	}
	return &out
}

func encodeConfig(cfg *config.Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "toml":
		return toml.Marshal(cfg)
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	case "json":
		return json.MarshalIndent(cfg, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
