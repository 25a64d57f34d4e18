package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"harvest/internal/config"
	"harvest/internal/faults"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return faults.Wrap(faults.ErrUsage, "cli", "config init",
						fmt.Sprintf("%s already exists; pass --overwrite to replace it", target), nil)
				case !os.IsNotExist(statErr):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set source.base_url (or HARVEST_BASE_URL), or source.fixtures_dir for offline use.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// initTarget expands --path, defaulting to the per-user config location.
func initTarget(flagValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		return config.ExpandPath(value)
	}
	return config.DefaultConfigPath()
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report where it came from",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			var explicit string
			if ctx.configFlag != nil {
				explicit = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, err := config.Load(explicit)
			if err != nil {
				return faults.Wrap(faults.ErrConfiguration, "cli", "config validate", path, err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return faults.Wrap(faults.ErrConfiguration, "cli", "config validate", "prepare directories", err)
			}

			source := "not configured"
			switch {
			case cfg.Offline():
				source = "fixtures in " + cfg.Source.FixturesDir
			case cfg.Source.BaseURL != "":
				source = cfg.Source.BaseURL
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"path":    path,
					"exists":  exists,
					"source":  source,
					"archive": cfg.Paths.ArchivePath,
					"valid":   true,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "No file found; using defaults")
			}
			fmt.Fprintf(out, "Source: %s\n", source)
			fmt.Fprintf(out, "Archive: %s\n", cfg.Paths.ArchivePath)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
