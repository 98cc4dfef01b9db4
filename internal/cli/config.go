package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdejongh/contentsync/pkg/config"
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View or create the contentsync configuration file.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Algorithm: %s\n", cfg.Run.Algorithm)
			fmt.Fprintf(w, "Failure Policy: %s\n", cfg.Run.FailurePolicy)
			fmt.Fprintf(w, "Create Destination: %v\n", cfg.Run.CreateDest)
			if cfg.Performance.MaxWorkers == 0 {
				fmt.Fprintf(w, "Max Workers: one per CPU\n")
			} else {
				fmt.Fprintf(w, "Max Workers: %d\n", cfg.Performance.MaxWorkers)
			}
			if cfg.Performance.BandwidthLimit == "" {
				fmt.Fprintf(w, "Bandwidth Limit: unlimited\n")
			} else {
				fmt.Fprintf(w, "Bandwidth Limit: %s\n", cfg.Performance.BandwidthLimit)
			}
			fmt.Fprintf(w, "Report Dir: %s\n", cfg.Report.Dir)
			if cfg.Report.Archive == "" {
				fmt.Fprintf(w, "Archive: none\n")
			} else {
				fmt.Fprintf(w, "Archive: %s\n", cfg.Report.Archive)
			}
			fmt.Fprintf(w, "Output Format: %s\n", cfg.Output.Format)
			fmt.Fprintf(w, "Log Format: %s\n", cfg.Logging.Format)
			fmt.Fprintf(w, "Log Level: %s\n", cfg.Logging.Level)
			if len(cfg.Exclude) > 0 {
				fmt.Fprintf(w, "Exclude: %s\n", strings.Join(cfg.Exclude, ", "))
			}

			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var (
		useTOML bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigFile
			if path == "" {
				dir, err := config.DefaultConfigDir()
				if err != nil {
					return err
				}
				name := "config.yaml"
				if useTOML {
					name = "config.toml"
				}
				path = filepath.Join(dir, name)
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if err := config.SaveToFile(cfg, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useTOML, "toml", false, "write config.toml instead of config.yaml")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")

	return cmd
}
