package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sdejongh/contentsync/pkg/config"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/spf13/cobra"
)

// prepareDest creates the destination when asked to. Everything else about
// the roots is checked by the engine before any hashing.
func prepareDest(f *RunFlags) error {
	if !f.CreateDest {
		return nil
	}

	info, err := os.Stat(f.Dest)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(f.Dest, 0755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to access destination path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination path exists but is not a directory: %s", f.Dest)
	}
	return nil
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// applyFlagsToConfig overrides config values with the flags set on the command line
func applyFlagsToConfig(cmd *cobra.Command, f *RunFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("algorithm") {
		cfg.Run.Algorithm = models.HashAlgorithm(f.Algorithm)
	}
	if changed("policy") {
		cfg.Run.FailurePolicy = models.FailurePolicy(f.Policy)
	}
	if changed("create-dest") {
		cfg.Run.CreateDest = f.CreateDest
	}
	f.CreateDest = cfg.Run.CreateDest

	if changed("parallel") {
		cfg.Performance.MaxWorkers = f.Parallel
	}
	if changed("bandwidth") {
		cfg.Performance.BandwidthLimit = f.Bandwidth
	}

	// Exclude patterns add to the configured ones
	if len(f.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, f.Exclude...)
	}

	if changed("report-dir") {
		cfg.Report.Dir = f.ReportDir
	}
	if changed("archive") {
		cfg.Report.Archive = models.ArchiveFormat(f.Archive)
	}

	if changed("output") {
		cfg.Output.Format = f.Output
	}

	if changed("log-file") {
		cfg.Logging.File = f.LogFile
		cfg.Logging.Enabled = true
	}
	if changed("log-format") {
		cfg.Logging.Format = f.LogFormat
	}
	if changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Verbose mode shows progress and informational log entries
	if globalFlags.Verbose {
		cfg.Output.Progress = true
		if !changed("log-level") && (cfg.Logging.Level == "warn" || cfg.Logging.Level == "error") {
			cfg.Logging.Level = "info"
		}
	}
}

// createOperation creates a run operation from configuration
func createOperation(cfg *config.Config, f *RunFlags, mode models.RunMode) (*models.RunOperation, error) {
	bandwidth, err := cfg.BandwidthBytes()
	if err != nil {
		return nil, err
	}

	operation := &models.RunOperation{
		ID:              uuid.New().String(),
		SourcePath:      f.Source,
		DestPath:        f.Dest,
		Mode:            mode,
		Algorithm:       cfg.Run.Algorithm,
		FailurePolicy:   cfg.Run.FailurePolicy,
		ExcludePatterns: cfg.Exclude,
		MaxWorkers:      cfg.Performance.MaxWorkers,
		BandwidthLimit:  bandwidth,
		CreatedAt:       time.Now(),
	}

	if mode == models.ModeCompare {
		operation.ReportDir = cfg.Report.Dir
		operation.Archive = cfg.Report.Archive
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}
