package config

import (
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/ratelimit"
)

// Config represents the application configuration
type Config struct {
	Run         RunConfig         `yaml:"run" toml:"run"`
	Performance PerformanceConfig `yaml:"performance" toml:"performance"`
	Report      ReportConfig      `yaml:"report" toml:"report"`
	Output      OutputConfig      `yaml:"output" toml:"output"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
	Exclude     []string          `yaml:"exclude" toml:"exclude"`
}

// RunConfig holds settings shared by every mode
type RunConfig struct {
	Algorithm     models.HashAlgorithm `yaml:"algorithm" toml:"algorithm"`
	FailurePolicy models.FailurePolicy `yaml:"failure_policy" toml:"failure_policy"`
	CreateDest    bool                 `yaml:"create_dest" toml:"create_dest"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers     int    `yaml:"max_workers" toml:"max_workers"`         // 0 = one per CPU
	BandwidthLimit string `yaml:"bandwidth_limit" toml:"bandwidth_limit"` // e.g. "10M", empty = unlimited
}

// ReportConfig holds compare mode report settings
type ReportConfig struct {
	Dir     string               `yaml:"dir" toml:"dir"`         // where listings and archives go
	Archive models.ArchiveFormat `yaml:"archive" toml:"archive"` // "", "zip", "tar.gz", "tar.zst"
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format" toml:"format"`     // "human" or "json"
	Progress bool   `yaml:"progress" toml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet" toml:"quiet"`       // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Format  string `yaml:"format" toml:"format"` // "json" or "text"
	Level   string `yaml:"level" toml:"level"`   // "debug", "info", "warn", "error"
	File    string `yaml:"file" toml:"file"`     // Log file path (empty = stderr)
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Algorithm:     models.HashSHA256,
			FailurePolicy: models.PolicyBestEffort,
		},
		Performance: PerformanceConfig{
			MaxWorkers: 0,
		},
		Report: ReportConfig{
			Dir:     ".",
			Archive: models.ArchiveNone,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Format:  "text",
			Level:   "warn",
		},
		Exclude: []string{
			".contentsync-*.tmp",
		},
	}
}

// BandwidthBytes returns the bandwidth limit in bytes per second, 0 meaning unlimited
func (c *Config) BandwidthBytes() (int64, error) {
	return ratelimit.ParseRate(c.Performance.BandwidthLimit)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Run.Algorithm {
	case models.HashSHA256, models.HashSHA512, models.HashMD5:
	default:
		return &models.ValidationError{
			Field:   "run.algorithm",
			Message: "must be 'sha256', 'sha512', or 'md5'",
		}
	}

	switch c.Run.FailurePolicy {
	case models.PolicyBestEffort, models.PolicyAbortOnError:
	default:
		return &models.ValidationError{
			Field:   "run.failure_policy",
			Message: "must be 'best-effort' or 'abort-on-error'",
		}
	}

	if c.Performance.MaxWorkers < 0 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be 0 (one per CPU) or more",
		}
	}

	if _, err := c.BandwidthBytes(); err != nil {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: err.Error(),
		}
	}

	switch c.Report.Archive {
	case models.ArchiveNone, models.ArchiveZip, models.ArchiveTarGz, models.ArchiveTarZst:
	default:
		return &models.ValidationError{
			Field:   "report.archive",
			Message: "must be empty, 'zip', 'tar.gz', or 'tar.zst'",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
