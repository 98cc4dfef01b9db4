package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sdejongh/contentsync/pkg/models"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Run.Algorithm != models.HashSHA256 || cfg.Run.FailurePolicy != models.PolicyBestEffort {
		t.Errorf("unexpected defaults: %+v", cfg.Run)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"algorithm", func(c *Config) { c.Run.Algorithm = "crc32" }, "run.algorithm"},
		{"policy", func(c *Config) { c.Run.FailurePolicy = "retry" }, "run.failure_policy"},
		{"workers", func(c *Config) { c.Performance.MaxWorkers = -1 }, "performance.max_workers"},
		{"bandwidth", func(c *Config) { c.Performance.BandwidthLimit = "fast" }, "performance.bandwidth_limit"},
		{"archive", func(c *Config) { c.Report.Archive = "rar" }, "report.archive"},
		{"output", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var ve *models.ValidationError
			if err := cfg.Validate(); !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Validate() = %v, want ValidationError on %s", err, tt.field)
			}
		})
	}
}

func TestBandwidthBytes(t *testing.T) {
	cfg := Default()
	cfg.Performance.BandwidthLimit = "2M"
	got, err := cfg.BandwidthBytes()
	if err != nil || got != 2<<20 {
		t.Errorf("BandwidthBytes() = %d, %v", got, err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Run.Algorithm = models.HashSHA512
	cfg.Report.Archive = models.ArchiveTarZst
	cfg.Exclude = []string{"*.bak", ".git/"}

	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Run.Algorithm != models.HashSHA512 || loaded.Report.Archive != models.ArchiveTarZst || len(loaded.Exclude) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
exclude = ["*.iso"]

[run]
algorithm = "md5"
failure_policy = "abort-on-error"

[performance]
max_workers = 3
bandwidth_limit = "500K"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Run.Algorithm != models.HashMD5 || cfg.Run.FailurePolicy != models.PolicyAbortOnError {
		t.Errorf("run = %+v", cfg.Run)
	}
	if cfg.Performance.MaxWorkers != 3 || cfg.Performance.BandwidthLimit != "500K" {
		t.Errorf("performance = %+v", cfg.Performance)
	}
	// Sections absent from the file keep their defaults
	if cfg.Output.Format != "human" || cfg.Logging.Level != "warn" {
		t.Errorf("defaults lost: output = %+v, logging = %+v", cfg.Output, cfg.Logging)
	}

	out := filepath.Join(t.TempDir(), "saved.toml")
	if err := SaveToFile(cfg, out); err != nil {
		t.Fatalf("SaveToFile(toml) error = %v", err)
	}
	again, err := LoadFromFile(out)
	if err != nil || again.Performance.MaxWorkers != 3 {
		t.Errorf("toml round trip = %+v, %v", again, err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("run: [unclosed"), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("malformed YAML should fail")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("run:\n  algorithm: crc32\n"), 0644)
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("invalid values should fail validation")
	}
}

func TestLoadDefaultWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if cfg.Output.Format != "human" {
		t.Error("expected the default configuration")
	}
}

func TestLoadDefaultPrefersTOMLWhenOnlyOne(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir() error = %v", err)
	}
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[run]\nalgorithm = \"sha512\"\n"), 0644)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if cfg.Run.Algorithm != models.HashSHA512 {
		t.Errorf("algorithm = %s, want sha512 from config.toml", cfg.Run.Algorithm)
	}
}
