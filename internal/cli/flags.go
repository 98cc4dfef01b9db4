package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file, YAML or .toml (default is $HOME/.config/contentsync/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// RunFlags holds the flags shared by copy, move and compare
type RunFlags struct {
	Source     string
	Dest       string
	CreateDest bool
	Algorithm  string
	Parallel   int
	Exclude    []string
	Output     string
	Details    string
	DetailsFmt string

	// copy and move only
	Policy    string
	Bandwidth string

	// compare only
	ReportDir string
	Archive   string

	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

// addCommonFlags registers the flags every run command accepts
func addCommonFlags(cmd *cobra.Command, f *RunFlags) {
	// Required flags
	cmd.Flags().StringVarP(&f.Source, "source", "s", "", "source directory path (required)")
	cmd.Flags().StringVarP(&f.Dest, "dest", "d", "", "destination directory path (required)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("dest")

	// Optional flags
	cmd.Flags().BoolVar(&f.CreateDest, "create-dest", false, "create destination directory if it doesn't exist")
	cmd.Flags().StringVarP(&f.Algorithm, "algorithm", "a", "sha256", "hash algorithm: sha256, sha512, md5")
	cmd.Flags().IntVarP(&f.Parallel, "parallel", "p", 0, "number of hashing workers (default: one per CPU)")
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", []string{}, "glob patterns to exclude from both trees (dir/ excludes a directory)")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "human", "output format: human, json")
	cmd.Flags().StringVar(&f.Details, "details", "", "write per-file details to file")
	cmd.Flags().StringVar(&f.DetailsFmt, "details-format", "human", "details file format: human, json")

	// Logging flags
	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "write logs to file instead of stderr")
	cmd.Flags().StringVar(&f.LogFormat, "log-format", "text", "log format: text, json")
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

// addTransferFlags registers the flags of copy and move
func addTransferFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVar(&f.Policy, "policy", "best-effort", "on a failed file: best-effort (continue) or abort-on-error (stop)")
	cmd.Flags().StringVarP(&f.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"10M\", \"1G\")")
}

// addCompareFlags registers the flags of compare
func addCompareFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVar(&f.ReportDir, "report-dir", ".", "directory receiving the duplicate listing and archive")
	cmd.Flags().StringVar(&f.Archive, "archive", "", "also archive the duplicates: zip, tar.gz, tar.zst")
}
