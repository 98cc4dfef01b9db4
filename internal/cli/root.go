package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles the contentsync command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contentsync",
		Short: "Content-addressed directory synchronization",
		Long: `contentsync compares two directory trees by file content rather than by
name. It copies or moves the source files whose content is missing from
the destination, or lists the ones already there.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewCopyCommand())
	rootCmd.AddCommand(NewMoveCommand())
	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
