package cli

import (
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/spf13/cobra"
)

// NewCompareCommand creates the compare command
func NewCompareCommand() *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "List source files already present in the destination",
		Long: `Hash every file of both trees and list the source files whose content
already exists somewhere in the destination, without transferring anything.
The listing is written as duplicates_YYYYMMDD_HHMMSS.txt in --report-dir;
with --archive the duplicates are also packed next to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, flags, models.ModeCompare)
		},
	}

	addCommonFlags(cmd, flags)
	addCompareFlags(cmd, flags)

	return cmd
}
