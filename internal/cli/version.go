package cli

import (
	"fmt"
	"runtime"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/spf13/cobra"
)

// Build information, copied from main where ldflags set it
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the contentsync build and its supported digests",
		Long: `Print the contentsync release along with the commit and date it was
built from, the Go toolchain and platform, and the content digests
available to --algorithm.`,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, Version)
				return
			}

			fmt.Fprintf(w, "contentsync %s\n", Version)
			fmt.Fprintf(w, "  Commit:     %s\n", Commit)
			fmt.Fprintf(w, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(w, "  Digests:    %s (default), %s, %s\n", models.HashSHA256, models.HashSHA512, models.HashMD5)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the release number")

	return cmd
}
