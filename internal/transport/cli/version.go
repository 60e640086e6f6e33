package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecdesk/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "vecdesk version %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
			return err //nolint:wrapcheck // write to stdout
		},
	}
}
