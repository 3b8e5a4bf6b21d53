package cmd

import (
	"fmt"

	"github.com/CircleCI-Public/ssh-deploy-keys/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		// Nothing to configure.
		PersistentPreRun: func(_ *cobra.Command, _ []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s+%s\n", version.Version, version.Commit)
		},
	}
}
