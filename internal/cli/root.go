package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the `jjq` command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jjq",
		Short:         "A local merge queue layered on jj",
		Long:          "jjq is a local merge queue built on the Jujutsu (jj) version control system.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newInitCmd(),
		newPushCmd(),
		newRunCmd(),
		newCheckCmd(),
		newStatusCmd(),
		newDeleteCmd(),
		newConfigCmd(),
		newCleanCmd(),
		newDoctorCmd(),
		newTailCmd(),
	)

	return root
}
