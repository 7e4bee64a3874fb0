package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Forget orphaned jjq workspaces and reclaim their directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			result, err := a.Commands.Clean(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.ForgottenWorkspaces) == 0 && len(result.RemovedDirectories) == 0 {
				fmt.Fprintln(out, "nothing to clean")
				return nil
			}
			for _, ws := range result.ForgottenWorkspaces {
				fmt.Fprintf(out, "forgot workspace %s\n", ws)
			}
			for _, dir := range result.RemovedDirectories {
				fmt.Fprintf(out, "removed %s\n", dir)
			}
			return nil
		},
	}
}
