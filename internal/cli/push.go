package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <revset>",
		Short: "Enqueue a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			result, err := a.Commands.Push(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Replaced != nil {
				fmt.Fprintf(out, "replaced stale queue entry %s\n", *result.Replaced)
			}
			if result.Cleared != nil {
				fmt.Fprintf(out, "cleared failed entry %s\n", *result.Cleared)
			}
			fmt.Fprintf(out, "queued as %s\n", result.ID)
			return nil
		},
	}
}
