package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paulsmith/jjq/internal/queue"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a queue or failed entry with its workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			id, err := queue.ParseSeqID(args[0])
			if err != nil {
				return err
			}
			result, err := a.Commands.Delete(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s from %s\n", result.ID, result.Kind)
			return nil
		},
	}
}
