package cli

import (
	"github.com/spf13/cobra"

	"github.com/paulsmith/jjq/internal/commands"
)

func newTailCmd() *cobra.Command {
	var all, noFollow bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Dump or follow the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			return a.Commands.Tail(ctx, cmd.OutOrStdout(), commands.TailOptions{
				All:    all,
				Follow: !noFollow,
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "dump the whole log instead of the last 20 lines")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "don't poll for new output after reaching the end")

	return cmd
}
