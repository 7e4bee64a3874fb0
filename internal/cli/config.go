package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Get, set, or list config values",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch len(args) {
			case 0:
				entries, err := a.Commands.ConfigList(ctx)
				if err != nil {
					return err
				}
				for _, e := range entries {
					if e.Set {
						fmt.Fprintf(out, "%s = %s\n", e.Key, e.Value)
					} else {
						fmt.Fprintf(out, "%s (unset)\n", e.Key)
					}
				}
				return nil
			case 1:
				value, ok, err := a.Commands.ConfigGet(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%s (unset)\n", args[0])
					return nil
				}
				fmt.Fprintln(out, value)
				return nil
			default:
				if err := a.Commands.ConfigSet(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s = %s\n", args[0], args[1])
				return nil
			}
		},
	}
}
