package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"os"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/jjqerr"
)

func newInitCmd() *cobra.Command {
	var trunk, check, strategy string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the metadata branch and seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}

			boot, err := config.LoadBootstrap(a.RepoRoot)
			if err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "reading .jjq.toml")
			}
			if trunk == "" {
				trunk = boot.Init.Trunk
			}
			if check == "" {
				check = boot.Init.Check
			}
			if strategy == "" {
				strategy = boot.Init.Strategy
			}
			if strategy == "" {
				strategy = string(config.DefaultStrategy)
			}

			if !term.IsTerminal(int(os.Stdin.Fd())) && (trunk == "" || check == "") {
				return jjqerr.New(jjqerr.Usage, "--trunk and --check are required in non-interactive contexts")
			}
			if trunk == "" {
				trunk = config.DefaultTrunkBookmark
			}

			if err := a.Config.Init(ctx, trunk, check, config.Strategy(strategy)); err != nil {
				return err
			}

			reports := a.Doctor.Run(a.checkContext(ctx))
			printDoctorReports(cmd, reports)

			fmt.Fprintf(cmd.OutOrStdout(), "jjq initialized (trunk=%s, strategy=%s)\n", trunk, strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&trunk, "trunk", "", "trunk bookmark name (default \"main\")")
	cmd.Flags().StringVar(&check, "check", "", "check command")
	cmd.Flags().StringVar(&strategy, "strategy", "", "landing strategy: merge or rebase (default \"rebase\")")

	return cmd
}
