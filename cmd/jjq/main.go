// Command jjq is a local merge queue layered on the Jujutsu (jj)
// version control system. See SPEC_FULL.md for the full specification.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paulsmith/jjq/internal/cli"
	"github.com/paulsmith/jjq/internal/jjqerr"
)

//go:embed quickstart.txt
var quickstartText string

func main() {
	os.Exit(run())
}

func run() int {
	root := cli.NewRootCmd()
	root.AddCommand(newQuickstartCmd())

	ctx := context.Background()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jjq: %v\n", err)
		return jjqerr.ExitCode(err)
	}
	return 0
}

// newQuickstartCmd prints the embedded quickstart guide verbatim,
// bypassing repo detection entirely — mirroring the original Rust
// implementation's handling of this one subcommand before
// jj::verify_repo() is ever called.
func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "Print the jjq quickstart guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), quickstartText)
			return nil
		},
	}
}
