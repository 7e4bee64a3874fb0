package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/paulsmith/jjq/internal/engine"
	"github.com/paulsmith/jjq/internal/jjqerr"
)

func newRunCmd() *cobra.Command {
	var all, stopOnFailure bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the next queue item, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			a.Engine.Stderr = cmd.ErrOrStderr()
			out := cmd.OutOrStdout()

			if !all {
				result, err := a.Engine.RunOne(ctx)
				if err != nil {
					return err
				}
				printRunResult(out, result)
				return outcomeErr(result.Outcome)
			}

			summary, runErr := a.Engine.RunAll(ctx, stopOnFailure)
			fmt.Fprintln(out, summary.String())
			if runErr != nil {
				return runErr
			}
			return summary.FinalError()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "process every queued item")
	cmd.Flags().BoolVar(&stopOnFailure, "stop-on-failure", false, "stop run --all at the first failure")

	return cmd
}

func printRunResult(w io.Writer, result *engine.Result) {
	switch result.Outcome {
	case engine.Empty:
		fmt.Fprintln(w, "queue empty")
	case engine.Success:
		fmt.Fprintf(w, "merged %s\n", result.ID)
	case engine.SkippedEmpty:
		fmt.Fprintf(w, "skipped %s (already in trunk)\n", result.ID)
	case engine.FailureConflict:
		fmt.Fprintf(w, "failed %s (conflicts)\n", result.ID)
	case engine.FailureCheck:
		fmt.Fprintf(w, "failed %s (check)\n", result.ID)
	case engine.FailureTrunkMoved:
		fmt.Fprintf(w, "failed %s (trunk moved during run; left queued)\n", result.ID)
	}
}

func outcomeErr(outcome engine.Outcome) error {
	switch outcome {
	case engine.FailureConflict:
		return jjqerr.New(jjqerr.Conflict, "candidate conflicts with trunk")
	case engine.FailureCheck:
		return jjqerr.New(jjqerr.Conflict, "check command failed")
	case engine.FailureTrunkMoved:
		return jjqerr.New(jjqerr.Conflict, "trunk moved during run")
	default:
		return nil
	}
}
