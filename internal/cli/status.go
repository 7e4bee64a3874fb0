package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/width"

	"github.com/paulsmith/jjq/internal/commands"
	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/queue"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool
	var resolveChangeID string

	cmd := &cobra.Command{
		Use:   "status [id]",
		Short: "Inspect the queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 && resolveChangeID == "" {
				all, err := a.Commands.StatusAll(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, all)
				}
				printStatusAll(out, all)
				return nil
			}

			var queueRec *commands.QueueRecord
			var failedRec *commands.FailedRecord
			if resolveChangeID != "" {
				queueRec, failedRec, err = a.Commands.StatusByChangeID(ctx, resolveChangeID)
			} else {
				id, perr := queue.ParseSeqID(args[0])
				if perr != nil {
					return perr
				}
				queueRec, failedRec, err = a.Commands.StatusByID(ctx, id)
			}
			if err != nil {
				return err
			}
			if asJSON {
				if queueRec != nil {
					return writeJSON(out, queueRec)
				}
				return writeJSON(out, failedRec)
			}
			printStatusSingle(out, queueRec, failedRec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a human table")
	cmd.Flags().StringVar(&resolveChangeID, "resolve", "", "look up by candidate change ID instead of sequence ID")

	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "encoding JSON")
	}
	return nil
}

func printStatusAll(out io.Writer, all *commands.StatusAll) {
	fmt.Fprintf(out, "running: %v\n\n", all.Running)
	fmt.Fprintln(out, "QUEUE")
	if len(all.Queue) == 0 {
		fmt.Fprintln(out, "  (empty)")
	}
	for _, rec := range all.Queue {
		fmt.Fprintf(out, "  %s  %-12s  %s\n", rec.ID, truncateDisplay(rec.ChangeID, 12), truncateDisplay(rec.Description, 60))
	}
	fmt.Fprintln(out, "\nFAILED")
	if len(all.Failed) == 0 {
		fmt.Fprintln(out, "  (empty)")
	}
	for _, rec := range all.Failed {
		fmt.Fprintf(out, "  %s  %-12s  %-10s  %s\n", rec.ID, truncateDisplay(rec.CandidateChangeID, 12), rec.FailureReason, truncateDisplay(rec.Description, 60))
	}
}

func printStatusSingle(out io.Writer, q *commands.QueueRecord, f *commands.FailedRecord) {
	if q != nil {
		fmt.Fprintf(out, "id:          %s\n", q.ID)
		fmt.Fprintf(out, "change id:   %s\n", q.ChangeID)
		fmt.Fprintf(out, "commit id:   %s\n", q.CommitID)
		fmt.Fprintf(out, "description: %s\n", q.Description)
		return
	}
	fmt.Fprintf(out, "id:                  %s\n", f.ID)
	fmt.Fprintf(out, "candidate change id: %s\n", f.CandidateChangeID)
	fmt.Fprintf(out, "candidate commit id: %s\n", f.CandidateCommitID)
	fmt.Fprintf(out, "description:         %s\n", f.Description)
	fmt.Fprintf(out, "trunk commit id:     %s\n", f.TrunkCommitID)
	fmt.Fprintf(out, "workspace path:      %s\n", f.WorkspacePath)
	fmt.Fprintf(out, "failure reason:      %s\n", f.FailureReason)
}

// truncateDisplay truncates s to at most maxCols display columns,
// counting East Asian wide and full-width runes (commit descriptions
// may contain CJK text) as two columns and every other rune as one, so
// the status table's columns stay aligned in a terminal.
func truncateDisplay(s string, maxCols int) string {
	cols := 0
	for i, r := range s {
		w := 1
		if width.LookupRune(r).Kind() == width.EastAsianWide || width.LookupRune(r).Kind() == width.EastAsianFullwidth {
			w = 2
		}
		if cols+w > maxCols {
			return s[:i]
		}
		cols += w
	}
	return s
}
