package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paulsmith/jjq/internal/checkexec"
	"github.com/paulsmith/jjq/internal/jjqerr"
)

// newCheckCmd implements `jjq check <revset>`: builds a disposable
// merge-of-trunk-and-revset workspace (jjq-check-PID, never queued),
// runs the configured check command against it, and always tears the
// workspace down — this is a dry run, not a candidate for landing.
func newCheckCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check <revset>",
		Short: "Run the check command against a revset in a disposable workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}

			trunk, err := a.Config.GetTrunkBookmark(ctx)
			if err != nil {
				return err
			}
			checkCmd, ok, err := a.Config.GetCheckCommand(ctx)
			if err != nil {
				return err
			}
			if !ok || checkCmd == "" {
				return jjqerr.New(jjqerr.Usage, "check command not configured; run `jjq config check_command <cmd>`")
			}

			ephemeral, err := a.VCS.NewRev(ctx, trunk, args[0])
			if err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "building merge commit")
			}
			defer func() { _ = a.VCS.Abandon(ctx, string(ephemeral)) }()

			conflict, err := a.VCS.HasConflicts(ctx, string(ephemeral))
			if err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "checking for conflicts")
			}
			if conflict {
				return jjqerr.New(jjqerr.Conflict, "%q conflicts with trunk %q", args[0], trunk)
			}

			wsName := fmt.Sprintf("jjq-check-%d", os.Getpid())
			tmpDir, err := os.MkdirTemp("", wsName+"-")
			if err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "creating check workspace directory")
			}
			defer os.RemoveAll(tmpDir)

			if err := a.VCS.WorkspaceAdd(ctx, tmpDir, wsName, string(ephemeral)); err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "building check workspace")
			}
			defer func() { _ = a.VCS.WorkspaceForget(ctx, wsName) }()

			origDir, err := os.Getwd()
			if err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "reading working directory")
			}
			if err := os.Chdir(tmpDir); err != nil {
				return jjqerr.Wrap(jjqerr.Fatal, err, "entering check workspace")
			}
			defer func() { _ = os.Chdir(origDir) }()

			executor := &checkexec.Executor{
				Command: checkCmd,
				LogPath: checkexec.LogPath(a.RepoRoot),
				Verbose: verbose,
			}
			exitCode, err := executor.Run(ctx)
			if err != nil {
				return err
			}
			if exitCode != 0 {
				return jjqerr.New(jjqerr.Conflict, "check command exited %d", exitCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "check passed")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "start the interactive progress surface already streaming the log")

	return cmd
}
