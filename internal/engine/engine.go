// Package engine implements jjq's run engine: the FIFO pipeline that
// takes one queue entry through conflict pre-check, isolated check
// execution in a disposable workspace, success commit, and on failure
// preserves enough state to diagnose and retry. See spec §4.F.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/paulsmith/jjq/internal/checkexec"
	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/logging"
	"github.com/paulsmith/jjq/internal/queue"
	"github.com/paulsmith/jjq/internal/vcs"
)

// Outcome classifies the result of processing a single queue item.
type Outcome int

const (
	// Empty means the queue was empty; nothing was processed.
	Empty Outcome = iota
	// Success means the candidate was landed on trunk.
	Success
	// SkippedEmpty means the candidate added nothing relative to
	// trunk; it was dropped without running the check.
	SkippedEmpty
	// FailureConflict means the candidate conflicted with trunk. An
	// unconfigured check command or a held run lock is reported as a
	// jjqerr.Conflict error instead of a Result.
	FailureConflict
	// FailureCheck means the check command exited non-zero.
	FailureCheck
	// FailureTrunkMoved means trunk advanced while the check was
	// running; the item was left queued for retry.
	FailureTrunkMoved
)

// Result describes the outcome of one RunOne invocation.
type Result struct {
	Outcome Outcome
	ID      queue.SeqID
	Reason  string
}

// Engine wires together the VCS adapter and the core's three
// collaborators (lock manager, config store, queue sequencer) to drive
// one queue item at a time through the state machine in spec §4.F.
type Engine struct {
	VCS      vcs.VCS
	Lock     *lock.Manager
	Config   *config.Store
	Queue    *queue.Sequencer
	RepoRoot string

	// Stderr receives the streamed log on a check failure, and
	// operator-visible guidance on conflict. Defaults to os.Stderr if
	// nil.
	Stderr io.Writer
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return os.Stderr
}

// RunOne dequeues and processes the single lowest-sequence-ID queue
// item, per spec §4.F's numbered contract.
func (e *Engine) RunOne(ctx context.Context) (*Result, error) {
	runID := logging.RunID()
	log := logging.L().Info().Str("run_id", runID)

	id, ok, err := e.Queue.NextItem(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Log("queue empty")
		return &Result{Outcome: Empty}, nil
	}

	trunk, checkCmd, strategy, err := e.readConfig(ctx)
	if err != nil {
		return nil, err
	}
	if checkCmd == "" {
		return nil, jjqerr.New(jjqerr.Conflict, "check command not configured; run `jjq config check_command <cmd>`")
	}

	handle, err := e.Lock.Acquire("run")
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "acquiring run lock")
	}
	if handle == nil {
		return nil, jjqerr.New(jjqerr.Conflict, "run lock unavailable (another run is in progress)")
	}
	defer handle.Close()

	return e.runItem(ctx, id, trunk, checkCmd, strategy, runID)
}

func (e *Engine) readConfig(ctx context.Context) (trunk, checkCmd string, strategy config.Strategy, err error) {
	handle, err := e.Lock.AcquireOrFail("config", "could not acquire config lock")
	if err != nil {
		return "", "", "", jjqerr.Wrap(jjqerr.Conflict, err, "config lock unavailable")
	}
	defer handle.Close()

	trunk, err = e.Config.GetTrunkBookmark(ctx)
	if err != nil {
		return "", "", "", err
	}
	checkCmd, _, err = e.Config.GetCheckCommand(ctx)
	if err != nil {
		return "", "", "", err
	}
	strategy, err = e.Config.GetStrategy(ctx)
	if err != nil {
		return "", "", "", err
	}
	return trunk, checkCmd, strategy, nil
}

// runItem executes the state machine body for id with the run lock
// already held.
func (e *Engine) runItem(ctx context.Context, id queue.SeqID, trunk, checkCmd string, strategy config.Strategy, runID string) (*Result, error) {
	queueBookmark := queue.QueueBookmark(id)

	trunkCommit, err := e.VCS.GetCommitID(ctx, trunk)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "reading trunk commit")
	}
	candidate, err := e.VCS.ResolveRevsetFull(ctx, queueBookmark)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "resolving queued candidate")
	}
	candidateDesc, err := e.VCS.GetDescription(ctx, queueBookmark)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "reading candidate description")
	}
	logPath := checkexec.LogPath(e.RepoRoot)

	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("jjq-run-%s-", id))
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "creating workspace directory")
	}
	wsName := "jjq-run-" + id.String()

	// wsVCS scopes every subsequent jj invocation to tmpDir, the
	// workspace this run just built. "@" means "the working-copy
	// commit of the process's current directory" to jj, so a shared,
	// root-scoped adapter would resolve "@" against the main workspace
	// instead — wsVCS is what makes "@" mean the candidate being
	// checked here.
	wsVCS := e.VCS.WithDir(tmpDir)

	var duplicates []vcs.ChangeID
	switch strategy {
	case config.StrategyMerge:
		if err := wsVCS.WorkspaceAdd(ctx, tmpDir, wsName, trunk, queueBookmark); err != nil {
			_ = os.RemoveAll(tmpDir)
			return nil, jjqerr.Wrap(jjqerr.Fatal, err, "building merge workspace")
		}
	case config.StrategyRebase:
		duplicates, err = wsVCS.DuplicateOnto(ctx, queueBookmark, trunk)
		if err != nil {
			_ = os.RemoveAll(tmpDir)
			return nil, jjqerr.Wrap(jjqerr.Fatal, err, "duplicating candidate onto trunk")
		}
		tip := duplicates[len(duplicates)-1]
		if err := wsVCS.WorkspaceAdd(ctx, tmpDir, wsName, string(tip)); err != nil {
			_ = os.RemoveAll(tmpDir)
			return nil, jjqerr.Wrap(jjqerr.Fatal, err, "building rebase workspace")
		}
		if err := wsVCS.Edit(ctx, string(tip)); err != nil {
			_ = os.RemoveAll(tmpDir)
			return nil, jjqerr.Wrap(jjqerr.Fatal, err, "editing duplicate tip")
		}
	default:
		_ = os.RemoveAll(tmpDir)
		return nil, jjqerr.New(jjqerr.Fatal, "unknown strategy %q", strategy)
	}

	if err := e.Config.RecordWorkspace(ctx, id.String(), tmpDir); err != nil {
		return nil, err
	}

	origDir, err := os.Getwd()
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "reading working directory")
	}
	if err := os.Chdir(tmpDir); err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "entering workspace")
	}
	defer func() { _ = os.Chdir(origDir) }()

	hasConflict, err := wsVCS.HasConflicts(ctx, "@")
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "checking for conflicts")
	}
	if hasConflict {
		if err := e.markFailed(ctx, wsVCS, id, queue.ReasonConflicts, candidate, candidateDesc, trunkCommit, tmpDir, strategy); err != nil {
			return nil, err
		}
		fmt.Fprintf(e.stderr(), "jjq: item %s conflicts with trunk; rebase onto %s and re-push\n", id, trunk)
		return &Result{Outcome: FailureConflict, ID: id, Reason: "conflicts"}, nil
	}

	treesMatch, err := wsVCS.TreesMatch(ctx, "@", trunk)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "comparing trees")
	}
	if treesMatch {
		if err := wsVCS.BookmarkDelete(ctx, queueBookmark); err != nil {
			return nil, jjqerr.Wrap(jjqerr.Fatal, err, "deleting empty queue entry")
		}
		e.abandonDuplicates(ctx, wsVCS, duplicates)
		e.discardWorkspace(ctx, wsVCS, id, wsName, tmpDir)
		return &Result{Outcome: SkippedEmpty, ID: id}, nil
	}

	if err := wsVCS.Describe(ctx, "@", fmt.Sprintf("WIP: merge %s", id)); err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "describing working copy")
	}

	executor := &checkexec.Executor{Command: checkCmd, LogPath: logPath}
	exitCode, err := executor.Run(ctx)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		streamLog(logPath, e.stderr())
		if err := e.markFailed(ctx, wsVCS, id, queue.ReasonCheck, candidate, candidateDesc, trunkCommit, tmpDir, strategy); err != nil {
			return nil, err
		}
		return &Result{Outcome: FailureCheck, ID: id, Reason: "check"}, nil
	}

	trunkNow, err := wsVCS.GetCommitID(ctx, trunk)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "re-reading trunk commit")
	}
	if trunkNow != trunkCommit {
		e.abandonDuplicates(ctx, wsVCS, duplicates)
		e.discardWorkspace(ctx, wsVCS, id, wsName, tmpDir)
		return &Result{Outcome: FailureTrunkMoved, ID: id, Reason: "trunk moved during run"}, nil
	}

	if err := e.land(ctx, wsVCS, id, strategy, trunk, trunkCommit, queueBookmark, candidateDesc, duplicates); err != nil {
		return nil, err
	}
	e.discardWorkspace(ctx, wsVCS, id, wsName, tmpDir)
	logging.L().Info().Str("run_id", runID).Str("sequence", id.String()).Log("landed")
	return &Result{Outcome: Success, ID: id}, nil
}

// land advances trunk per the configured strategy. For merge, the
// trunk compare-and-swap happens before the queue bookmark is
// deleted — this ordering is load-bearing (invariant I5): a crash
// between the two leaves the queue entry pointing at an
// already-landed change, which a subsequent run observes as empty and
// skips (spec §4.F.7's crash-safety property).
func (e *Engine) land(ctx context.Context, v vcs.VCS, id queue.SeqID, strategy config.Strategy, trunk string, trunkCommit vcs.CommitID, queueBookmark, candidateDesc string, duplicates []vcs.ChangeID) error {
	switch strategy {
	case config.StrategyMerge:
		headCommit, err := v.GetCommitID(ctx, "@")
		if err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "reading merge head commit")
		}
		if err := v.BookmarkMove(ctx, trunk, trunkCommit, headCommit); err != nil {
			return jjqerr.Wrap(jjqerr.Conflict, err, "trunk moved during run")
		}
		if err := v.BookmarkDelete(ctx, queueBookmark); err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "deleting landed queue entry")
		}
		msg := fmt.Sprintf("%s\n\n%s: %s\n%s: %s\n", candidateDesc, queue.TrailerSequence, id, queue.TrailerStrategy, strategy)
		if err := v.Describe(ctx, trunk, msg); err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "describing landed commit")
		}
		return nil

	case config.StrategyRebase:
		if err := v.RebaseBranchOnto(ctx, queueBookmark, trunk); err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "rebasing candidate onto trunk")
		}
		landedCommit, err := v.GetCommitID(ctx, queueBookmark)
		if err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "reading rebased candidate commit")
		}
		if err := v.BookmarkMove(ctx, trunk, trunkCommit, landedCommit); err != nil {
			return jjqerr.Wrap(jjqerr.Conflict, err, "trunk moved during run")
		}
		if err := v.BookmarkDelete(ctx, queueBookmark); err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "deleting landed queue entry")
		}
		msg := fmt.Sprintf("%s\n\n%s: %s\n%s: %s\n", candidateDesc, queue.TrailerSequence, id, queue.TrailerStrategy, strategy)
		if err := v.Describe(ctx, trunk, msg); err != nil {
			return jjqerr.Wrap(jjqerr.Fatal, err, "describing landed commit")
		}
		e.abandonDuplicates(ctx, v, duplicates)
		return nil

	default:
		return jjqerr.New(jjqerr.Fatal, "unknown strategy %q", strategy)
	}
}

func (e *Engine) markFailed(ctx context.Context, v vcs.VCS, id queue.SeqID, reason queue.FailureReason, candidate vcs.Candidate, candidateDesc string, trunkCommit vcs.CommitID, workspacePath string, strategy config.Strategy) error {
	if err := v.BookmarkDelete(ctx, queue.QueueBookmark(id)); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "deleting queue entry")
	}
	failedBookmark := queue.FailedBookmark(id)
	if err := v.BookmarkCreate(ctx, failedBookmark, "@"); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "creating failed entry")
	}
	body := queue.FormatFailureBody(id, reason, string(candidate.ChangeID), string(candidate.CommitID), string(trunkCommit), workspacePath, string(strategy))
	full := candidateDesc + "\n\n" + body
	if err := v.Describe(ctx, failedBookmark, full); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "describing failed entry")
	}
	return nil
}

func (e *Engine) abandonDuplicates(ctx context.Context, v vcs.VCS, duplicates []vcs.ChangeID) {
	for _, d := range duplicates {
		_ = v.Abandon(ctx, string(d))
	}
}

// discardWorkspace forgets and removes a workspace no longer needed
// for diagnosis (success, empty-skip, and trunk-moved-retry paths).
func (e *Engine) discardWorkspace(ctx context.Context, v vcs.VCS, id queue.SeqID, wsName, tmpDir string) {
	_ = v.WorkspaceForget(ctx, wsName)
	// ForgetWorkspace runs its own os.Getwd()-based MutateMeta before
	// tmpDir is removed: the caller's cwd is still tmpDir at this
	// point (runItem's os.Chdir(origDir) is deferred to its own
	// return), and os.Getwd() fails once its directory no longer
	// exists.
	_ = e.Config.ForgetWorkspace(ctx, id.String())
	_ = os.RemoveAll(tmpDir)
}

func streamLog(logPath string, w io.Writer) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return
	}
	for _, line := range splitLines(string(data)) {
		if checkexec.IsSentinel(line) {
			continue
		}
		fmt.Fprintln(w, line)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
