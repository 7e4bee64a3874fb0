package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/queue"
	"github.com/paulsmith/jjq/internal/vcs"
	"github.com/paulsmith/jjq/internal/vcs/vcstest"
)

// newTestCommands wires a Commands instance against an initialized
// fake repository with a "main" trunk bookmark already present.
func newTestCommands(t *testing.T) (*Commands, *vcstest.Fake, context.Context) {
	t.Helper()
	root := t.TempDir()
	fake := vcstest.New(root)
	lockMgr := lock.NewManager(root)
	cfg := config.NewStore(fake, lockMgr, root)
	ctx := context.Background()
	require.NoError(t, cfg.Init(ctx, "main", "true", config.StrategyRebase))

	trunkChange := vcs.ChangeID("trunk-c1")
	fake.AddRev(vcstest.Rev{Change: trunkChange, Commit: "trunk-commit-1", Tree: "trunk-tree"})
	fake.SetBookmark("main", trunkChange)

	seq := queue.NewSequencer(fake, lockMgr, cfg)
	cmds := &Commands{VCS: fake, Lock: lockMgr, Config: cfg, Queue: seq, RepoRoot: root}
	return cmds, fake, ctx
}

func addCandidate(fake *vcstest.Fake, change vcs.ChangeID, commit vcs.CommitID, tree, desc string) {
	fake.AddRev(vcstest.Rev{Change: change, Commit: commit, Tree: tree, Description: desc})
}

func TestPushQueuesANewCandidate(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature")

	result, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)
	assert.Nil(t, result.Replaced)
	assert.Nil(t, result.Cleared)

	exists, err := cmds.Queue.QueueItemExists(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPushIsIdempotentOnTheSameCommit(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature")

	_, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)

	_, err = cmds.Push(ctx, "cand-1")
	assert.Error(t, err, "pushing the identical commit twice must be rejected")
}

func TestPushReplacesAStaleEntryForTheSameChange(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature v1")

	first, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)

	// Amend the candidate: same change ID, new commit (a new describe
	// in the real tool would do this; the fake models it as a second
	// AddRev under the same change key).
	addCandidate(fake, "cand-1", "cand-commit-2", "feature-tree-v2", "add feature v2")

	second, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)
	require.NotNil(t, second.Replaced)
	assert.Equal(t, first.ID, *second.Replaced)

	stillQueued, err := cmds.Queue.QueueItemExists(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, stillQueued)
}

func TestPushRejectsAConflictingCandidate(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	// The fake propagates Conflict into any merge it synthesizes, so
	// marking the candidate itself conflicting is enough to make the
	// pre-flight ephemeral merge in Push conflict too.
	fake.AddRev(vcstest.Rev{Change: "cand-1", Commit: "cand-commit-1", Tree: "feature-tree", Description: "add feature", Conflict: true})

	_, err := cmds.Push(ctx, "cand-1")
	assert.Error(t, err)
}

func TestDeleteRemovesAQueuedEntry(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature")
	pushed, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)

	result, err := cmds.Delete(ctx, pushed.ID)
	require.NoError(t, err)
	assert.Equal(t, "queue", result.Kind)

	exists, err := cmds.Queue.QueueItemExists(ctx, pushed.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteRejectsAnUnknownID(t *testing.T) {
	cmds, _, ctx := newTestCommands(t)
	_, err := cmds.Delete(ctx, queue.SeqID(42))
	assert.Error(t, err)
}

func TestStatusAllReportsQueuedEntries(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature\n\nmore detail")
	pushed, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)

	all, err := cmds.StatusAll(ctx)
	require.NoError(t, err)
	assert.False(t, all.Running)
	require.Len(t, all.Queue, 1)
	assert.Equal(t, pushed.ID, all.Queue[0].ID)
	assert.Equal(t, "add feature", all.Queue[0].Description)
	assert.Empty(t, all.Failed)
}

func TestStatusByChangeIDFindsAQueuedEntry(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature")
	_, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)

	q, f, err := cmds.StatusByChangeID(ctx, "cand-1")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Nil(t, f)
}

func TestCleanForgetsOrphanedRunWorkspaces(t *testing.T) {
	cmds, _, ctx := newTestCommands(t)

	// A run workspace for a sequence ID that is no longer queued or
	// failed: this simulates a crash that left a workspace behind.
	require.NoError(t, cmds.VCS.WorkspaceAdd(ctx, t.TempDir(), "jjq-run-000099", "main"))

	result, err := cmds.Clean(ctx)
	require.NoError(t, err)
	assert.Contains(t, result.ForgottenWorkspaces, "jjq-run-000099")
}

func TestCleanLeavesLiveWorkspacesAlone(t *testing.T) {
	cmds, fake, ctx := newTestCommands(t)
	addCandidate(fake, "cand-1", "cand-commit-1", "feature-tree", "add feature")
	pushed, err := cmds.Push(ctx, "cand-1")
	require.NoError(t, err)

	wsName := "jjq-run-" + pushed.ID.String()
	require.NoError(t, cmds.VCS.WorkspaceAdd(ctx, t.TempDir(), wsName, "main"))

	result, err := cmds.Clean(ctx)
	require.NoError(t, err)
	assert.NotContains(t, result.ForgottenWorkspaces, wsName)
}
