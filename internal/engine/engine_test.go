package engine

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

// testRig bundles a fake repository, seeded with a trunk bookmark, and
// the engine wired against it.
type testRig struct {
	eng    *Engine
	fake   *vcstest.Fake
	cfg    *config.Store
	seq    *queue.Sequencer
	trunk  vcs.ChangeID
	ctx    context.Context
	seqNum int
}

func newTestRig(t *testing.T, strategy config.Strategy, checkCmd string) *testRig {
	t.Helper()
	root := t.TempDir()
	fake := vcstest.New(root)
	lockMgr := lock.NewManager(root)
	cfg := config.NewStore(fake, lockMgr, root)
	ctx := context.Background()
	require.NoError(t, cfg.Init(ctx, "main", checkCmd, strategy))

	trunkChange := vcs.ChangeID("trunk-c1")
	fake.AddRev(vcstest.Rev{Change: trunkChange, Commit: "trunk-commit-1", Tree: "trunk-tree"})
	fake.SetBookmark("main", trunkChange)

	seq := queue.NewSequencer(fake, lockMgr, cfg)
	eng := &Engine{VCS: fake, Lock: lockMgr, Config: cfg, Queue: seq, RepoRoot: root}

	return &testRig{eng: eng, fake: fake, cfg: cfg, seq: seq, trunk: trunkChange, ctx: ctx}
}

// pushCandidate registers a new revision with its own tree and queues
// it directly, bypassing commands.Push (tested separately).
func (r *testRig) pushCandidate(t *testing.T, tree, description string) queue.SeqID {
	t.Helper()
	r.seqNum++
	change := vcs.ChangeID("cand-c" + string(rune('0'+r.seqNum)))
	r.fake.AddRev(vcstest.Rev{Change: change, Commit: vcs.CommitID("cand-commit-" + string(rune('0'+r.seqNum))), Tree: tree, Description: description})
	id, err := r.seq.NextID(r.ctx)
	require.NoError(t, err)
	require.NoError(t, r.fake.BookmarkCreate(r.ctx, queue.QueueBookmark(id), string(change)))
	return id
}

func TestRunOneOnEmptyQueueIsANoOp(t *testing.T) {
	r := newTestRig(t, config.StrategyRebase, "true")
	result, err := r.eng.RunOne(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, Empty, result.Outcome)
}

func TestRunOneLandsASuccessfulCandidateRebase(t *testing.T) {
	r := newTestRig(t, config.StrategyRebase, "true")
	id := r.pushCandidate(t, "cand-tree", "add widget")

	result, err := r.eng.RunOne(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, Success, result.Outcome)
	assert.Equal(t, id, result.ID)

	exists, err := r.seq.QueueItemExists(r.ctx, id)
	require.NoError(t, err)
	assert.False(t, exists, "queue bookmark should be gone after landing")

	trunkHead, err := r.fake.ResolveRevset(r.ctx, "main")
	require.NoError(t, err)
	assert.NotEqual(t, r.trunk, trunkHead, "trunk should have advanced")
}

func TestRunOneLandsASuccessfulCandidateMerge(t *testing.T) {
	r := newTestRig(t, config.StrategyMerge, "true")
	id := r.pushCandidate(t, "cand-tree", "add widget")

	result, err := r.eng.RunOne(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, Success, result.Outcome)

	exists, err := r.seq.QueueItemExists(r.ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	trunkHead, err := r.fake.ResolveRevset(r.ctx, "main")
	require.NoError(t, err)
	assert.NotEqual(t, r.trunk, trunkHead)
}

func TestRunOneRecordsACheckFailureWithTrailers(t *testing.T) {
	r := newTestRig(t, config.StrategyRebase, "false")
	id := r.pushCandidate(t, "cand-tree", "add widget")

	result, err := r.eng.RunOne(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, FailureCheck, result.Outcome)

	queueExists, err := r.seq.QueueItemExists(r.ctx, id)
	require.NoError(t, err)
	assert.False(t, queueExists, "failed candidate is removed from the queue namespace")

	failedExists, err := r.seq.FailedItemExists(r.ctx, id)
	require.NoError(t, err)
	assert.True(t, failedExists)

	desc, err := r.fake.GetDescription(r.ctx, queue.FailedBookmark(id))
	require.NoError(t, err)
	trailers, missing := queue.ParseTrailersStrict(desc)
	assert.Empty(t, missing)
	assert.Equal(t, string(queue.ReasonCheck), trailers[queue.TrailerFailure])
}

func TestRunOneRecordsAConflictWithoutRunningTheCheck(t *testing.T) {
	r := newTestRig(t, config.StrategyRebase, "true")
	r.seqNum++
	change := vcs.ChangeID("cand-conflict")
	r.fake.AddRev(vcstest.Rev{Change: change, Commit: "cand-commit-conflict", Tree: "cand-tree", Description: "add widget", Conflict: true})
	id, err := r.seq.NextID(r.ctx)
	require.NoError(t, err)
	require.NoError(t, r.fake.BookmarkCreate(r.ctx, queue.QueueBookmark(id), string(change)))

	result, err := r.eng.RunOne(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, FailureConflict, result.Outcome)

	failedExists, err := r.seq.FailedItemExists(r.ctx, id)
	require.NoError(t, err)
	assert.True(t, failedExists)

	desc, err := r.fake.GetDescription(r.ctx, queue.FailedBookmark(id))
	require.NoError(t, err)
	trailers, missing := queue.ParseTrailersStrict(desc)
	assert.Empty(t, missing)
	assert.Equal(t, string(queue.ReasonConflicts), trailers[queue.TrailerFailure])
}

func TestRunOneSkipsACandidateThatAddsNothing(t *testing.T) {
	r := newTestRig(t, config.StrategyRebase, "true")
	// Same tree as trunk: the candidate is a no-op relative to trunk.
	id := r.pushCandidate(t, "trunk-tree", "no-op")

	result, err := r.eng.RunOne(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, SkippedEmpty, result.Outcome)

	exists, err := r.seq.QueueItemExists(r.ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)
}
