package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/vcs"
	"github.com/paulsmith/jjq/internal/vcs/vcstest"
)

func newTestContext(t *testing.T) *CheckContext {
	t.Helper()
	root := t.TempDir()
	fake := vcstest.New(root)
	lockMgr := lock.NewManager(root)
	cfg := config.NewStore(fake, lockMgr, root)
	return &CheckContext{Ctx: context.Background(), VCS: fake, Lock: lockMgr, Config: cfg, RepoRoot: root}
}

func TestJJQInitializedCheckFailsBeforeInit(t *testing.T) {
	c := newTestContext(t)
	result := (&JJQInitializedCheck{}).Run(c)
	assert.Equal(t, StatusFail, result.Status)
}

func TestJJQInitializedCheckPassesAfterInit(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Config.Init(c.Ctx, "main", "go test ./...", config.StrategyRebase))
	result := (&JJQInitializedCheck{}).Run(c)
	assert.Equal(t, StatusOK, result.Status)
}

func TestTrunkExistsCheckFailsWhenTrunkBookmarkIsMissing(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Config.Init(c.Ctx, "main", "go test ./...", config.StrategyRebase))
	result := (&TrunkExistsCheck{}).Run(c)
	assert.Equal(t, StatusFail, result.Status)
}

func TestTrunkExistsCheckPassesWhenTrunkBookmarkExists(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Config.Init(c.Ctx, "main", "go test ./...", config.StrategyRebase))
	fake := c.VCS.(*vcstest.Fake)
	fake.AddRev(vcstest.Rev{Change: "trunk-c1", Commit: "trunk-commit-1", Tree: "trunk-tree"})
	fake.SetBookmark("main", vcs.ChangeID("trunk-c1"))

	result := (&TrunkExistsCheck{}).Run(c)
	assert.Equal(t, StatusOK, result.Status)
}

func TestCheckConfiguredCheckWarnsWhenUnset(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Config.Init(c.Ctx, "main", "", config.StrategyRebase))
	result := (&CheckConfiguredCheck{}).Run(c)
	assert.Equal(t, StatusWarning, result.Status)
}

func TestOrphanWorkspacesCheckFlagsAnUntrackedRunWorkspace(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Config.Init(c.Ctx, "main", "go test ./...", config.StrategyRebase))
	fake := c.VCS.(*vcstest.Fake)
	fake.AddRev(vcstest.Rev{Change: "trunk-c1", Commit: "trunk-commit-1", Tree: "trunk-tree"})
	fake.SetBookmark("main", vcs.ChangeID("trunk-c1"))
	require.NoError(t, fake.WorkspaceAdd(c.Ctx, t.TempDir(), "jjq-run-000005", "main"))

	result := (&OrphanWorkspacesCheck{}).Run(c)
	assert.Equal(t, StatusWarning, result.Status)
	assert.Contains(t, result.Message, "jjq-run-000005")
}

func TestDoctorRunNeverShortCircuitsOnAFailingCheck(t *testing.T) {
	c := newTestContext(t)
	d := New()
	reports := d.Run(c)
	assert.Len(t, reports, len(d.Checks()))
	assert.Equal(t, StatusFail, WorstStatus(reports))
}
