package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/vcs/vcstest"
)

func newTestStore(t *testing.T) (*Store, *vcstest.Fake) {
	t.Helper()
	root := t.TempDir()
	fake := vcstest.New(root)
	lockMgr := lock.NewManager(root)
	return NewStore(fake, lockMgr, root), fake
}

func TestEnsureInitializedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	initialized, err := store.IsInitialized(ctx)
	require.NoError(t, err)
	assert.False(t, initialized)

	require.NoError(t, store.EnsureInitialized(ctx))

	initialized, err = store.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, initialized)

	// Calling again must not error or recreate the branch.
	require.NoError(t, store.EnsureInitialized(ctx))
}

func TestGetOrDefault(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.EnsureInitialized(ctx))

	trunk, err := store.GetTrunkBookmark(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrunkBookmark, trunk)

	_, ok, err := store.GetCheckCommand(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Set(ctx, KeyTrunkBookmark, "develop"))
	trunk, err := store.GetTrunkBookmark(ctx)
	require.NoError(t, err)
	assert.Equal(t, "develop", trunk)

	require.NoError(t, store.Set(ctx, KeyCheckCommand, "go test ./..."))
	cmd, ok, err := store.GetCheckCommand(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "go test ./...", cmd)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	err := store.Set(ctx, "max_failures", "3")
	assert.Error(t, err)
}

func TestSetRejectsInvalidStrategy(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	err := store.Set(ctx, KeyStrategy, "squash")
	assert.Error(t, err)
}

func TestInitRefusesWhenAlreadyInitialized(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Init(ctx, "main", "go test ./...", StrategyRebase))

	err := store.Init(ctx, "main", "go test ./...", StrategyRebase)
	assert.Error(t, err)
}
