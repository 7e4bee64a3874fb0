package lock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireMutualExclusion(t *testing.T) {
	m := NewManager(t.TempDir())

	h1, err := m.Acquire("run")
	require.NoError(t, err)
	require.NotNil(t, h1, "first acquire should succeed")

	h2, err := m.Acquire("run")
	require.NoError(t, err)
	require.Nil(t, h2, "second acquire should observe the lock held")

	held, err := m.IsHeld("run")
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, h1.Release())

	held, err = m.IsHeld("run")
	require.NoError(t, err)
	require.False(t, held)

	h3, err := m.Acquire("run")
	require.NoError(t, err)
	require.NotNil(t, h3, "lock should be acquirable again after release")
	require.NoError(t, h3.Close())
}

func TestIndependentLockNames(t *testing.T) {
	m := NewManager(t.TempDir())

	runLock, err := m.Acquire("run")
	require.NoError(t, err)
	require.NotNil(t, runLock)
	defer runLock.Close()

	idLock, err := m.Acquire("id")
	require.NoError(t, err)
	require.NotNil(t, idLock, "distinct lock names must not contend")
	defer idLock.Close()
}

func TestAcquireOrFail(t *testing.T) {
	m := NewManager(t.TempDir())

	h, err := m.Acquire("run")
	require.NoError(t, err)
	defer h.Close()

	_, err = m.AcquireOrFail("run", "queue runner lock already held")
	require.ErrorContains(t, err, "already held")
}

func TestStateOnPristineRepo(t *testing.T) {
	m := NewManager(t.TempDir())
	s, err := m.State("run")
	require.NoError(t, err)
	require.Equal(t, Free, s)
}
