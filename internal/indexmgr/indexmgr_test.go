package indexmgr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/messagemedia/shmop/internal/indexmgr"
	"github.com/messagemedia/shmop/internal/rflock"
	"github.com/messagemedia/shmop/internal/segment"
	"github.com/messagemedia/shmop/internal/shm"
)

func newManager(t *testing.T, version uint32) *indexmgr.Manager {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.metrics")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	pair, err := segment.OpenOrCreate(shm.NewFake(), path, 64, true)
	require.NoError(t, err)

	locker := rflock.New(path)

	return indexmgr.New(pair, locker, version, nil)
}

func TestInitialize_FreshHeader(t *testing.T) {
	mgr := newManager(t, 100)
	require.NoError(t, mgr.Initialize(true))

	version, nextIndex, nextData, err := mgr.HeaderSnapshot()
	require.NoError(t, err)
	require.Equal(t, uint32(100), version)
	require.Equal(t, uint32(12), nextIndex)
	require.Equal(t, uint32(0), nextData)
}

func TestInitialize_ReadOnlyUninitializedFails(t *testing.T) {
	mgr := newManager(t, 100)
	require.Error(t, mgr.Initialize(false))
}

func TestFind_MissReturnsFalse(t *testing.T) {
	mgr := newManager(t, 100)
	require.NoError(t, mgr.Initialize(true))

	_, ok, err := mgr.Find(0, 0, -1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAppend_ThenFindReturnsEntry(t *testing.T) {
	mgr := newManager(t, 100)
	require.NoError(t, mgr.Initialize(true))

	offset, err := mgr.Append(0, 0, -1, 'L', 4)
	require.NoError(t, err)
	require.Equal(t, 0, offset)

	entry, ok, err := mgr.Find(0, 0, -1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte('L'), entry.Type)
	require.Equal(t, 4, entry.Length)
	require.Equal(t, 0, entry.Offset)
}

func TestAppend_IsIdempotentOnRace(t *testing.T) {
	mgr := newManager(t, 100)
	require.NoError(t, mgr.Initialize(true))

	first, err := mgr.Append(0, 0, -1, 'L', 4)
	require.NoError(t, err)

	second, err := mgr.Append(0, 0, -1, 'L', 4)
	require.NoError(t, err)

	require.Equal(t, first, second)

	_, nextIndex, _, err := mgr.HeaderSnapshot()
	require.NoError(t, err)
	require.Equal(t, uint32(12+16), nextIndex)
}

func TestAppend_AdvancesCursors(t *testing.T) {
	mgr := newManager(t, 100)
	require.NoError(t, mgr.Initialize(true))

	_, err := mgr.Append(0, 0, -1, 'L', 4)
	require.NoError(t, err)
	_, err = mgr.Append(0, 1, -1, 'L', 4)
	require.NoError(t, err)

	_, nextIndex, nextData, err := mgr.HeaderSnapshot()
	require.NoError(t, err)
	require.Equal(t, uint32(12+2*16), nextIndex)
	require.Equal(t, uint32(2*4), nextData)
}
