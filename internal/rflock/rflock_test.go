package rflock_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/messagemedia/shmop/internal/rflock"
)

func newRendezvousFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.metrics")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestLock_ExclusiveExcludesExclusive(t *testing.T) {
	path := newRendezvousFile(t)
	locker := rflock.New(path)

	held, err := locker.Lock(50 * time.Millisecond)
	require.NoError(t, err)
	defer held.Close()

	other := rflock.New(path)
	_, err = other.Lock(30 * time.Millisecond)
	require.ErrorIs(t, err, rflock.ErrTimeout)
}

func TestLock_SharedAllowsSharedConcurrently(t *testing.T) {
	path := newRendezvousFile(t)

	a := rflock.New(path)
	heldA, err := a.RLock(50 * time.Millisecond)
	require.NoError(t, err)
	defer heldA.Close()

	b := rflock.New(path)
	heldB, err := b.RLock(50 * time.Millisecond)
	require.NoError(t, err)
	defer heldB.Close()
}

func TestLock_ReleaseAllowsSubsequentExclusive(t *testing.T) {
	path := newRendezvousFile(t)
	locker := rflock.New(path)

	held, err := locker.Lock(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, held.Close())

	other := rflock.New(path)
	heldOther, err := other.Lock(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, heldOther.Close())
}

func TestLock_CloseIsIdempotent(t *testing.T) {
	path := newRendezvousFile(t)
	locker := rflock.New(path)

	held, err := locker.Lock(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, held.Close())
	require.NoError(t, held.Close())
}

// Replacing the path out from under a held lock leaves the lock attached
// to the old, now-unlinked inode; a fresh Locker acquiring the same path
// must observe the new file and lock that one instead.
func TestLock_SurvivesPathReplacedUnderHeldLock(t *testing.T) {
	path := newRendezvousFile(t)
	stale := rflock.New(path)

	held, err := stale.Lock(50 * time.Millisecond)
	require.NoError(t, err)
	defer held.Close()

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	fresh := rflock.New(path)
	heldFresh, err := fresh.Lock(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, heldFresh.Close())
}
