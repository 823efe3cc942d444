// Package rflock provides advisory shared/exclusive locking against the
// rendezvous file, with a Locker/Lock shape and a backoff strategy:
// a uniform random 0-10ms sleep between attempts instead of
// exponential backoff, and a default 100ms timeout.
package rflock

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultTimeout is the lock acquisition timeout used when a caller
// does not specify one.
const DefaultTimeout = 100 * time.Millisecond

// ErrTimeout is returned when a lock is not acquired within the timeout.
var ErrTimeout = errors.New("rflock: timed out acquiring lock")

type kind int

const (
	shared kind = iota
	exclusive
)

// Lock is a held advisory lock on the rendezvous file. Close releases it
// unconditionally; it is safe to call Close more than once.
type Lock struct {
	file   *os.File
	closed bool
}

// Close releases the lock and closes the underlying file handle.
func (l *Lock) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()

	if unlockErr != nil {
		return fmt.Errorf("rflock: unlock: %w", unlockErr)
	}

	return closeErr
}

// Locker acquires locks against a single rendezvous file path.
type Locker struct {
	path string
}

// New returns a Locker for the rendezvous file at path. The file must
// already exist (see package rendezvous).
func New(path string) *Locker {
	return &Locker{path: path}
}

// Lock acquires an exclusive lock, waiting up to timeout (or
// DefaultTimeout if timeout <= 0). Every mutation of segment layout
// (the append and initialize paths) must hold this lock.
func (l *Locker) Lock(timeout time.Duration) (*Lock, error) {
	return l.acquire(exclusive, timeout)
}

// RLock acquires a shared lock under the same timeout rules as Lock.
// No caller in this module takes it: indexmgr's Find and ListEntries
// scan without a lock.
func (l *Locker) RLock(timeout time.Duration) (*Lock, error) {
	return l.acquire(shared, timeout)
}

func (l *Locker) acquire(k kind, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	flockOp := unix.LOCK_EX
	if k == shared {
		flockOp = unix.LOCK_SH
	}

	deadline := time.Now().Add(timeout)

	for {
		file, err := openRendezvous(l.path)
		if err != nil {
			return nil, err
		}

		if err := flockNonBlocking(int(file.Fd()), flockOp); err != nil {
			if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
				file.Close()
				return nil, fmt.Errorf("rflock: flock %s: %w", l.path, err)
			}

			file.Close()

			if time.Now().After(deadline) {
				return nil, ErrTimeout
			}

			// Uniform random 0-10ms backoff rather than exponential:
			// timeouts here are short (default 100ms) and many short-lived,
			// unrelated processes may contend, so a fixed jitter range
			// avoids the thundering-herd risk of synchronized exponential
			// retries without needing a cap-tuning constant.
			time.Sleep(time.Duration(rand.Intn(11)) * time.Millisecond)

			continue
		}

		// The lock is held on the open file description, not the path: if
		// the path was unlinked and recreated between our open and flock,
		// we locked the old inode while a new one now sits at l.path. Stat
		// both sides and retry the whole open-and-flock sequence on a
		// mismatch, the same way internal/shm.Key derives its identity
		// from Dev/Ino rather than the path string.
		same, err := sameInode(file, l.path)
		if err != nil {
			file.Close()
			return nil, err
		}

		if same {
			return &Lock{file: file}, nil
		}

		unix.Flock(int(file.Fd()), unix.LOCK_UN) //nolint:errcheck // file is about to be closed
		file.Close()

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
	}
}

func openRendezvous(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err == nil {
		return file, nil
	}

	file, err = os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rflock: open %s: %w", path, err)
	}

	return file, nil
}

// sameInode reports whether the still-open file and the live path
// refer to the same inode, guarding against the path being replaced
// between open and flock.
func sameInode(file *os.File, path string) (bool, error) {
	var fst, pst syscall.Stat_t

	if err := syscall.Fstat(int(file.Fd()), &fst); err != nil {
		return false, fmt.Errorf("rflock: fstat %s: %w", path, err)
	}

	if err := syscall.Stat(path, &pst); err != nil {
		if errors.Is(err, syscall.ENOENT) {
			return false, nil
		}

		return false, fmt.Errorf("rflock: stat %s: %w", path, err)
	}

	return fst.Dev == pst.Dev && fst.Ino == pst.Ino, nil
}

func flockNonBlocking(fd, op int) error {
	for {
		err := unix.Flock(fd, op|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}
