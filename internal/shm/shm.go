// Package shm is the host shared-memory collaborator: open, create,
// read, write, size, and key derivation for a POSIX System V
// shared-memory segment. The rest of this module never calls the raw
// syscalls directly — it depends only on the SharedMemory interface
// below, so it can be exercised against a fake in tests.
package shm

import "errors"

// ErrNotExist is returned by Opener.OpenOrCreate when a segment does not
// exist and the caller asked for open-only (writable is false).
var ErrNotExist = errors.New("shm: segment does not exist")

// SharedMemory is a single attached System V shared-memory segment.
type SharedMemory interface {
	// ReadAt copies length bytes starting at offset into a new slice.
	ReadAt(offset, length int) ([]byte, error)
	// WriteAt writes data at offset.
	WriteAt(offset int, data []byte) error
	// Size returns the segment's total byte size.
	Size() int
	// Close detaches (but does not remove) the segment.
	Close() error
	// Remove marks the segment for destruction (IPC_RMID) and detaches it.
	Remove() error
}

// Opener creates or opens System V shared-memory segments keyed by a
// rendezvous path and a one-byte project id.
type Opener interface {
	// OpenOrCreate derives a key from (rendezvousPath, projectID), then:
	// if a segment for that key exists, attaches to it; otherwise, if
	// writable is true, creates one of exactly size bytes with the given
	// mode and attaches; otherwise returns ErrNotExist.
	OpenOrCreate(rendezvousPath string, projectID byte, size int, writable bool, mode uint32) (SharedMemory, error)
}
