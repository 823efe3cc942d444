package shm

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// SysV opens real POSIX System V shared-memory segments via
// golang.org/x/sys/unix rather than raw syscall.* or a cgo wrapper,
// keeping this package portable and cgo-free.
type SysV struct{}

// NewSysV returns the production Opener.
func NewSysV() *SysV { return &SysV{} }

// Key derives a System V IPC key from a rendezvous file path and a
// one-byte project id, following the classic ftok algorithm: the key
// folds the low byte of the device number, the low 16 bits of the
// inode, and the project id into a single 32-bit value. The rendezvous
// file must already exist.
func Key(rendezvousPath string, projectID byte) (int, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(rendezvousPath, &st); err != nil {
		return 0, fmt.Errorf("shm: stat %s: %w", rendezvousPath, err)
	}

	dev := uint32(st.Dev) & 0xff
	ino := uint32(st.Ino) & 0xffff
	key := (uint32(projectID) << 24) | (dev << 16) | ino

	return int(key), nil
}

// OpenOrCreate implements Opener.
func (s *SysV) OpenOrCreate(rendezvousPath string, projectID byte, size int, writable bool, mode uint32) (SharedMemory, error) {
	key, err := Key(rendezvousPath, projectID)
	if err != nil {
		return nil, err
	}

	id, getErr := unix.SysvShmGet(key, size, 0)
	if getErr != nil {
		if !writable {
			return nil, ErrNotExist
		}

		id, err = unix.SysvShmGet(key, size, unix.IPC_CREAT|int(mode))
		if err != nil {
			return nil, fmt.Errorf("shm: create key=%d size=%d: %w", key, size, err)
		}
	}

	flag := 0
	if !writable {
		flag = unix.SHM_RDONLY
	}

	data, attachErr := unix.SysvShmAttach(id, 0, flag)
	if attachErr != nil {
		return nil, fmt.Errorf("shm: attach id=%d: %w", id, attachErr)
	}

	return &segment{id: id, data: data, writable: writable}, nil
}

type segment struct {
	id       int
	data     []byte
	writable bool
	removed  bool
}

func (s *segment) Size() int { return len(s.data) }

func (s *segment) ReadAt(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(s.data) {
		return nil, fmt.Errorf("shm: read out of range offset=%d length=%d size=%d", offset, length, len(s.data))
	}

	out := make([]byte, length)
	copy(out, s.data[offset:offset+length])

	return out, nil
}

func (s *segment) WriteAt(offset int, data []byte) error {
	if !s.writable {
		return fmt.Errorf("shm: write to read-only segment")
	}

	if offset < 0 || offset+len(data) > len(s.data) {
		return fmt.Errorf("shm: write out of range offset=%d length=%d size=%d", offset, len(data), len(s.data))
	}

	copy(s.data[offset:offset+len(data)], data)

	return nil
}

func (s *segment) Close() error {
	return unix.SysvShmDetach(s.data)
}

func (s *segment) Remove() error {
	if s.removed {
		return nil
	}
	s.removed = true

	_, err := unix.SysvShmCtl(s.id, unix.IPC_RMID, nil)
	detachErr := unix.SysvShmDetach(s.data)
	if err != nil {
		return fmt.Errorf("shm: rmid id=%d: %w", s.id, err)
	}

	return detachErr
}
