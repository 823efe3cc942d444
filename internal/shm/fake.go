package shm

import "fmt"

// Fake is an in-memory Opener used by tests that exercise internal/segment
// and internal/indexmgr without touching real System V IPC resources.
type Fake struct {
	segments map[string][]byte
}

// NewFake returns an empty Fake.
func NewFake() *Fake { return &Fake{segments: make(map[string][]byte)} }

func fakeKey(rendezvousPath string, projectID byte) string {
	return fmt.Sprintf("%s:%c", rendezvousPath, projectID)
}

// OpenOrCreate implements Opener against an in-process map.
func (f *Fake) OpenOrCreate(rendezvousPath string, projectID byte, size int, writable bool, mode uint32) (SharedMemory, error) {
	key := fakeKey(rendezvousPath, projectID)

	data, ok := f.segments[key]
	if !ok {
		if !writable {
			return nil, ErrNotExist
		}
		data = make([]byte, size)
		f.segments[key] = data
	}

	return &fakeSegment{store: f, key: key, writable: writable}, nil
}

type fakeSegment struct {
	store    *Fake
	key      string
	writable bool
}

func (s *fakeSegment) data() []byte { return s.store.segments[s.key] }

func (s *fakeSegment) Size() int { return len(s.data()) }

func (s *fakeSegment) ReadAt(offset, length int) ([]byte, error) {
	d := s.data()
	if offset < 0 || length < 0 || offset+length > len(d) {
		return nil, fmt.Errorf("shm: fake read out of range offset=%d length=%d size=%d", offset, length, len(d))
	}

	out := make([]byte, length)
	copy(out, d[offset:offset+length])

	return out, nil
}

func (s *fakeSegment) WriteAt(offset int, in []byte) error {
	if !s.writable {
		return fmt.Errorf("shm: fake write to read-only segment")
	}

	d := s.data()
	if offset < 0 || offset+len(in) > len(d) {
		return fmt.Errorf("shm: fake write out of range offset=%d length=%d size=%d", offset, len(in), len(d))
	}

	copy(d[offset:offset+len(in)], in)

	return nil
}

func (s *fakeSegment) Close() error { return nil }

func (s *fakeSegment) Remove() error {
	delete(s.store.segments, s.key)
	return nil
}
