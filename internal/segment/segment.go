// Package segment wraps the index and data shared-memory segments that
// back one metrics store, identified by a common rendezvous file and
// the project bytes 'i' and 'd'.
package segment

import (
	"fmt"

	"github.com/messagemedia/shmop/internal/shm"
)

// PageSize is the allocation granularity for both segments.
const PageSize = 4096

// SharedMemoryMode is the permission bits used when creating a segment.
const SharedMemoryMode = 0o644

const (
	indexProjectID byte = 'i'
	dataProjectID  byte = 'd'
)

// entrySize is the on-wire size of one index entry.
const entrySize = 16

// headerSize is the on-wire size of the index header.
const headerSize = 12

// IndexPages returns the number of PageSize pages needed for the index
// segment to hold nPhysical entries with 4x headroom for future growth.
func IndexPages(nPhysical int) int {
	bytes := headerSize + 4*nPhysical*entrySize
	return ceilDiv(bytes, PageSize)
}

// DataPages returns the number of PageSize pages needed for the data
// segment to hold nPhysical 4-byte slots with 4x headroom.
func DataPages(nPhysical int) int {
	bytes := 4 * 4 * nPhysical
	return ceilDiv(bytes, PageSize)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

// Pair is the open index+data segment pair for one metrics store.
type Pair struct {
	Index shm.SharedMemory
	Data  shm.SharedMemory
}

// OpenOrCreate derives keys from rendezvousPath and opens (or, if
// writable, creates) both segments. In read-only mode a missing segment
// is an error; otherwise it is created with SharedMemoryMode and sized
// from nPhysical.
func OpenOrCreate(opener shm.Opener, rendezvousPath string, nPhysical int, writable bool) (*Pair, error) {
	indexSize := IndexPages(nPhysical) * PageSize
	dataSize := DataPages(nPhysical) * PageSize

	index, err := opener.OpenOrCreate(rendezvousPath, indexProjectID, indexSize, writable, SharedMemoryMode)
	if err != nil {
		return nil, fmt.Errorf("segment: open index: %w", err)
	}

	data, err := opener.OpenOrCreate(rendezvousPath, dataProjectID, dataSize, writable, SharedMemoryMode)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("segment: open data: %w", err)
	}

	return &Pair{Index: index, Data: data}, nil
}

// Close detaches both segments. It does not destroy them.
func (p *Pair) Close() error {
	indexErr := p.Index.Close()
	dataErr := p.Data.Close()

	if indexErr != nil {
		return indexErr
	}

	return dataErr
}

// Remove destroys both segments (IPC_RMID) and detaches them. Used only
// by the facade's delete_shared_memory operation.
func (p *Pair) Remove() error {
	indexErr := p.Index.Remove()
	dataErr := p.Data.Remove()

	if indexErr != nil {
		return indexErr
	}

	return dataErr
}
