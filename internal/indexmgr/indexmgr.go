// Package indexmgr owns the header record and the append-only entry
// table in the index segment. It performs versioned initialization,
// version upgrade, lookup by {cluster, item, instance}, and append
// with segment-full detection. Initialization, upgrade and append hold
// the exclusive internal/rflock lock; lookups read without a lock.
//
// Grounded on pkg/slotcache/open.go's open-create-or-fail dispatch and
// pkg/slotcache/writer.go's re-lock-and-recheck Commit pattern.
package indexmgr

import (
	"fmt"

	"github.com/messagemedia/shmop/internal/codec"
	"github.com/messagemedia/shmop/internal/rflock"
	"github.com/messagemedia/shmop/internal/segment"
	"github.com/messagemedia/shmop/pkg/errkind"
	"github.com/messagemedia/shmop/pkg/logger"
)

// Entry is the public, decoded view of one physical metric's location.
type Entry struct {
	Type     byte
	Length   int
	Offset   int
	Cluster  uint16
	Item     uint16
	Instance int32
}

// Manager coordinates reads and mutations of one index segment.
type Manager struct {
	pair    *segment.Pair
	lock    *rflock.Locker
	version uint32
	log     logger.Logger
}

// New wraps an already-open segment pair and rendezvous lock. version
// is the caller's configured header version, checked against whatever
// version is already stored in the segment.
func New(pair *segment.Pair, lock *rflock.Locker, version uint32, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop{}
	}

	return &Manager{pair: pair, lock: lock, version: version, log: log}
}

// Initialize ensures the header is set up, upgrading or validating the
// stored version. writable must be false for read-only consumers,
// which fail outright if version is still 0.
func (m *Manager) Initialize(writable bool) error {
	buf, err := m.pair.Index.ReadAt(0, headerSize)
	if err != nil {
		return fmt.Errorf("indexmgr: read header: %w", err)
	}

	h := decodeHeader(buf)
	if h.Version != 0 {
		return m.reconcileVersion(h.Version, writable)
	}

	if !writable {
		return fmt.Errorf("indexmgr: %w: index not yet initialized", errkind.SegmentUnavailable)
	}

	held, err := m.lock.Lock(0)
	if err != nil {
		return fmt.Errorf("indexmgr: %w: %v", errkind.LockTimeout, err)
	}
	defer held.Close()

	// Double-checked: another writer may have initialized while we
	// waited for the exclusive lock.
	buf, err = m.pair.Index.ReadAt(0, headerSize)
	if err != nil {
		return fmt.Errorf("indexmgr: re-read header: %w", err)
	}

	h = decodeHeader(buf)
	if h.Version != 0 {
		return m.reconcileVersion(h.Version, writable)
	}

	fresh := header{Version: m.version, NextIndexOffset: headerSize, NextDataOffset: 0}
	if err := m.pair.Index.WriteAt(0, encodeHeader(fresh)); err != nil {
		return fmt.Errorf("indexmgr: write header: %w", err)
	}

	return nil
}

// reconcileVersion applies the version-conflict policy: a newer stored
// version means operate as a reader; an older stored version is
// upgraded in place, touching nothing else.
func (m *Manager) reconcileVersion(stored uint32, writable bool) error {
	if stored == m.version {
		return nil
	}

	if stored > m.version {
		m.log.Warnf("indexmgr: stored version %d newer than configured %d, operating as reader", stored, m.version)
		return nil
	}

	if !writable {
		return nil
	}

	held, err := m.lock.Lock(0)
	if err != nil {
		return fmt.Errorf("indexmgr: %w: %v", errkind.LockTimeout, err)
	}
	defer held.Close()

	buf, err := m.pair.Index.ReadAt(0, headerSize)
	if err != nil {
		return fmt.Errorf("indexmgr: re-read header for upgrade: %w", err)
	}

	h := decodeHeader(buf)
	if h.Version >= m.version {
		return nil
	}

	newVersion := make([]byte, 4)
	codec.PutUint32(newVersion, 0, m.version)

	if err := m.pair.Index.WriteAt(offVersion, newVersion); err != nil {
		return fmt.Errorf("indexmgr: write upgraded version: %w", err)
	}

	m.log.Infof("indexmgr: upgraded stored version %d -> %d", h.Version, m.version)

	return nil
}

// readHeader re-reads the live header without a lock: bytes below a
// sampled next_index_offset are immutable after their initial write,
// so an unlocked read can never observe a torn entry.
func (m *Manager) readHeader() (header, error) {
	buf, err := m.pair.Index.ReadAt(0, headerSize)
	if err != nil {
		return header{}, fmt.Errorf("indexmgr: read header: %w", err)
	}

	return decodeHeader(buf), nil
}

// Find scans entries from offset 12 up to next_index_offset, returning
// the first triple-match. It does not hold a lock; Append repeats the
// scan itself while it holds the exclusive lock.
func (m *Manager) Find(cluster, item uint16, instance int32) (Entry, bool, error) {
	h, err := m.readHeader()
	if err != nil {
		return Entry{}, false, err
	}

	return m.scan(h, cluster, item, instance)
}

func (m *Manager) scan(h header, cluster, item uint16, instance int32) (Entry, bool, error) {
	for pos := uint32(headerSize); pos+uint32(entrySize) <= h.NextIndexOffset; pos += uint32(entrySize) {
		buf, err := m.pair.Index.ReadAt(int(pos), entrySize)
		if err != nil {
			return Entry{}, false, fmt.Errorf("indexmgr: read entry at %d: %w", pos, err)
		}

		e := decodeEntry(buf)
		if e.matches(cluster, item, instance) {
			return Entry{
				Type: e.Type, Length: int(e.Length), Offset: int(e.Offset),
				Cluster: e.Cluster, Item: e.Item, Instance: e.Instance,
			}, true, nil
		}
	}

	return Entry{}, false, nil
}

// ListEntries returns every entry currently in the index, in insertion
// order, without regard to any particular triple. Used by read-only
// consumers (e.g. cmd/shmdump) that have no registry of their own and
// simply iterate [headerSize, next_index_offset).
func (m *Manager) ListEntries() ([]Entry, error) {
	h, err := m.readHeader()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, (int(h.NextIndexOffset)-headerSize)/entrySize)

	for pos := uint32(headerSize); pos+uint32(entrySize) <= h.NextIndexOffset; pos += uint32(entrySize) {
		buf, err := m.pair.Index.ReadAt(int(pos), entrySize)
		if err != nil {
			return nil, fmt.Errorf("indexmgr: read entry at %d: %w", pos, err)
		}

		e := decodeEntry(buf)
		entries = append(entries, Entry{
			Type: e.Type, Length: int(e.Length), Offset: int(e.Offset),
			Cluster: e.Cluster, Item: e.Item, Instance: e.Instance,
		})
	}

	return entries, nil
}

// Append runs under the exclusive lock: re-scan to resolve a lost
// race, bounds-check both segments, zero the target data bytes, write
// the new entry, then advance both cursors. The version field is never
// touched here.
func (m *Manager) Append(cluster, item uint16, instance int32, typ byte, length int) (int, error) {
	held, err := m.lock.Lock(0)
	if err != nil {
		return 0, fmt.Errorf("indexmgr: %w: %v", errkind.LockTimeout, err)
	}
	defer held.Close()

	h, err := m.readHeader()
	if err != nil {
		return 0, err
	}

	if existing, ok, err := m.scan(h, cluster, item, instance); err != nil {
		return 0, err
	} else if ok {
		return existing.Offset, nil
	}

	if int(h.NextIndexOffset)+entrySize > m.pair.Index.Size() {
		return 0, fmt.Errorf("indexmgr: %w", errkind.IndexFull)
	}

	newDataOffset := h.NextDataOffset
	if int(newDataOffset)+length > m.pair.Data.Size() {
		return 0, fmt.Errorf("indexmgr: %w", errkind.DataFull)
	}

	zero := make([]byte, length)
	if err := m.pair.Data.WriteAt(int(newDataOffset), zero); err != nil {
		return 0, fmt.Errorf("indexmgr: zero new data bytes: %w", err)
	}

	newEntry := entry{
		Flags: 0, Type: typ, Length: uint16(length), Offset: newDataOffset,
		Cluster: cluster, Item: item, Instance: instance,
	}
	if err := m.pair.Index.WriteAt(int(h.NextIndexOffset), encodeEntry(newEntry)); err != nil {
		return 0, fmt.Errorf("indexmgr: write entry: %w", err)
	}

	updated := header{
		Version:         h.Version,
		NextIndexOffset: h.NextIndexOffset + uint32(entrySize),
		NextDataOffset:  newDataOffset + uint32(length),
	}

	cursors := make([]byte, 8)
	codec.PutUint32(cursors, 0, updated.NextIndexOffset)
	codec.PutUint32(cursors, 4, updated.NextDataOffset)
	if err := m.pair.Index.WriteAt(offNextIndexOffset, cursors); err != nil {
		return 0, fmt.Errorf("indexmgr: write cursors: %w", err)
	}

	return int(newDataOffset), nil
}

// HeaderSnapshot returns the current header for diagnostic/test use
// (e.g. indexmgr's own tests).
func (m *Manager) HeaderSnapshot() (uint32, uint32, uint32, error) {
	h, err := m.readHeader()
	if err != nil {
		return 0, 0, 0, err
	}

	return h.Version, h.NextIndexOffset, h.NextDataOffset, nil
}
