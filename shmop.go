// Package shmop is the public metrics logger facade: the API
// application code calls to get/set/increment metrics and record
// timings, backed by the POSIX System V shared-memory store described
// in the rest of this module.
//
// Grounded on ignite's pkg/ignite/ignite.go facade shape (functional-
// options constructor wrapping an internal engine), adapted to this
// domain's get/set/increment/timing surface.
package shmop

import (
	"fmt"
	"sync"

	"github.com/messagemedia/shmop/internal/codec"
	"github.com/messagemedia/shmop/internal/indexmgr"
	"github.com/messagemedia/shmop/internal/registry"
	"github.com/messagemedia/shmop/internal/rendezvous"
	"github.com/messagemedia/shmop/internal/rflock"
	"github.com/messagemedia/shmop/internal/segment"
	"github.com/messagemedia/shmop/internal/shm"
	"github.com/messagemedia/shmop/pkg/config"
	"github.com/messagemedia/shmop/pkg/errkind"
	"github.com/messagemedia/shmop/pkg/logger"
)

// Mode selects whether a Store may mutate its segments.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

// Option configures a Store at construction, following the functional-
// options pattern ignite's pkg/options package uses.
type Option func(*options)

type options struct {
	dir             string
	identifier      string
	metrics         []registry.Config
	version         uint32
	mode            Mode
	developmentMode bool
	log             logger.Logger
	opener          shm.Opener
}

// WithDir overrides the rendezvous-file directory (default
// rendezvous.DefaultDir).
func WithDir(dir string) Option { return func(o *options) { o.dir = dir } }

// WithIdentifier sets the rendezvous file's "{identifier}" suffix.
func WithIdentifier(id string) Option { return func(o *options) { o.identifier = id } }

// WithMetrics supplies the logical metric configs to expand.
func WithMetrics(metrics []registry.Config) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithVersion sets the configured header version.
func WithVersion(v uint32) Option { return func(o *options) { o.version = v } }

// WithMode selects ReadWrite (default) or ReadOnly.
func WithMode(m Mode) Option { return func(o *options) { o.mode = m } }

// WithDevelopmentMode enables the registry's validation pipeline.
func WithDevelopmentMode(v bool) Option { return func(o *options) { o.developmentMode = v } }

// WithLogger injects the logger every error/warning is reported to.
func WithLogger(l logger.Logger) Option { return func(o *options) { o.log = l } }

// WithOpener overrides the shm.Opener, for tests that inject shm.Fake
// instead of real System V IPC resources.
func WithOpener(o shm.Opener) Option { return func(opt *options) { opt.opener = o } }

type cacheEntry struct {
	offset int
	length int
	typ    codec.Type
}

// Store is one registered, opened metrics store. Construct with New.
type Store struct {
	mu             sync.Mutex
	log            logger.Logger
	registry       *registry.Registry
	mgr            *indexmgr.Manager
	pair           *segment.Pair
	lock           *rflock.Locker
	rendezvousPath string
	writable       bool
	localCache     map[string]cacheEntry
	hasError       bool
}

// New builds a Store: it expands the metric registry, ensures the
// rendezvous file exists (if writable), opens the segment pair sized to
// the expanded metric count, and initializes the header.
//
// On any initialization failure, the returned Store still has has_error
// latched, so callers that ignore the error still observe
// degrade-to-sentinel behavior on every operation.
func New(name string, opts ...Option) (*Store, error) {
	o := options{
		dir:     rendezvous.DefaultDir,
		version: 1,
		mode:    ReadWrite,
		opener:  shm.NewSysV(),
	}
	for _, apply := range opts {
		apply(&o)
	}

	if o.log == nil {
		zl, err := logger.NewZap()
		if err != nil {
			zl = logger.Nop{}
		}
		o.log = zl
	}

	writable := o.mode == ReadWrite
	path := rendezvous.Path(o.dir, name, o.identifier)

	s := &Store{
		log:            o.log,
		rendezvousPath: path,
		writable:       writable,
		localCache:     make(map[string]cacheEntry),
	}

	reg := registry.Expand(o.metrics, o.developmentMode, o.log)
	s.registry = reg

	if writable {
		if err := rendezvous.EnsureExists(path); err != nil {
			s.hasError = true
			s.log.Errorf("shmop: %v: %v", errkind.SegmentUnavailable, err)
			return s, fmt.Errorf("shmop: %w: %v", errkind.SegmentUnavailable, err)
		}
	}

	pair, err := segment.OpenOrCreate(o.opener, path, len(reg.Descriptors), writable)
	if err != nil {
		s.hasError = true
		s.log.Errorf("shmop: %v: %v", errkind.SegmentUnavailable, err)
		return s, fmt.Errorf("shmop: %w: %v", errkind.SegmentUnavailable, err)
	}
	s.pair = pair

	s.lock = rflock.New(path)
	s.mgr = indexmgr.New(pair, s.lock, o.version, o.log)

	if err := s.mgr.Initialize(writable); err != nil {
		s.hasError = true
		s.log.Errorf("shmop: %v: %v", errkind.SegmentUnavailable, err)
		return s, fmt.Errorf("shmop: %w: %v", errkind.SegmentUnavailable, err)
	}

	return s, nil
}

// NewFromConfig builds a Store from a JSONC config file: the file
// supplies the store name, rendezvous identifier/directory, header
// version, mode, development-mode flag, and metric list, as decoded by
// pkg/config.Load. Any opts passed here are
// applied after the file-derived options, so callers can still
// override individual settings (e.g. inject a test Opener).
func NewFromConfig(path string, opts ...Option) (*Store, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("shmop: %w: %v", errkind.ConfigInvalid, err)
	}

	mode := ReadWrite
	if !f.Writable() {
		mode = ReadOnly
	}

	fileOpts := []Option{
		WithIdentifier(f.Identifier),
		WithDir(f.Dir),
		WithMetrics(f.ToRegistryConfigs()),
		WithVersion(f.Version),
		WithMode(mode),
		WithDevelopmentMode(f.DevelopmentMode),
	}

	return New(f.Name, append(fileOpts, opts...)...)
}

// materialize returns the cache entry for name, consulting the local
// cache, then a lock-free index scan (indexmgr.Find), then (if still
// missing and writable) an exclusive-locked append.
func (s *Store) materialize(name string) (cacheEntry, bool) {
	if e, ok := s.localCache[name]; ok {
		return e, true
	}

	d, ok := s.registry.ByName(name)
	if !ok {
		return cacheEntry{}, false
	}

	entry, found, err := s.mgr.Find(d.Cluster, d.Item, d.Instance)
	if err != nil {
		s.log.Errorf("shmop: find %q: %v", name, err)
		return cacheEntry{}, false
	}

	if !found {
		if !s.writable {
			return cacheEntry{}, false
		}

		offset, err := s.mgr.Append(d.Cluster, d.Item, d.Instance, byte(d.Type), d.Type.Length())
		if err != nil {
			s.log.Warnf("shmop: append %q: %v", name, err)
			return cacheEntry{}, false
		}

		entry = indexEntryFrom(offset, d)
	}

	e := cacheEntry{offset: entry.Offset, length: entry.Length, typ: codec.Type(entry.Type)}
	s.localCache[name] = e

	return e, true
}

func indexEntryFrom(offset int, d registry.Descriptor) indexmgr.Entry {
	return indexmgr.Entry{
		Type: byte(d.Type), Length: d.Type.Length(), Offset: offset,
		Cluster: d.Cluster, Item: d.Item, Instance: d.Instance,
	}
}

// Get reads the current u32 value for name. It returns (0, false) if
// name is unknown, or if has_error has latched. A known-but-
// unmaterialized entry reads as (0, true).
func (s *Store) Get(name string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasError {
		return 0, false
	}

	if _, known := s.registry.ByName(name); !known {
		return 0, false
	}

	e, ok := s.materialize(name)
	if !ok {
		return 0, true
	}

	buf, err := s.pair.Data.ReadAt(e.offset, e.length)
	if err != nil {
		s.log.Errorf("shmop: read %q: %v", name, err)
		return 0, true
	}

	return codec.Uint32(buf, 0), true
}

// Set materializes name if absent, validates v, and writes it.
// Unregistered names are silently ignored. Read-only mode and a
// latched has_error both make Set a no-op.
func (s *Store) Set(name string, v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasError {
		return false
	}

	if !s.writable {
		s.log.Errorf("shmop: set %q: store is read-only", name)
		return false
	}

	if _, known := s.registry.ByName(name); !known {
		return false
	}

	e, ok := s.materialize(name)
	if !ok {
		return false
	}

	value := validateValue(v, s.log, name)

	buf := make([]byte, e.length)
	codec.PutUint32(buf, 0, value)

	if err := s.pair.Data.WriteAt(e.offset, buf); err != nil {
		s.log.Errorf("shmop: write %q: %v", name, err)
		return false
	}

	return true
}

// Increment is set(name, get(name)+delta); delta defaults to 1. Not
// inter-process atomic: a concurrent writer can interleave between
// the read and the write.
func (s *Store) Increment(name string, delta ...int64) bool {
	d := int64(1)
	if len(delta) > 0 {
		d = delta[0]
	}

	current, _ := s.Get(name)

	return s.Set(name, int64(current)+d)
}

// HasError reports whether the init-class has_error flag has latched.
func (s *Store) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hasError
}

// GetAllMetrics returns every expanded physical name mapped to its
// current value.
func (s *Store) GetAllMetrics() map[string]uint32 {
	out := make(map[string]uint32, len(s.registry.Descriptors))

	for _, d := range s.registry.Descriptors {
		v, _ := s.Get(d.Name)
		out[d.Name] = v
	}

	return out
}

// ClearAllMetrics sets every physical metric to 0.
func (s *Store) ClearAllMetrics() bool {
	ok := true
	for _, d := range s.registry.Descriptors {
		if !s.Set(d.Name, uint32(0)) {
			ok = false
		}
	}

	return ok
}

// DeleteSharedMemory destroys both segments and, if dropKeyFile is
// true, unlinks the rendezvous file. Idempotent.
func (s *Store) DeleteSharedMemory(dropKeyFile bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pair != nil {
		if err := s.pair.Remove(); err != nil {
			return fmt.Errorf("shmop: delete shared memory: %w", err)
		}
	}

	if dropKeyFile {
		if err := removeIfExists(s.rendezvousPath); err != nil {
			return fmt.Errorf("shmop: remove rendezvous file: %w", err)
		}
	}

	return nil
}
