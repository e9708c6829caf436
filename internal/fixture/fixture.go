// Package fixture implements the per-prefix transactional context, the
// named-fixture workspace, and read-only snapshots from spec §4.11.
// Grounded on spec §4.11's prose directly (tinySQL has no equivalent
// composition root; its closest analogue, storage.Engine, wires a single
// pager + buffer pool + catalog without GC0/tag-index/ref-counting
// concerns, so only the "one composition root per storage unit" shape is
// borrowed from it).
package fixture

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dbzero-software/dbzero-engine/internal/config"
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/ftindex"
	"github.com/dbzero-software/dbzero-engine/internal/gc0"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/object"
	"github.com/dbzero-software/dbzero-engine/internal/pager"
	"github.com/dbzero-software/dbzero-engine/internal/reslock"
)

// Fixture is the per-prefix transactional context (spec §4.11): composes
// a Prefix, its Memspace allocator, the GC0 registry, the tag index, and
// a resource catalogue (type-name -> address singleton registry). It
// implements object.RefCounter so container wrappers (internal/object)
// can maintain their children's reference counts without importing this
// package, avoiding an import cycle.
type Fixture struct {
	mu sync.Mutex

	prefix    *pager.Prefix
	mem       *memspace.Memspace
	catalogue *object.ObjectCatalogue
	tagIndex  *ftindex.TagIndex
	gc        *gc0.Registry
	log       *zap.Logger

	// headers tracks every live managed object's ref-counted header by its
	// logical address; object bodies themselves are kept by their own
	// container wrapper, per the simplification documented in
	// DESIGN.md's internal/object entry.
	headers map[memspace.Address]*object.Header
	dirty   map[uint64]struct{} // pages touched for write this transaction
}

// Open creates a Fixture over an already-open Prefix. The caller runs the
// pluggable initializer afterward (RegisterClass/RegisterSingleton calls)
// appropriate to a new vs. existing prefix — spec §4.11's "registers core
// singletons: ClassFactory, FT_BaseIndex, TagIndex, GC0".
func Open(prefix *pager.Prefix, cfg config.Config, log *zap.Logger) *Fixture {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fixture{
		prefix:    prefix,
		mem:       memspace.New(prefix, cfg.SlabSize),
		catalogue: object.NewObjectCatalogue(),
		tagIndex:  ftindex.NewTagIndex(),
		gc:        gc0.New(),
		log:       log.Named("fixture"),
		headers:   make(map[memspace.Address]*object.Header),
		dirty:     make(map[uint64]struct{}),
	}
	return f
}

// Memspace returns the fixture's allocator.
func (f *Fixture) Memspace() *memspace.Memspace { return f.mem }

// Catalogue returns the fixture's type/singleton registry.
func (f *Fixture) Catalogue() *object.ObjectCatalogue { return f.catalogue }

// TagIndex returns the fixture's tag index.
func (f *Fixture) TagIndex() *ftindex.TagIndex { return f.tagIndex }

// GC returns the fixture's GC0 registry.
func (f *Fixture) GC() *gc0.Registry { return f.gc }

// Prefix returns the underlying storage substrate, for callers that need
// direct access (e.g. the inspector CLI).
func (f *Fixture) Prefix() *pager.Prefix { return f.prefix }

// RegisterObject tracks a newly-constructed managed object's header and
// registers it with GC0 under ops, wiring together §4.9's ref-counting
// contract and §4.10's collector.
func (f *Fixture) RegisterObject(addr memspace.Address, header *object.Header, ops object.GCOps) {
	f.mu.Lock()
	f.headers[addr] = header
	f.mu.Unlock()
	f.gc.Add(addr, ops)
}

// UnregisterObject drops bookkeeping for addr once GC0 has dropped it.
func (f *Fixture) UnregisterObject(addr memspace.Address) {
	f.mu.Lock()
	delete(f.headers, addr)
	f.mu.Unlock()
}

// IncRef implements object.RefCounter.
func (f *Fixture) IncRef(addr memspace.Address, isTag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.headers[addr]
	if !ok {
		return errs.Newf(errs.KindKeyNotFound, "fixture.Fixture.IncRef", "no header registered for address %v", addr)
	}
	return h.IncRef(isTag)
}

// DecRef implements object.RefCounter. When both counters reach zero it
// queues the object with GC0 and runs a collection pass (spec §4.9: "When
// both counts reach zero, GC0 schedules destruction").
func (f *Fixture) DecRef(addr memspace.Address, isTag bool) error {
	f.mu.Lock()
	h, ok := f.headers[addr]
	if !ok {
		f.mu.Unlock()
		return errs.Newf(errs.KindKeyNotFound, "fixture.Fixture.DecRef", "no header registered for address %v", addr)
	}
	if err := h.DecRef(isTag); err != nil {
		f.mu.Unlock()
		return err
	}
	zero := !h.HasRefs()
	f.mu.Unlock()
	if !zero {
		return nil
	}
	if err := f.gc.Remove(addr); err != nil {
		return err
	}
	return f.gc.Collect()
}

// MapRange implements vobject.Store, delegating to the underlying Prefix
// and recording the touched page(s) for the next Commit's change-log
// entry.
func (f *Fixture) MapRange(addr memspace.Address, size int, mode reslock.AccessMode) (reslock.Lock, error) {
	lock, err := f.prefix.MapRange(addr, size, mode)
	if err != nil {
		return nil, err
	}
	if mode.Has(reslock.AccessWrite) || mode.Has(reslock.AccessCreate) {
		pageNum, inPage := addr.PageOffset(f.prefix.PageSize())
		f.mu.Lock()
		f.dirty[pageNum] = struct{}{}
		if inPage+size > f.prefix.PageSize() {
			f.dirty[pageNum+1] = struct{}{}
		}
		f.mu.Unlock()
	}
	return lock, nil
}

// CurrentState implements vobject.Store.
func (f *Fixture) CurrentState() uint64 { return f.prefix.CurrentState() }

// BeginAtomic starts a nested transaction section (spec §4.1).
func (f *Fixture) BeginAtomic() { f.prefix.BeginAtomic() }

// EndAtomic closes the current nested section.
func (f *Fixture) EndAtomic(commit bool) error { return f.prefix.EndAtomic(commit) }

// Commit runs GC0's pre-commit hooks, then publishes every page touched
// for write since the last commit as one change-log entry (spec §4.1's
// commit() contract). Callers must have already Detach()ed (and thereby
// Flush()ed) every write handle they opened; Commit itself only records
// the change-log entry and bumps the state number, since individual
// locks flush themselves.
func (f *Fixture) Commit() (uint64, error) {
	if err := f.gc.PreCommit(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	pages := make([]uint64, 0, len(f.dirty))
	for pn := range f.dirty {
		pages = append(pages, pn)
	}
	f.dirty = make(map[uint64]struct{})
	f.mu.Unlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return f.prefix.Commit(pages)
}

// Refresh re-reads the superblock, observing commits from sibling
// fixtures sharing a Workspace or another process.
func (f *Fixture) Refresh() (uint64, error) { return f.prefix.Refresh() }

// Close releases the underlying Prefix's file handles.
func (f *Fixture) Close() error { return f.prefix.Close() }
