package fixture

import (
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/ftindex"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/object"
	"github.com/dbzero-software/dbzero-engine/internal/pager"
	"github.com/dbzero-software/dbzero-engine/internal/reslock"
)

// Snapshot is a read-only workspace-view pinned to a state number (spec
// §4.11): its MapRange refuses modify() on any v_object and always
// resolves against the pinned state, never the fixture's current one.
// The catalogue and tag index are shared (read-only) with the live
// fixture, since both are pure in-memory indexes rebuilt from committed
// state and carry no per-state history of their own — only page content
// is versioned.
type Snapshot struct {
	view      *pager.View
	catalogue *object.ObjectCatalogue
	tagIndex  *ftindex.TagIndex
}

// Snapshot pins a read-only view of f at its current committed state.
func (f *Fixture) Snapshot() *Snapshot {
	return &Snapshot{
		view:      f.prefix.Snapshot(f.prefix.CurrentState()),
		catalogue: f.catalogue,
		tagIndex:  f.tagIndex,
	}
}

// SnapshotAt pins a read-only view of f at a specific historical state.
func (f *Fixture) SnapshotAt(state uint64) *Snapshot {
	return &Snapshot{
		view:      f.prefix.Snapshot(state),
		catalogue: f.catalogue,
		tagIndex:  f.tagIndex,
	}
}

// MapRange implements vobject.Store. Write/create access is rejected by
// the underlying View before this ever reaches the page store.
func (s *Snapshot) MapRange(addr memspace.Address, size int, mode reslock.AccessMode) (reslock.Lock, error) {
	return s.view.MapRange(addr, size, mode)
}

// CurrentState implements vobject.Store, returning the pinned state.
func (s *Snapshot) CurrentState() uint64 { return s.view.CurrentState() }

// Catalogue returns the shared (read-only from here) resource catalogue.
func (s *Snapshot) Catalogue() *object.ObjectCatalogue { return s.catalogue }

// TagIndex returns the shared (read-only from here) tag index.
func (s *Snapshot) TagIndex() *ftindex.TagIndex { return s.tagIndex }

// Commit always fails on a snapshot — present so callers that generically
// hold either a *Fixture or a *Snapshot get a clear error instead of a nil
// dereference if they mistakenly try to mutate a historical view.
func (s *Snapshot) Commit() (uint64, error) {
	return 0, errs.New(errs.KindInput, "fixture.Snapshot.Commit", errReadOnly)
}

var errReadOnly = readOnlyError{}

type readOnlyError struct{}

func (readOnlyError) Error() string { return "snapshot is read-only" }
