// Package gc0 implements the tri-phase collector from spec §4.10: a
// per-fixture registry of live v-object instances, deterministic
// (non-concurrent) zero-ref collection, and a pre-commit hook that runs a
// per-type callback before the owning fixture flushes. Grounded on spec
// §4.10's prose directly — no teacher or pack file implements a reference-
// counting collector, since tinySQL has no comparable object graph.
package gc0

import (
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/object"
)

// Registry is the GC0 instance owned by a fixture: a map of every live
// v-object's address to its type's GCOps vtable, plus a queue of
// addresses pending drop_by_addr because their owning instance was
// already destroyed with refs at zero.
type Registry struct {
	live  map[memspace.Address]object.GCOps
	queue []memspace.Address
	order []memspace.Address // insertion order, for deterministic Collect scans
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{live: map[memspace.Address]object.GCOps{}}
}

// Add registers a live instance's address and GCOps vtable (spec's
// add<T>(self)).
func (r *Registry) Add(addr memspace.Address, ops object.GCOps) {
	if _, exists := r.live[addr]; !exists {
		r.order = append(r.order, addr)
	}
	r.live[addr] = ops
}

// Remove unregisters an instance on destruction; if it has no remaining
// references, its address is queued for drop_by_addr (spec's remove(self)).
func (r *Registry) Remove(addr memspace.Address) error {
	ops, ok := r.live[addr]
	if !ok {
		return errs.Newf(errs.KindInternal, "gc0.Remove", "address %v not registered", addr)
	}
	delete(r.live, addr)
	if ops.HasRefs == nil || !ops.HasRefs() {
		r.queue = append(r.queue, addr)
	}
	return nil
}

// Collect runs deterministically over the registry and the drop queue,
// dropping every zero-ref object; dropping one object may decrement
// others' refs and surface new zero-ref candidates, so this loops until a
// full pass finds nothing new to drop (spec's "may discover cascades").
func (r *Registry) Collect() error {
	for {
		progressed := false
		pending := r.queue
		r.queue = nil
		for _, addr := range pending {
			ops, stillLive := r.live[addr]
			if stillLive {
				if ops.HasRefs != nil && ops.HasRefs() {
					continue
				}
				if ops.Drop != nil {
					if err := ops.Drop(); err != nil {
						return err
					}
				}
				delete(r.live, addr)
				progressed = true
				continue
			}
			// Already removed from live; a short-lived handle does the drop.
			if err := r.dropDetached(addr); err != nil {
				return err
			}
			progressed = true
		}
		// Re-scan remaining live entries for newly-zero refs.
		for _, addr := range r.order {
			ops, ok := r.live[addr]
			if !ok {
				continue
			}
			if ops.HasRefs != nil && !ops.HasRefs() {
				if ops.Drop != nil {
					if err := ops.Drop(); err != nil {
						return err
					}
				}
				delete(r.live, addr)
				progressed = true
			}
		}
		if !progressed {
			return nil
		}
	}
}

// dropDetached opens a short-lived instance to destroy an address whose
// owning handle was already detached (spec: "opens a short-lived instance
// and destroys it"). Requires some still-live GCOps to supply DropByAddr,
// since the registry itself has no type knowledge once an entry is gone;
// callers register a DropByAddr on at least one representative GCOps per
// type for this path.
func (r *Registry) dropDetached(addr memspace.Address) error {
	for _, ops := range r.live {
		if ops.TypedAddress != nil && ops.TypedAddress() == addr && ops.DropByAddr != nil {
			return ops.DropByAddr(addr)
		}
	}
	return nil
}

// PreCommit runs every registered type's pre-commit callback before the
// owning fixture flushes (spec's pre_commit()).
func (r *Registry) PreCommit() error {
	for _, addr := range r.order {
		ops, ok := r.live[addr]
		if !ok || ops.PreCommit == nil {
			continue
		}
		if err := ops.PreCommit(); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of currently-registered live instances.
func (r *Registry) Len() int { return len(r.live) }
