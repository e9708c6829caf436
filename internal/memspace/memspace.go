package memspace

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
)

// Memspace bundles a page store, an allocator, and a UUID into the virtual
// address space v-objects are written against (spec §3/§4.3: "tuple
// (prefix, allocator, uuid)"). Addresses returned by Alloc are logical
// within the owning prefix.
type Memspace struct {
	UUID  uuid.UUID
	store PageSource
	slabs *SlabAllocator

	// nextInstanceID hands out short CoW-instance ids for transaction-
	// private addresses. 0 is reserved for plain addresses.
	nextInstanceID atomic.Uint32
}

// New creates a Memspace over src, with a fresh UUID identity and the
// default slab size.
func New(src PageSource, slabSize int64) *Memspace {
	return &Memspace{
		UUID:  uuid.New(),
		store: src,
		slabs: NewSlabAllocator(src, slabSize),
	}
}

// Alloc reserves n bytes for a new v-object and returns its plain (non-CoW)
// logical address.
func (m *Memspace) Alloc(n int) (Address, error) {
	off, _, err := m.slabs.Alloc(n)
	if err != nil {
		return 0, err
	}
	return NewAddress(off, PlainInstanceID)
}

// Free releases the n-byte range at addr (addr must be a plain address;
// CoW-private copies are reclaimed by GC0 once merged or discarded).
func (m *Memspace) Free(addr Address, n int) error {
	if !addr.IsPlain() {
		return errs.New(errs.KindInternal, "memspace.Memspace.Free", errs.ErrDoubleFree)
	}
	class, ok := ClassForSize(n)
	if !ok {
		return errs.Newf(errs.KindInput, "memspace.Memspace.Free", "size %d exceeds largest slot class", n)
	}
	return m.slabs.Free(addr.Offset(), class)
}

// NextInstanceID allocates a new short CoW-instance id for a transaction-
// private address copy, returning a fatal Internal error if the 14-bit
// space is exhausted — spec §9's open question on instance-id
// exhaustion, resolved as a fatal Internal error (see SPEC_FULL.md §4.6).
// A future revision could rotate to a fresh slab and recycle ids that have
// been merged back to their plain address, but no such policy is specified
// today; see the TODO in Reclaim.
func (m *Memspace) NextInstanceID() (uint16, error) {
	id := m.nextInstanceID.Add(1)
	if uint64(id) >= maxInstanceID {
		return 0, errs.New(errs.KindInternal, "memspace.Memspace.NextInstanceID", errs.ErrInstanceIDExhausted)
	}
	return uint16(id), nil
}

// Reclaim returns an instance id to the free pool once its CoW-private
// address has been merged back into the plain address space.
//
// TODO(memspace): no instance-id recycling policy exists yet; ids only
// ever increase. A bounded engine needs this before it can run a
// long-lived prefix through many transactions without exhausting the
// 14-bit space.
func (m *Memspace) Reclaim(id uint16) {
	_ = id
}

// Stats exposes slab occupancy for the inspector CLI.
func (m *Memspace) Stats() map[int]struct{ Slabs, Used, Capacity int } {
	return m.slabs.Stats()
}
