// Package vobject implements the v-object runtime handle (spec §4.5): a
// reference-counted handle onto a variable-length record overlaid on
// memspace bytes, plus the Layout contract every overlaid type implements.
// Grounded on the teacher's row_codec.go (placement-encode a row into a
// caller-owned buffer, decode without trusting an untrusted embedded
// length) generalized from SQL rows to arbitrary overlaid layouts.
package vobject

import (
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/reslock"
)

// Layout is the contract every overlaid type implements: a layout, not a
// class, over raw bytes (spec §4.5).
type Layout interface {
	// Measure returns the byte size this layout occupies for the given
	// construction arguments.
	Measure(args any) (int, error)
	// New placement-constructs the layout into buf (caller-owned, at least
	// Measure(args) bytes), optionally recursing into nested layouts.
	New(buf []byte, args any) error
	// SafeSizeOf walks the on-disk representation to recover its true size
	// without trusting any single embedded length field alone.
	SafeSizeOf(buf []byte) (int, error)
}

// Store is the narrow interface vobject needs from a memspace-backed
// prefix: mapping an address to a lock, and reporting the current state.
type Store interface {
	MapRange(addr memspace.Address, size int, mode reslock.AccessMode) (reslock.Lock, error)
	CurrentState() uint64
}

// Handle is the runtime v_object<T>: (memspace_ref, address, MemLock),
// spec §4.5. Handles are cheap to copy — the underlying Lock is shared,
// not duplicated; Open and Detach do not change reslock's owner count.
type Handle struct {
	store   Store
	addr    memspace.Address
	size    int
	lock    reslock.Lock
	writeOK bool // AccessWrite declared at construction
}

// Open maps addr for reading (and optionally writing) and returns a Handle.
// size must be the layout's measured byte length.
func Open(store Store, addr memspace.Address, size int, write bool) (*Handle, error) {
	mode := reslock.AccessRead
	if write {
		mode |= reslock.AccessWrite
	}
	lock, err := store.MapRange(addr, size, mode)
	if err != nil {
		return nil, err
	}
	return &Handle{store: store, addr: addr, size: size, lock: lock, writeOK: write}, nil
}

// Bytes returns the read-only view of the overlaid record.
func (h *Handle) Bytes() []byte { return h.lock.Bytes() }

// Address returns the handle's logical address, valid even after Detach.
func (h *Handle) Address() memspace.Address { return h.addr }

// Modify marks the record DIRTY and returns a mutable view. Fails if the
// handle was opened without write access.
func (h *Handle) Modify() ([]byte, error) {
	if !h.writeOK {
		return nil, errs.New(errs.KindInput, "vobject.Handle.Modify", errs.ErrWriteNotDeclared)
	}
	return h.lock.Modify()
}

// Commit clears the write-available flag after the caller has finished
// mutating — a no-op on the underlying lock beyond bookkeeping, since the
// actual flush happens at the owning fixture's commit boundary.
func (h *Handle) Commit() { h.writeOK = false }

// Detach releases the MemLock; the address remains valid and can be
// re-opened later by passing Address() to Open.
func (h *Handle) Detach() error {
	err := h.lock.Flush()
	h.lock = nil
	return err
}
