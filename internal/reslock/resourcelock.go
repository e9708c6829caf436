// Package reslock implements the resource and boundary locks from spec §4.2:
// a page-sized shared buffer with a dirty flag, copy-on-write promotion to a
// new state, and boundary locks that straddle two page frames. Adapted from
// the teacher's bufferpool.PageFrame (pin count + dirty flag) generalized to
// the read-only-write-once (ROWO) construction contract spec.md §4.2
// requires, and grounded on the original source's BaseLock/ResourceLock.cpp.
package reslock

import (
	"sync"
	"sync/atomic"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
)

// PageNum and StateNum mirror the pager package's types without importing
// it, keeping reslock free of a dependency on the storage substrate; pager
// satisfies PageStore.
type PageNum = uint64
type StateNum = uint64

// AccessMode is the flag set passed to mapRange (spec §4.1).
type AccessMode uint8

const (
	AccessRead AccessMode = 1 << iota
	AccessWrite
	AccessCreate
	AccessNoFlush
	AccessNoCache
	AccessRely
)

func (m AccessMode) Has(f AccessMode) bool { return m&f != 0 }

// PageStore is the storage substrate a lock reads from and writes to. The
// pager.Prefix type implements this interface.
type PageStore interface {
	ReadPage(num PageNum, state StateNum) ([]byte, error)
	WritePage(num PageNum, state StateNum, buf []byte) error
	PageSize() int
}

// Lock is the common contract shared by ResourceLock and BoundaryLock.
type Lock interface {
	// Bytes returns the current read view of the lock's buffer.
	Bytes() []byte
	// Modify returns a mutable view and marks the lock dirty. It fails with
	// an Input error if AccessWrite was not declared at construction —
	// resolving spec §9's open question in favor of requiring explicit
	// write promotion.
	Modify() ([]byte, error)
	// Flush writes the buffer back to storage if dirty, then clears dirty.
	// Flush is idempotent.
	Flush() error
	IsDirty() bool
	StateNum() StateNum
	// UpdateStateNum performs CoW promotion to a new transaction: requires
	// the lock be clean and state' > current state.
	UpdateStateNum(state StateNum) error
}

// resourceFlags bits, matching BaseLock's atomic flag word.
const (
	flagDirty uint32 = 1 << iota
	flagRecycled
	flagLocked // ROWO construction in progress
)

// ResourceLock is a page-sized buffer pinned to a single page at a given
// state number.
type ResourceLock struct {
	store   PageStore
	page    PageNum
	access  AccessMode
	state   atomic.Uint64
	flags   atomic.Uint32
	data    []byte
	rowo    sync.Mutex // serializes Flush
	owners  atomic.Int32
}

// NewResourceLock constructs a lock over a single page and, if AccessRead is
// set, synchronously loads the page at readState (the ROWO contract: the
// constructing goroutine performs the read; concurrent constructors of the
// *same* Go value never race since construction happens before any handle
// is shared — concurrent callers instead share the cache's already-built
// lock, see package cache).
func NewResourceLock(store PageStore, page PageNum, access AccessMode, state StateNum, create bool) (*ResourceLock, error) {
	rl := &ResourceLock{store: store, page: page, access: access}
	rl.state.Store(state)
	if create {
		rl.data = make([]byte, store.PageSize())
		return rl, nil
	}
	if access.Has(AccessRead) {
		buf, err := store.ReadPage(page, state)
		if err != nil {
			return nil, errs.New(errs.KindIO, "reslock.NewResourceLock", err)
		}
		rl.data = buf
	} else {
		rl.data = make([]byte, store.PageSize())
	}
	return rl, nil
}

// PromoteCoW builds a new writable ResourceLock as the copy-on-write child
// of other, at writeState (spec: "writable private copy for current
// transaction at state S+1; the latter is the CoW of the former on first
// write").
func PromoteCoW(other *ResourceLock, writeState StateNum) *ResourceLock {
	cp := make([]byte, len(other.data))
	copy(cp, other.Bytes())
	rl := &ResourceLock{store: other.store, page: other.page, access: other.access | AccessWrite, data: cp}
	rl.state.Store(writeState)
	rl.flags.Store(flagDirty)
	return rl
}

// Bytes returns the current buffer contents (read view).
func (rl *ResourceLock) Bytes() []byte { return rl.data }

// Page returns the underlying page number.
func (rl *ResourceLock) Page() PageNum { return rl.page }

// Modify returns a mutable view and sets the dirty flag via a CAS loop.
func (rl *ResourceLock) Modify() ([]byte, error) {
	if !rl.access.Has(AccessWrite) {
		return nil, errs.New(errs.KindInput, "reslock.ResourceLock.Modify", errs.ErrWriteNotDeclared)
	}
	for {
		old := rl.flags.Load()
		if old&flagDirty != 0 {
			break
		}
		if rl.flags.CompareAndSwap(old, old|flagDirty) {
			break
		}
	}
	return rl.data, nil
}

// IsDirty reports whether the buffer has unflushed writes.
func (rl *ResourceLock) IsDirty() bool { return rl.flags.Load()&flagDirty != 0 }

// IsRecycled reports whether the cache has marked this lock for eviction.
func (rl *ResourceLock) IsRecycled() bool { return rl.flags.Load()&flagRecycled != 0 }

// SetRecycled toggles the recycled flag (owned by package cache).
func (rl *ResourceLock) SetRecycled(v bool) {
	for {
		old := rl.flags.Load()
		var next uint32
		if v {
			next = old | flagRecycled
		} else {
			next = old &^ flagRecycled
		}
		if rl.flags.CompareAndSwap(old, next) {
			return
		}
	}
}

// StateNum returns the state this lock's buffer was written at (or will be
// written at, if dirty).
func (rl *ResourceLock) StateNum() StateNum { return rl.state.Load() }

// Flush writes the buffer back to storage if dirty and clears the flag.
// Idempotent: a second call on a clean lock is a no-op.
func (rl *ResourceLock) Flush() error {
	rl.rowo.Lock()
	defer rl.rowo.Unlock()
	if !rl.IsDirty() || rl.access.Has(AccessNoFlush) {
		return nil
	}
	if err := rl.store.WritePage(rl.page, rl.StateNum(), rl.data); err != nil {
		return errs.New(errs.KindIO, "reslock.ResourceLock.Flush", err)
	}
	rl.flags.Store(rl.flags.Load() &^ flagDirty)
	return nil
}

// UpdateStateNum performs CoW promotion to a new transaction's state. It
// requires the lock be clean (spec §4.2); the new state becomes dirty so a
// subsequent Flush re-writes it.
func (rl *ResourceLock) UpdateStateNum(state StateNum) error {
	if rl.IsDirty() {
		return errs.New(errs.KindInternal, "reslock.ResourceLock.UpdateStateNum", errs.ErrNotDirty)
	}
	if state <= rl.StateNum() {
		return errs.Newf(errs.KindInternal, "reslock.ResourceLock.UpdateStateNum",
			"new state %d must exceed current state %d", state, rl.StateNum())
	}
	rl.state.Store(state)
	rl.flags.Store(rl.flags.Load() | flagDirty)
	return nil
}

// Merge applies the "merge(final_state_num)" contract used after a nested
// atomic section commits: the lock's provisional state (final+1) collapses
// back to final.
func (rl *ResourceLock) Merge(final StateNum) error {
	if rl.StateNum() != final+1 {
		return errs.Newf(errs.KindInternal, "reslock.ResourceLock.Merge",
			"expected provisional state %d, got %d", final+1, rl.StateNum())
	}
	rl.state.Store(final)
	return nil
}

// IncOwner/DecOwner track the live-handle count used by the recycler to
// decide eligibility for eviction (owning count == 0 and clean).
func (rl *ResourceLock) IncOwner() { rl.owners.Add(1) }
func (rl *ResourceLock) DecOwner() { rl.owners.Add(-1) }
func (rl *ResourceLock) Owners() int32 { return rl.owners.Load() }

// Evictable reports whether this lock may be recycled: unowned and clean.
func (rl *ResourceLock) Evictable() bool {
	return rl.Owners() <= 0 && !rl.IsDirty()
}
