package object

import (
	"math"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
)

// Header is the fixed-size prologue every managed object carries: its two
// reference counters (spec §4.9 — tag_refs held by the tag index, obj_refs
// held by other objects and user code) and its storage class tag.
type Header struct {
	Class    StorageClass
	TagRefs  uint32
	ObjRefs  uint32
}

const maxRefCount = math.MaxUint32

// IncRef increments one of the two counters, returning an Internal error
// on overflow (spec: "overflow -> InternalException").
func (h *Header) IncRef(isTag bool) error {
	if isTag {
		if h.TagRefs == maxRefCount {
			return errs.New(errs.KindInternal, "object.Header.IncRef", errOverflow)
		}
		h.TagRefs++
		return nil
	}
	if h.ObjRefs == maxRefCount {
		return errs.New(errs.KindInternal, "object.Header.IncRef", errOverflow)
	}
	h.ObjRefs++
	return nil
}

// DecRef decrements one of the two counters. Decrementing below zero is an
// internal invariant violation (a double decRef), also reported as
// KindInternal.
func (h *Header) DecRef(isTag bool) error {
	if isTag {
		if h.TagRefs == 0 {
			return errs.New(errs.KindInternal, "object.Header.DecRef", errUnderflow)
		}
		h.TagRefs--
		return nil
	}
	if h.ObjRefs == 0 {
		return errs.New(errs.KindInternal, "object.Header.DecRef", errUnderflow)
	}
	h.ObjRefs--
	return nil
}

// HasRefs reports whether either counter is still nonzero — the predicate
// GC0 consults before dropping an object (spec §4.10's GC_Ops.has_refs).
func (h *Header) HasRefs() bool { return h.TagRefs > 0 || h.ObjRefs > 0 }

var (
	errOverflow  = overflowError{}
	errUnderflow = underflowError{}
)

type overflowError struct{}

func (overflowError) Error() string { return "reference count overflow" }

type underflowError struct{}

func (underflowError) Error() string { return "reference count underflow (double decRef)" }

// GCOps is the per-type vtable GC0's registry stores per live object
// (spec §4.10's GC_Ops): has_refs/drop/detach/typed_address/drop_by_addr/
// pre_commit.
type GCOps struct {
	HasRefs      func() bool
	Drop         func() error
	Detach       func() error
	TypedAddress func() memspace.Address
	DropByAddr   func(addr memspace.Address) error
	PreCommit    func() error // nil if this type defines none
}
