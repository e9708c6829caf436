package object

import "github.com/dbzero-software/dbzero-engine/internal/errs"

// slot is one attribute value: its storage class tag plus a raw payload.
// Interpretation of Raw depends on Class (an 8-byte little-endian integer
// for Int64/UInt64/Address, the bit pattern of a float64 for Float64, an
// index into a string pool for String).
type slot struct {
	class StorageClass
	raw   uint64
}

// PosVT (Positional Value Table, spec §4.9) is the compact attribute
// header at the top of every Object: a dense prefix of the first K
// attribute slots, each storage-class-tagged, stored inline; a sparse tail
// beyond K is kept in a sparse map (index -> (class, value)) so large
// attribute ranges don't force every object to carry K slots' worth of
// header.
type PosVT struct {
	dense  []slot          // first K slots, always present (class may be Undefined)
	sparse map[int]slot    // index >= K -> value, only for attributes actually set
	k      int
}

// NewPosVT creates a PosVT with a dense prefix of k slots.
func NewPosVT(k int) *PosVT {
	return &PosVT{dense: make([]slot, k), k: k}
}

// Set stores value at idx, routing to the dense prefix or sparse tail.
func (p *PosVT) Set(idx int, class StorageClass, raw uint64) error {
	if idx < 0 {
		return errs.Newf(errs.KindInput, "object.PosVT.Set", "negative attribute index %d", idx)
	}
	if idx < p.k {
		p.dense[idx] = slot{class: class, raw: raw}
		return nil
	}
	if p.sparse == nil {
		p.sparse = make(map[int]slot)
	}
	p.sparse[idx] = slot{class: class, raw: raw}
	return nil
}

// Get retrieves the value at idx. ok is false if idx has never been set
// (class Undefined in the dense range counts as unset).
func (p *PosVT) Get(idx int) (class StorageClass, raw uint64, ok bool) {
	if idx < 0 {
		return ClassUndefined, 0, false
	}
	if idx < p.k {
		s := p.dense[idx]
		return s.class, s.raw, s.class != ClassUndefined
	}
	s, found := p.sparse[idx]
	return s.class, s.raw, found
}

// Unset clears idx, removing it from the sparse tail entirely (saving
// space) or resetting its dense slot to Undefined.
func (p *PosVT) Unset(idx int) {
	if idx < 0 {
		return
	}
	if idx < p.k {
		p.dense[idx] = slot{}
		return
	}
	delete(p.sparse, idx)
}

// DensePrefixLen returns K, the number of always-present dense slots.
func (p *PosVT) DensePrefixLen() int { return p.k }

// SparseLen returns the number of sparse-tail attributes currently set.
func (p *PosVT) SparseLen() int { return len(p.sparse) }
