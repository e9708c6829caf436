package memspace

import "github.com/dbzero-software/dbzero-engine/internal/errs"

// SlotAllocator hands out fixed-size byte ranges within one slab (a
// contiguous run of pages), addressed as byte offsets from the slab's base
// offset. Used for small, fixed-width v-objects (e.g. a single-class
// object header) where slicing a byte-granular range out of a page would
// otherwise waste a boundary lock per allocation.
type SlotAllocator struct {
	base     uint64 // memspace byte offset where this slab begins
	slotSize int
	bitset   *BitsetAllocator
}

// NewSlotAllocator creates a SlotAllocator over a slab of slabBytes bytes
// starting at base, divided into fixed slotSize slots.
func NewSlotAllocator(base uint64, slabBytes int64, slotSize int) *SlotAllocator {
	capacity := int(slabBytes) / slotSize
	return &SlotAllocator{base: base, slotSize: slotSize, bitset: NewBitsetAllocator(capacity)}
}

// Alloc reserves one slot and returns its absolute memspace byte offset.
func (s *SlotAllocator) Alloc() (uint64, error) {
	idx, ok := s.bitset.Alloc()
	if !ok {
		return 0, errs.New(errs.KindOutOfDiskSpace, "memspace.SlotAllocator.Alloc", nil)
	}
	return s.base + uint64(idx*s.slotSize), nil
}

// Free releases the slot at the given absolute offset. Returns an Internal
// error if the offset does not correspond to a currently-occupied slot of
// this allocator's slab (a double free, spec's ErrDoubleFree).
func (s *SlotAllocator) Free(offset uint64) error {
	if offset < s.base {
		return errs.New(errs.KindInternal, "memspace.SlotAllocator.Free", errs.ErrDoubleFree)
	}
	rel := offset - s.base
	if rel%uint64(s.slotSize) != 0 {
		return errs.New(errs.KindInternal, "memspace.SlotAllocator.Free", errs.ErrDoubleFree)
	}
	idx := int(rel / uint64(s.slotSize))
	if idx >= s.bitset.Capacity() || !s.bitset.IsSet(idx) {
		return errs.New(errs.KindInternal, "memspace.SlotAllocator.Free", errs.ErrDoubleFree)
	}
	s.bitset.Free(idx)
	return nil
}

// Full reports whether every slot in this slab is occupied.
func (s *SlotAllocator) Full() bool { return s.bitset.Full() }

// SlotSize returns the fixed slot width this allocator hands out.
func (s *SlotAllocator) SlotSize() int { return s.slotSize }

// Base returns the memspace byte offset this slab begins at.
func (s *SlotAllocator) Base() uint64 { return s.base }
