package memspace

import (
	"sync"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
)

// PageSource supplies the contiguous page runs a SlabAllocator carves
// slots out of. pager.Prefix implements this via AllocContiguousPages.
type PageSource interface {
	AllocContiguousPages(n int) (firstPage uint64)
	PageSize() int
}

// SlabAllocator is the central size-class allocator (spec §4.3): one
// SlotAllocator per size class, grown lazily by requesting a fresh slab
// from the PageSource whenever the current slab for a class fills up.
// Grounded on cloudfly-readgo's mcentral.go (MCentral: one free list per
// size class, grown by requesting spans from the page heap) translated
// from a free-list-of-objects model to this engine's bitset-per-slab model.
type SlabAllocator struct {
	mu       sync.Mutex
	src      PageSource
	slabSize int64
	classes  map[int][]*SlotAllocator // size class -> slabs, newest last
}

// NewSlabAllocator creates an allocator drawing slabs of slabSize bytes
// from src.
func NewSlabAllocator(src PageSource, slabSize int64) *SlabAllocator {
	return &SlabAllocator{src: src, slabSize: slabSize, classes: make(map[int][]*SlotAllocator)}
}

// Alloc reserves a byte range able to hold n bytes and returns its
// absolute memspace offset and the size class it was rounded up to. If n
// exceeds the largest size class, returns an Input error: callers that large should use a variable-length storage class
// instead (spec §4.4's storage-class taxonomy), not the slab allocator.
func (sa *SlabAllocator) Alloc(n int) (offset uint64, class int, err error) {
	class, ok := ClassForSize(n)
	if !ok {
		return 0, 0, errs.Newf(errs.KindInput, "memspace.SlabAllocator.Alloc",
			"size %d exceeds largest slot class %d; use variable-length storage", n, sizeClasses[len(sizeClasses)-1])
	}

	sa.mu.Lock()
	defer sa.mu.Unlock()

	slabs := sa.classes[class]
	if len(slabs) > 0 {
		last := slabs[len(slabs)-1]
		if !last.Full() {
			off, err := last.Alloc()
			return off, class, err
		}
	}

	slab := sa.growSlab(class)
	off, err := slab.Alloc()
	return off, class, err
}

// Free releases the byte range at offset, sized for the size class it was
// allocated from.
func (sa *SlabAllocator) Free(offset uint64, class int) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	for _, slab := range sa.classes[class] {
		if offset >= slab.Base() && offset < slab.Base()+uint64(sa.slabSize) {
			return slab.Free(offset)
		}
	}
	return errs.New(errs.KindInternal, "memspace.SlabAllocator.Free", errs.ErrDoubleFree)
}

func (sa *SlabAllocator) growSlab(class int) *SlotAllocator {
	pagesPerSlab := (sa.slabSize + int64(sa.src.PageSize()) - 1) / int64(sa.src.PageSize())
	firstPage := sa.src.AllocContiguousPages(int(pagesPerSlab))
	base := firstPage * uint64(sa.src.PageSize())
	slab := NewSlotAllocator(base, sa.slabSize, class)
	sa.classes[class] = append(sa.classes[class], slab)
	return slab
}

// Stats reports, per size class, how many slabs exist and how many of
// their slots are occupied — used by the inspector CLI.
func (sa *SlabAllocator) Stats() map[int]struct{ Slabs, Used, Capacity int } {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	out := make(map[int]struct{ Slabs, Used, Capacity int })
	for class, slabs := range sa.classes {
		var used, cap int
		for _, s := range slabs {
			used += s.bitset.Used()
			cap += s.bitset.Capacity()
		}
		out[class] = struct{ Slabs, Used, Capacity int }{len(slabs), used, cap}
	}
	return out
}
