package ftindex

import (
	"sort"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/object"
)

// int64Less orders Int64/UInt64 keys. UInt64 keys are ordered as unsigned
// values packed into the same int64-typed field used by sort.Slice below.
func int64Less(a, b int64) bool { return a < b }

// RangeEntry pairs a typed key with the address it indexes, or marks a
// null key (no indexed value, sorted to the configured end per Builder).
type RangeEntry struct {
	Key  int64
	Null bool
	Addr uint64
}

// RangeTree is the typed-key -> address secondary index from spec §4.8:
// a bulk-loaded sorted leaf with auto-assigned IndexDataType and ≤N items
// per leaf (this implementation keeps a single sorted leaf rather than a
// multi-leaf B-tree, since Go's slices already give O(log n) range lookup
// via binary search — see DESIGN.md for why no B-tree library is used).
type RangeTree struct {
	dataType object.IndexDataType
	entries  []RangeEntry // sorted ascending by Key, nulls collected separately
	nulls    []uint64
}

// NewRangeTree creates an empty tree with an auto-detected data type.
func NewRangeTree() *RangeTree {
	return &RangeTree{dataType: object.IndexAuto}
}

// Builder buffers (key, addr) pairs for atomic bulk-load into a RangeTree.
type Builder struct {
	tree    *RangeTree
	entries []RangeEntry
}

// NewBuilder creates a Builder targeting tree.
func (t *RangeTree) NewBuilder() *Builder { return &Builder{tree: t} }

// Add buffers a typed key for a later Flush. class is the StorageClass the
// key value was read from, used to infer/validate the tree's IndexDataType.
func (b *Builder) Add(class object.StorageClass, key int64, addr uint64) error {
	dt, err := object.ClassForIndexKey(class)
	if err != nil {
		return err
	}
	if b.tree.dataType == object.IndexAuto {
		b.tree.dataType = dt
	} else if dt != object.IndexAuto && b.tree.dataType != dt {
		return errs.Newf(errs.KindInput, "rangetree.Add", "key type conflicts with index data type")
	}
	b.entries = append(b.entries, RangeEntry{Key: key, Addr: addr})
	return nil
}

// AddNull buffers an address with no key value.
func (b *Builder) AddNull(addr uint64) {
	b.entries = append(b.entries, RangeEntry{Null: true, Addr: addr})
}

// Flush sorts the buffered entries by key and bulk-loads them into the
// tree, merging with whatever entries already existed. addCB, if non-nil,
// is invoked once per newly introduced address so the caller can incRef.
func (b *Builder) Flush(addCB func(addr uint64)) {
	sort.Slice(b.entries, func(i, j int) bool {
		if b.entries[i].Null != b.entries[j].Null {
			return !b.entries[i].Null // non-null sorts before null by default
		}
		return int64Less(b.entries[i].Key, b.entries[j].Key)
	})
	for _, e := range b.entries {
		if e.Null {
			b.tree.nulls = append(b.tree.nulls, e.Addr)
		} else {
			b.tree.entries = append(b.tree.entries, e)
		}
		if addCB != nil {
			addCB(e.Addr)
		}
	}
	sort.Slice(b.tree.entries, func(i, j int) bool {
		return int64Less(b.tree.entries[i].Key, b.tree.entries[j].Key)
	})
	b.entries = nil
}

// DataType reports the tree's auto-assigned or explicit index data type.
func (t *RangeTree) DataType() object.IndexDataType { return t.dataType }

func (t *RangeTree) leafEntries(nullFirst bool) []LeafEntry[int64] {
	out := make([]LeafEntry[int64], 0, len(t.entries)+len(t.nulls))
	emitNulls := func() {
		for _, a := range t.nulls {
			out = append(out, LeafEntry[int64]{Key: minInt64Sentinel(nullFirst), Addr: a})
		}
	}
	if nullFirst {
		emitNulls()
	}
	for _, e := range t.entries {
		out = append(out, LeafEntry[int64]{Key: e.Key, Addr: e.Addr})
	}
	if !nullFirst {
		emitNulls()
	}
	return out
}

func minInt64Sentinel(nullFirst bool) int64 {
	if nullFirst {
		return -1 << 63
	}
	return 1<<63 - 1
}

// Sort materializes the keys for the addresses iter produces and yields
// them key-ordered (spec §4.6/§4.8's Sort node), honoring nullFirst.
func (t *RangeTree) Sort(iter Iterator[uint64], asc, nullFirst bool) *SortIter[int64] {
	keyOf := func(addr uint64) int64 {
		for _, e := range t.entries {
			if e.Addr == addr {
				return e.Key
			}
		}
		return minInt64Sentinel(nullFirst)
	}
	return NewSort(iter, keyOf, int64Less, asc)
}

// Range returns an ordered range scan between low and high (either nil for
// unbounded), per spec §4.8. nullFirst controls where null-keyed addresses
// appear relative to the ordered run.
func (t *RangeTree) Range(low, high *int64, nullFirst bool) *RangeIter[int64] {
	entries := t.leafEntries(nullFirst)
	leaf := NewLeaf(entries, int64Less, 'B')
	return NewRange[int64](leaf, int64Less, low, high, false, false, Forward)
}
