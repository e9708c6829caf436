package object

import (
	"github.com/dbzero-software/dbzero-engine/internal/collections"
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
)

// RefCounter is the narrow capability container wrappers need to maintain
// their children's reference counts without importing the fixture/gc0
// packages (which themselves depend on object) — fixture.Fixture
// implements this.
type RefCounter interface {
	IncRef(addr memspace.Address, isTag bool) error
	DecRef(addr memspace.Address, isTag bool) error
}

// List is the mutable ordered container (spec §4.9's Object family): a
// managed object whose elements are addresses of other managed objects,
// backed by collections.BVector for O(1) amortized append.
type List struct {
	Header
	Addr  memspace.Address
	refs  RefCounter
	items *collections.BVector[memspace.Address]
}

// NewList creates an empty List at addr, using refs to manage child
// reference counts.
func NewList(addr memspace.Address, refs RefCounter) *List {
	return &List{Addr: addr, refs: refs, items: collections.NewBVector[memspace.Address](64)}
}

// Append adds elem, incrementing its obj_refs.
func (l *List) Append(elem memspace.Address) error {
	if err := l.refs.IncRef(elem, false); err != nil {
		return err
	}
	l.items.Append(elem)
	return nil
}

// At returns the element at idx.
func (l *List) At(idx int) (memspace.Address, error) { return l.items.At(idx) }

// Len returns the number of elements.
func (l *List) Len() int { return l.items.Len() }

// Tuple is an immutable fixed-length ordered container, built once from a
// slice of elements (each incRef'd on construction).
type Tuple struct {
	Header
	Addr  memspace.Address
	items []memspace.Address
}

// NewTuple creates a Tuple from elems, incrementing each element's
// obj_refs.
func NewTuple(addr memspace.Address, refs RefCounter, elems []memspace.Address) (*Tuple, error) {
	for i, e := range elems {
		if err := refs.IncRef(e, false); err != nil {
			// Roll back refs taken so far before surfacing the error.
			for _, prior := range elems[:i] {
				_ = refs.DecRef(prior, false)
			}
			return nil, err
		}
	}
	cp := append([]memspace.Address(nil), elems...)
	return &Tuple{Addr: addr, items: cp}, nil
}

// At returns the element at idx.
func (t *Tuple) At(idx int) (memspace.Address, error) {
	if idx < 0 || idx >= len(t.items) {
		return 0, errs.Newf(errs.KindInput, "object.Tuple.At", "index %d out of range [0,%d)", idx, len(t.items))
	}
	return t.items[idx], nil
}

// Len returns the tuple's fixed length.
func (t *Tuple) Len() int { return len(t.items) }

// Dict is a managed hash map from a pooled string key to an address value.
type Dict struct {
	Header
	Addr  memspace.Address
	refs  RefCounter
	pool  *collections.LimitedPool[string]
	byKey map[int]memspace.Address // pool id -> value
}

// NewDict creates an empty Dict at addr.
func NewDict(addr memspace.Address, refs RefCounter) *Dict {
	return &Dict{Addr: addr, refs: refs, pool: collections.NewLimitedPool[string](), byKey: make(map[int]memspace.Address)}
}

// Set stores value under key, incrementing its obj_refs. Overwriting an
// existing key decrements the prior value's obj_refs.
func (d *Dict) Set(key string, value memspace.Address) error {
	id := d.pool.Intern(key)
	if old, ok := d.byKey[id]; ok {
		if err := d.refs.DecRef(old, false); err != nil {
			return err
		}
	}
	if err := d.refs.IncRef(value, false); err != nil {
		return err
	}
	d.byKey[id] = value
	return nil
}

// Get retrieves the value for key.
func (d *Dict) Get(key string) (memspace.Address, bool) {
	for id, v := range d.byKey {
		if val, ok := d.pool.Value(id); ok && val == key {
			return v, true
		}
	}
	return 0, false
}

// Delete removes key, decrementing its value's obj_refs.
func (d *Dict) Delete(key string) error {
	for id, v := range d.byKey {
		if val, ok := d.pool.Value(id); ok && val == key {
			if err := d.refs.DecRef(v, false); err != nil {
				return err
			}
			delete(d.byKey, id)
			d.pool.Release(id)
			return nil
		}
	}
	return nil
}

// Len returns the number of keys currently set.
func (d *Dict) Len() int { return len(d.byKey) }

// ObjectSet (a set in the mathematical sense) is a managed collection of
// unique addresses.
type ObjectSet struct {
	Header
	Addr    memspace.Address
	refs    RefCounter
	members map[memspace.Address]struct{}
}

// NewObjectSet creates an empty ObjectSet at addr.
func NewObjectSet(addr memspace.Address, refs RefCounter) *ObjectSet {
	return &ObjectSet{Addr: addr, refs: refs, members: make(map[memspace.Address]struct{})}
}

// Add inserts elem if not already present, incrementing its obj_refs.
func (s *ObjectSet) Add(elem memspace.Address) error {
	if _, exists := s.members[elem]; exists {
		return nil
	}
	if err := s.refs.IncRef(elem, false); err != nil {
		return err
	}
	s.members[elem] = struct{}{}
	return nil
}

// Remove deletes elem, decrementing its obj_refs.
func (s *ObjectSet) Remove(elem memspace.Address) error {
	if _, exists := s.members[elem]; !exists {
		return nil
	}
	delete(s.members, elem)
	return s.refs.DecRef(elem, false)
}

// Contains reports set membership.
func (s *ObjectSet) Contains(elem memspace.Address) bool {
	_, ok := s.members[elem]
	return ok
}

// Len returns the member count.
func (s *ObjectSet) Len() int { return len(s.members) }

// ByteArray is a managed raw-byte blob (spec's ByteArray/Block storage
// class) — used for opaque binary payloads that don't decompose into
// typed attributes.
type ByteArray struct {
	Header
	Addr memspace.Address
	Data []byte
}

// NewByteArray creates a ByteArray wrapping a copy of data.
func NewByteArray(addr memspace.Address, data []byte) *ByteArray {
	cp := append([]byte(nil), data...)
	return &ByteArray{Addr: addr, Data: cp}
}

// Block is an alias for ByteArray used where the spec's vocabulary calls
// for a page-sized fixed block rather than a variable-length blob; the
// underlying representation is identical.
type Block = ByteArray

// DataFrame is a managed columnar table: named columns, each a List of
// addresses (spec §4.9's Object family extended to a tabular shape used
// by the range-tree/tag-index test scenarios).
type DataFrame struct {
	Header
	Addr    memspace.Address
	refs    RefCounter
	columns map[string]*List
	order   []string
}

// NewDataFrame creates an empty DataFrame at addr.
func NewDataFrame(addr memspace.Address, refs RefCounter) *DataFrame {
	return &DataFrame{Addr: addr, refs: refs, columns: make(map[string]*List)}
}

// Column returns the named column, creating it if it does not yet exist.
func (df *DataFrame) Column(name string, colAddr memspace.Address) *List {
	if col, ok := df.columns[name]; ok {
		return col
	}
	col := NewList(colAddr, df.refs)
	df.columns[name] = col
	df.order = append(df.order, name)
	return col
}

// ColumnNames returns column names in the order they were first created.
func (df *DataFrame) ColumnNames() []string {
	out := make([]string, len(df.order))
	copy(out, df.order)
	return out
}

// RowCount returns the length of the first column, or 0 if there are none.
func (df *DataFrame) RowCount() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}
