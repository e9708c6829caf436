package ftindex

import "sort"

func addrLess(a, b uint64) bool { return a < b }

// TagIndex is the bidirectional object<->tag mapping from spec §4.7: a
// SparseBoolMatrix backed by an FT_BaseIndex whose leaves are ordered
// posting lists. Mutations are buffered through beginBatchUpdate()/flush()
// so commit is atomic; find()/splitBy() build iterator trees over the
// posting lists for query evaluation.
type TagIndex struct {
	// postings maps tag address -> sorted set of object addresses carrying it.
	postings map[uint64][]uint64
	// objTags maps object address -> sorted set of tag addresses it carries,
	// the reverse direction of postings, kept in lockstep for splitBy.
	objTags map[uint64][]uint64
}

// NewTagIndex creates an empty tag index.
func NewTagIndex() *TagIndex {
	return &TagIndex{postings: map[uint64][]uint64{}, objTags: map[uint64][]uint64{}}
}

func insertSorted(s []uint64, v uint64) []uint64 {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeSorted(s []uint64, v uint64) []uint64 {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	if i >= len(s) || s[i] != v {
		return s
	}
	return append(s[:i], s[i+1:]...)
}

// AddTag records a single object-tag pairing directly (outside a batch).
func (t *TagIndex) AddTag(obj, tag uint64) {
	t.postings[tag] = insertSorted(t.postings[tag], obj)
	t.objTags[obj] = insertSorted(t.objTags[obj], tag)
}

// RemoveTag removes a single object-tag pairing directly.
func (t *TagIndex) RemoveTag(obj, tag uint64) {
	if list, ok := t.postings[tag]; ok {
		list = removeSorted(list, obj)
		if len(list) == 0 {
			delete(t.postings, tag)
		} else {
			t.postings[tag] = list
		}
	}
	if list, ok := t.objTags[obj]; ok {
		list = removeSorted(list, tag)
		if len(list) == 0 {
			delete(t.objTags, obj)
		} else {
			t.objTags[obj] = list
		}
	}
}

// AddTags is a batch convenience over AddTag for one object.
func (t *TagIndex) AddTags(obj uint64, tags []uint64) {
	for _, tag := range tags {
		t.AddTag(obj, tag)
	}
}

// RemoveTags is a batch convenience over RemoveTag for one object.
func (t *TagIndex) RemoveTags(obj uint64, tags []uint64) {
	for _, tag := range tags {
		t.RemoveTag(obj, tag)
	}
}

type pendingOp struct {
	obj, tag uint64
	remove   bool
}

// TagBatch buffers tag mutations for atomic commit (spec §4.7's
// beginBatchUpdate/flush/close contract). Uncommitted buffered ops are
// discarded if Close is called instead of Flush (snapshot isolation for
// concurrent readers: they never observe a partially-applied batch).
type TagBatch struct {
	index *TagIndex
	ops   []pendingOp
}

// BeginBatchUpdate starts a buffered batch of mutations against t.
func (t *TagIndex) BeginBatchUpdate() *TagBatch {
	return &TagBatch{index: t}
}

// AddTag buffers an add within this batch.
func (b *TagBatch) AddTag(obj, tag uint64) { b.ops = append(b.ops, pendingOp{obj, tag, false}) }

// RemoveTag buffers a remove within this batch.
func (b *TagBatch) RemoveTag(obj, tag uint64) { b.ops = append(b.ops, pendingOp{obj, tag, true}) }

// Flush atomically applies every buffered op to the persistent index.
func (b *TagBatch) Flush() {
	for _, op := range b.ops {
		if op.remove {
			b.index.RemoveTag(op.obj, op.tag)
		} else {
			b.index.AddTag(op.obj, op.tag)
		}
	}
	b.ops = nil
}

// Close discards the buffered batch without applying it.
func (b *TagBatch) Close() { b.ops = nil }

func (t *TagIndex) leafFor(tag uint64) *Leaf[uint64] {
	entries := make([]LeafEntry[uint64], len(t.postings[tag]))
	for i, a := range t.postings[tag] {
		entries[i] = LeafEntry[uint64]{Key: a, Addr: a}
	}
	return NewLeaf(entries, addrLess, 'P')
}

// Find builds an iterator tree over objects carrying every tag in
// required, any tag in anyOf (if non-empty), and none in excluded — the
// AST spec §4.7 describes as built from (object, tag_set, type class).
// typeFilter, if non-nil, additionally excludes addresses it rejects.
func (t *TagIndex) Find(required, anyOf, excluded []uint64, typeFilter func(addr uint64) bool) Iterator[uint64] {
	var cur Iterator[uint64]
	if len(required) > 0 {
		children := make([]Iterator[uint64], len(required))
		for i, tag := range required {
			children[i] = t.leafFor(tag)
		}
		cur = NewAnd(addrLess, Forward, children...)
	}
	if len(anyOf) > 0 {
		children := make([]Iterator[uint64], len(anyOf))
		for i, tag := range anyOf {
			children[i] = t.leafFor(tag)
		}
		orNode := Iterator[uint64](NewOr(addrLess, children...))
		if cur == nil {
			cur = orNode
		} else {
			cur = NewAnd(addrLess, Forward, cur, orNode)
		}
	}
	if cur == nil {
		cur = NewLeaf[uint64](nil, addrLess, 'P')
	}
	for _, tag := range excluded {
		cur = NewAndNot(addrLess, Forward, cur, t.leafFor(tag))
	}
	if typeFilter != nil {
		cur = &typeFilterIter{inner: cur, keep: typeFilter}
	}
	return cur
}

// SplitBy partitions iter's addresses into those carrying any (exclusive
// =false) or all (exclusive=true) of tags, per spec §4.7's splitBy.
func (t *TagIndex) SplitBy(tags []uint64, iter Iterator[uint64], exclusive bool) Iterator[uint64] {
	var membership Iterator[uint64]
	children := make([]Iterator[uint64], len(tags))
	for i, tag := range tags {
		children[i] = t.leafFor(tag)
	}
	if exclusive {
		membership = NewAnd(addrLess, Forward, children...)
	} else {
		membership = NewOr(addrLess, children...)
	}
	return NewAnd(addrLess, Forward, iter, membership)
}

// ModifiedLookup reports whether an address was touched by a commit in
// [fromState, toState]; the concrete check is supplied by the caller since
// the diff index (pager.Prefix's version directory) lives in another
// package with no reverse dependency on ftindex.
type ModifiedLookup func(addr uint64, fromState, toState uint64) bool

// SelectModCandidates filters iter to addresses modified within
// [fromState, toState], consulting modified via the diff index (spec
// §4.7's selectModCandidates).
func (t *TagIndex) SelectModCandidates(iter Iterator[uint64], modified ModifiedLookup, fromState, toState uint64) Iterator[uint64] {
	var entries []LeafEntry[uint64]
	for !iter.IsEnd() {
		addr := iter.GetKey()
		if modified(addr, fromState, toState) {
			entries = append(entries, LeafEntry[uint64]{Key: addr, Addr: addr})
		}
		if _, ok := iter.Next(); !ok {
			break
		}
	}
	return NewLeaf(entries, addrLess, 'M')
}

// typeFilterIter wraps an Iterator[uint64], skipping addresses keep
// rejects. Used by Find's optional type_filter.
type typeFilterIter struct {
	inner Iterator[uint64]
	keep  func(addr uint64) bool
	end   bool
}

func (f *typeFilterIter) skipRejected() {
	for !f.inner.IsEnd() && !f.keep(f.inner.GetKey()) {
		if _, ok := f.inner.Next(); !ok {
			break
		}
	}
}

func (f *typeFilterIter) IsEnd() bool {
	if f.end {
		return true
	}
	f.skipRejected()
	return f.inner.IsEnd()
}

func (f *typeFilterIter) Next() (uint64, bool) {
	if f.IsEnd() {
		return 0, false
	}
	if _, ok := f.inner.Next(); !ok {
		return 0, false
	}
	f.skipRejected()
	if f.inner.IsEnd() {
		return 0, false
	}
	return f.inner.GetKey(), true
}

func (f *typeFilterIter) GetKey() uint64 { return f.inner.GetKey() }

func (f *typeFilterIter) Join(k uint64, dir Direction) bool {
	if !f.inner.Join(k, dir) {
		return false
	}
	f.skipRejected()
	return !f.inner.IsEnd()
}

func (f *typeFilterIter) JoinBound(k uint64) bool { return f.Join(k, Forward) }

func (f *typeFilterIter) Peek() (uint64, bool) {
	if f.IsEnd() {
		return 0, false
	}
	return f.GetKey(), true
}

func (f *typeFilterIter) LimitBy(k uint64) bool {
	if f.IsEnd() {
		return false
	}
	return !addrLess(k, f.GetKey())
}

func (f *typeFilterIter) Stop() { f.end = true; f.inner.Stop() }

func (f *typeFilterIter) BeginTyped(dir Direction) Iterator[uint64] {
	return &typeFilterIter{inner: f.inner.BeginTyped(dir), keep: f.keep}
}

func (f *typeFilterIter) Signature(sink *SignatureWriter) {
	sink.WriteTag('F')
	f.inner.Signature(sink)
}

func (f *typeFilterIter) CompareTo(other Iterator[uint64]) float64 { return f.inner.CompareTo(other) }
