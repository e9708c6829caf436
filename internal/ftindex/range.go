package ftindex

import "sort"

// RangeIter scans an ordered source between low and high (spec §4.6's
// Range node): bounds are inclusive unless the corresponding Exclusive
// flag is set. A nil bound means unbounded on that side.
type RangeIter[K any] struct {
	inner              Iterator[K]
	less               func(a, b K) bool
	low, high          *K
	lowExcl, highExcl  bool
	dir                Direction
	started            bool
	end                bool
}

// NewRange creates a Range node over inner, bounded by [low, high] (either
// may be nil for unbounded), positioned on the first key within the bounds.
func NewRange[K any](inner Iterator[K], less func(a, b K) bool, low, high *K, lowExcl, highExcl bool, dir Direction) *RangeIter[K] {
	r := &RangeIter[K]{inner: inner, less: less, low: low, high: high, lowExcl: lowExcl, highExcl: highExcl, dir: dir}
	r.Next()
	return r
}

func (r *RangeIter[K]) withinLow(k K) bool {
	if r.low == nil {
		return true
	}
	if r.lowExcl {
		return r.less(*r.low, k)
	}
	return !r.less(k, *r.low)
}

func (r *RangeIter[K]) withinHigh(k K) bool {
	if r.high == nil {
		return true
	}
	if r.highExcl {
		return r.less(k, *r.high)
	}
	return !r.less(*r.high, k)
}

func (r *RangeIter[K]) seekLow() {
	if r.low != nil {
		r.inner.Join(*r.low, r.dir)
	}
	for !r.inner.IsEnd() && !r.withinLow(r.inner.GetKey()) {
		r.inner.Next()
	}
}

func (r *RangeIter[K]) IsEnd() bool {
	if r.end || r.inner.IsEnd() {
		return true
	}
	return !r.withinHigh(r.inner.GetKey())
}

func (r *RangeIter[K]) Next() (K, bool) {
	var zero K
	if !r.started {
		r.started = true
		r.seekLow()
	} else {
		r.inner.Next()
	}
	if r.IsEnd() {
		r.end = true
		return zero, false
	}
	return r.inner.GetKey(), true
}

func (r *RangeIter[K]) GetKey() K { return r.inner.GetKey() }

func (r *RangeIter[K]) Join(k K, dir Direction) bool {
	if !r.inner.Join(k, dir) {
		return false
	}
	r.started = true
	return !r.IsEnd()
}

func (r *RangeIter[K]) JoinBound(k K) bool { return r.Join(k, r.dir) }

func (r *RangeIter[K]) Peek() (K, bool) {
	if r.IsEnd() {
		var zero K
		return zero, false
	}
	return r.GetKey(), true
}

func (r *RangeIter[K]) LimitBy(k K) bool {
	if r.IsEnd() {
		return false
	}
	return !r.less(k, r.GetKey())
}

func (r *RangeIter[K]) Stop() { r.end = true; r.inner.Stop() }

func (r *RangeIter[K]) BeginTyped(dir Direction) Iterator[K] {
	return NewRange(r.inner.BeginTyped(dir), r.less, r.low, r.high, r.lowExcl, r.highExcl, dir)
}

func (r *RangeIter[K]) Signature(sink *SignatureWriter) {
	sink.WriteTag('R')
	r.inner.Signature(sink)
}

func (r *RangeIter[K]) CompareTo(other Iterator[K]) float64 { return r.inner.CompareTo(other) }

// SliceIter cuts an iterator to a positional (start, stop, step) window,
// supporting only a forward step >= 1 (spec §4.6's Slice node).
type SliceIter[K any] struct {
	inner       Iterator[K]
	start, stop int // stop < 0 means unbounded
	step        int
	pos         int
	started     bool
	end         bool
}

// NewSlice creates a Slice node positioned on the element at index start;
// step must be >= 1.
func NewSlice[K any](inner Iterator[K], start, stop, step int) *SliceIter[K] {
	if step < 1 {
		step = 1
	}
	s := &SliceIter[K]{inner: inner, start: start, stop: stop, step: step}
	s.Next()
	return s
}

func (s *SliceIter[K]) IsEnd() bool {
	if s.end || s.inner.IsEnd() {
		return true
	}
	return s.stop >= 0 && s.pos >= s.stop
}

func (s *SliceIter[K]) Next() (K, bool) {
	var zero K
	if !s.started {
		s.started = true
		for s.pos < s.start {
			if s.inner.IsEnd() {
				s.end = true
				return zero, false
			}
			s.inner.Next()
			s.pos++
		}
	} else {
		for i := 0; i < s.step; i++ {
			if s.inner.IsEnd() {
				s.end = true
				return zero, false
			}
			s.inner.Next()
			s.pos++
		}
	}
	if s.IsEnd() {
		s.end = true
		return zero, false
	}
	return s.inner.GetKey(), true
}

func (s *SliceIter[K]) GetKey() K { return s.inner.GetKey() }

func (s *SliceIter[K]) Join(k K, dir Direction) bool {
	return s.inner.Join(k, dir) // position tracking becomes approximate after an external seek
}

func (s *SliceIter[K]) JoinBound(k K) bool { return s.Join(k, Forward) }

func (s *SliceIter[K]) Peek() (K, bool) {
	if s.IsEnd() {
		var zero K
		return zero, false
	}
	return s.GetKey(), true
}

func (s *SliceIter[K]) LimitBy(k K) bool { return true }

func (s *SliceIter[K]) Stop() { s.end = true; s.inner.Stop() }

func (s *SliceIter[K]) BeginTyped(dir Direction) Iterator[K] {
	return NewSlice(s.inner.BeginTyped(dir), s.start, s.stop, s.step)
}

func (s *SliceIter[K]) Signature(sink *SignatureWriter) {
	sink.WriteTag('L')
	sink.WriteUint64(uint64(s.start))
	sink.WriteUint64(uint64(s.step))
	s.inner.Signature(sink)
}

func (s *SliceIter[K]) CompareTo(other Iterator[K]) float64 { return s.inner.CompareTo(other) }

// SpanIter coarsens uint64 keys into 1<<shift-sized buckets (spec §4.6's
// Span node, used by the RangeIDIndex). Restricted to uint64 keys since
// bucketing is a bit-shift, unlike the rest of this package's generic Key.
type SpanIter struct {
	inner Iterator[uint64]
	shift uint
}

// NewSpan creates a Span node bucketing inner's keys by 1<<shift.
func NewSpan(inner Iterator[uint64], shift uint) *SpanIter {
	return &SpanIter{inner: inner, shift: shift}
}

func (s *SpanIter) bucket(k uint64) uint64 { return k >> s.shift }

func (s *SpanIter) IsEnd() bool { return s.inner.IsEnd() }

func (s *SpanIter) Next() (uint64, bool) {
	k, ok := s.inner.Next()
	if !ok {
		return 0, false
	}
	return s.bucket(k), true
}

func (s *SpanIter) GetKey() uint64 { return s.bucket(s.inner.GetKey()) }

func (s *SpanIter) Join(k uint64, dir Direction) bool { return s.inner.Join(k<<s.shift, dir) }

func (s *SpanIter) JoinBound(k uint64) bool { return s.Join(k, Forward) }

func (s *SpanIter) Peek() (uint64, bool) {
	k, ok := s.inner.Peek()
	return s.bucket(k), ok
}

func (s *SpanIter) LimitBy(k uint64) bool { return s.inner.LimitBy(k << s.shift) }

func (s *SpanIter) Stop() { s.inner.Stop() }

func (s *SpanIter) BeginTyped(dir Direction) Iterator[uint64] {
	return NewSpan(s.inner.BeginTyped(dir), s.shift)
}

func (s *SpanIter) Signature(sink *SignatureWriter) {
	sink.WriteTag('S')
	sink.WriteUint64(uint64(s.shift))
	s.inner.Signature(sink)
}

func (s *SpanIter) CompareTo(other Iterator[uint64]) float64 { return s.inner.CompareTo(other) }

// SortIter wraps any iterator plus a key-lookup function, materializing
// addresses and emitting them in key-sorted order using a secondary key
// iterator for ordering (spec §4.6's Sort node). This necessarily consumes
// `inner` eagerly, trading streaming for a guaranteed total order.
type SortIter[K any] struct {
	entries []LeafEntry[K]
	pos     int
	asc     bool
	less    func(a, b K) bool
	stopped bool
}

// NewSort drains inner and its associated keys via keyOf, then sorts.
// nullFirst is honored by keyOf returning a caller-defined sentinel "low"
// key for addresses with no indexed key; the actual null-handling policy
// belongs to the caller building keyOf.
func NewSort[K any](inner Iterator[uint64], keyOf func(addr uint64) K, less func(a, b K) bool, asc bool) *SortIter[K] {
	var entries []LeafEntry[K]
	for !inner.IsEnd() {
		addr := inner.GetKey()
		entries = append(entries, LeafEntry[K]{Key: keyOf(addr), Addr: addr})
		if _, ok := inner.Next(); !ok {
			break
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if asc {
			return less(entries[i].Key, entries[j].Key)
		}
		return less(entries[j].Key, entries[i].Key)
	})
	return &SortIter[K]{entries: entries, asc: asc, less: less}
}

func (s *SortIter[K]) IsEnd() bool { return s.stopped || s.pos >= len(s.entries) }

func (s *SortIter[K]) Next() (K, bool) {
	var zero K
	if s.IsEnd() {
		return zero, false
	}
	s.pos++
	if s.IsEnd() {
		return zero, false
	}
	return s.entries[s.pos].Key, true
}

func (s *SortIter[K]) GetKey() K {
	var zero K
	if s.IsEnd() {
		return zero
	}
	return s.entries[s.pos].Key
}

func (s *SortIter[K]) CurrentAddr() uint64 {
	if s.IsEnd() {
		return 0
	}
	return s.entries[s.pos].Addr
}

func (s *SortIter[K]) Join(k K, dir Direction) bool {
	for !s.IsEnd() {
		cur := s.entries[s.pos].Key
		if dir == Forward && !s.less(cur, k) {
			break
		}
		if dir == Backward && !s.less(k, cur) {
			break
		}
		s.pos++
	}
	return !s.IsEnd()
}

func (s *SortIter[K]) JoinBound(k K) bool { return s.Join(k, Forward) }

func (s *SortIter[K]) Peek() (K, bool) {
	if s.IsEnd() {
		var zero K
		return zero, false
	}
	return s.GetKey(), true
}

func (s *SortIter[K]) LimitBy(k K) bool {
	if s.IsEnd() {
		return false
	}
	return !s.less(k, s.GetKey())
}

func (s *SortIter[K]) Stop() { s.stopped = true }

func (s *SortIter[K]) BeginTyped(dir Direction) Iterator[K] {
	cp := append([]LeafEntry[K](nil), s.entries...)
	if dir == Backward {
		for i, j := 0, len(cp)-1; i < j; i, j = i+1, j-1 {
			cp[i], cp[j] = cp[j], cp[i]
		}
	}
	return &SortIter[K]{entries: cp, asc: dir == Forward, less: s.less}
}

func (s *SortIter[K]) Signature(sink *SignatureWriter) {
	sink.WriteTag('T')
	sink.WriteUint64(uint64(len(s.entries)))
}

func (s *SortIter[K]) CompareTo(other Iterator[K]) float64 { return float64(len(s.entries)) }
