package ftindex

import "container/heap"

// orHeap orders live children by their current key, smallest first.
type orHeap[K any] struct {
	children []Iterator[K]
	less     func(a, b K) bool
}

func (h *orHeap[K]) Len() int { return len(h.children) }
func (h *orHeap[K]) Less(i, j int) bool {
	return h.less(h.children[i].GetKey(), h.children[j].GetKey())
}
func (h *orHeap[K]) Swap(i, j int) { h.children[i], h.children[j] = h.children[j], h.children[i] }
func (h *orHeap[K]) Push(x any)    { h.children = append(h.children, x.(Iterator[K])) }
func (h *orHeap[K]) Pop() any {
	n := len(h.children)
	x := h.children[n-1]
	h.children = h.children[:n-1]
	return x
}

// OrIter is a min-heap union over its children: Next emits the smallest
// current key across all children, popping every child that currently
// holds it so duplicates collapse into one emission (spec §4.6's OR node).
type OrIter[K any] struct {
	h       *orHeap[K]
	end     bool
	started bool
}

// NewOr creates an OR node over children, ordered by less, positioned on
// the smallest key any child holds.
func NewOr[K any](less func(a, b K) bool, children ...Iterator[K]) *OrIter[K] {
	live := make([]Iterator[K], 0, len(children))
	for _, c := range children {
		if !c.IsEnd() {
			live = append(live, c)
		}
	}
	h := &orHeap[K]{children: live, less: less}
	heap.Init(h)
	o := &OrIter[K]{h: h}
	o.Next()
	return o
}

func (o *OrIter[K]) equal(x, y K) bool { return !o.h.less(x, y) && !o.h.less(y, x) }

func (o *OrIter[K]) IsEnd() bool { return o.end || o.h.Len() == 0 }

func (o *OrIter[K]) Next() (K, bool) {
	var zero K
	if o.IsEnd() {
		return zero, false
	}
	if o.started {
		// Advance (and re-heap) the top element from the prior emission.
		top := o.h.children[0]
		if _, ok := top.Next(); !ok {
			heap.Pop(o.h)
		} else {
			heap.Fix(o.h, 0)
		}
	}
	o.started = true
	if o.h.Len() == 0 {
		o.end = true
		return zero, false
	}
	key := o.h.children[0].GetKey()
	// Pop (after advancing) every other child currently holding this key,
	// collapsing duplicates into one emission.
	for o.h.Len() > 1 && o.equal(o.h.children[0].GetKey(), key) {
		next := o.h.children[1]
		if !o.equal(next.GetKey(), key) {
			break
		}
		if _, ok := next.Next(); !ok {
			idx := 1
			heap.Remove(o.h, idx)
		} else {
			heap.Fix(o.h, 1)
		}
	}
	return key, true
}

func (o *OrIter[K]) GetKey() K {
	if o.IsEnd() {
		var zero K
		return zero
	}
	return o.h.children[0].GetKey()
}

func (o *OrIter[K]) Join(k K, dir Direction) bool {
	for _, c := range o.h.children {
		c.Join(k, dir)
	}
	live := o.h.children[:0]
	for _, c := range o.h.children {
		if !c.IsEnd() {
			live = append(live, c)
		}
	}
	o.h.children = live
	heap.Init(o.h)
	o.started = false
	o.Next()
	return o.h.Len() > 0
}

func (o *OrIter[K]) JoinBound(k K) bool { return o.Join(k, Forward) }

func (o *OrIter[K]) Peek() (K, bool) {
	if o.IsEnd() {
		var zero K
		return zero, false
	}
	return o.GetKey(), true
}

func (o *OrIter[K]) LimitBy(k K) bool {
	if o.IsEnd() {
		return false
	}
	return !o.h.less(k, o.GetKey())
}

func (o *OrIter[K]) Stop() {
	o.end = true
	for _, c := range o.h.children {
		c.Stop()
	}
}

func (o *OrIter[K]) BeginTyped(dir Direction) Iterator[K] {
	children := make([]Iterator[K], len(o.h.children))
	for i, c := range o.h.children {
		children[i] = c.BeginTyped(dir)
	}
	return NewOr(o.h.less, children...)
}

func (o *OrIter[K]) Signature(sink *SignatureWriter) {
	sink.WriteTag('O')
	sink.WriteUint64(uint64(len(o.h.children)))
	for _, c := range o.h.children {
		c.Signature(sink)
	}
}

func (o *OrIter[K]) CompareTo(other Iterator[K]) float64 {
	cost := 0.0
	for _, c := range o.h.children {
		cost += c.CompareTo(other)
	}
	return cost
}

// OrXIter is OR without duplicate collapsing: it emits the minimum key on
// every advance even if several children currently hold it (spec §4.6's
// ORX, "used when union multiplicity matters").
type OrXIter[K any] struct {
	h       *orHeap[K]
	end     bool
	started bool
}

// NewOrX creates an ORX node over children, ordered by less, positioned on
// the smallest key any child holds.
func NewOrX[K any](less func(a, b K) bool, children ...Iterator[K]) *OrXIter[K] {
	live := make([]Iterator[K], 0, len(children))
	for _, c := range children {
		if !c.IsEnd() {
			live = append(live, c)
		}
	}
	h := &orHeap[K]{children: live, less: less}
	heap.Init(h)
	return &OrXIter[K]{h: h, started: true}
}

func (o *OrXIter[K]) IsEnd() bool { return o.end || o.h.Len() == 0 }

func (o *OrXIter[K]) Next() (K, bool) {
	var zero K
	if o.IsEnd() {
		return zero, false
	}
	if o.started {
		top := o.h.children[0]
		if _, ok := top.Next(); !ok {
			heap.Pop(o.h)
		} else {
			heap.Fix(o.h, 0)
		}
	}
	o.started = true
	if o.h.Len() == 0 {
		o.end = true
		return zero, false
	}
	return o.h.children[0].GetKey(), true
}

func (o *OrXIter[K]) GetKey() K {
	if o.IsEnd() {
		var zero K
		return zero
	}
	return o.h.children[0].GetKey()
}

func (o *OrXIter[K]) Join(k K, dir Direction) bool {
	for _, c := range o.h.children {
		c.Join(k, dir)
	}
	live := o.h.children[:0]
	for _, c := range o.h.children {
		if !c.IsEnd() {
			live = append(live, c)
		}
	}
	o.h.children = live
	heap.Init(o.h)
	o.started = true
	return o.h.Len() > 0
}

func (o *OrXIter[K]) JoinBound(k K) bool { return o.Join(k, Forward) }

func (o *OrXIter[K]) Peek() (K, bool) {
	if o.IsEnd() {
		var zero K
		return zero, false
	}
	return o.GetKey(), true
}

func (o *OrXIter[K]) LimitBy(k K) bool {
	if o.IsEnd() {
		return false
	}
	return !o.h.less(k, o.GetKey())
}

func (o *OrXIter[K]) Stop() {
	o.end = true
	for _, c := range o.h.children {
		c.Stop()
	}
}

func (o *OrXIter[K]) BeginTyped(dir Direction) Iterator[K] {
	children := make([]Iterator[K], len(o.h.children))
	for i, c := range o.h.children {
		children[i] = c.BeginTyped(dir)
	}
	return NewOrX(o.h.less, children...)
}

func (o *OrXIter[K]) Signature(sink *SignatureWriter) {
	sink.WriteTag('X')
	sink.WriteUint64(uint64(len(o.h.children)))
	for _, c := range o.h.children {
		c.Signature(sink)
	}
}

func (o *OrXIter[K]) CompareTo(other Iterator[K]) float64 {
	cost := 0.0
	for _, c := range o.h.children {
		cost += c.CompareTo(other)
	}
	return cost
}
