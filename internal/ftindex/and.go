package ftindex

// AndIter intersects its children: it advances the current driver child,
// then joins every other child to that key until all agree, emitting only
// keys every child holds (spec §4.6's AND node). The first child acts as
// the driver; callers should order children by selectivity (more selective
// first) for best performance, mirroring the source's "preserves the
// child with the highest selectivity as the driver" note — selecting the
// actual highest-selectivity child dynamically is left as a possible
// follow-up (see CompareTo).
type AndIter[K any] struct {
	children []Iterator[K]
	less     func(a, b K) bool
	dir      Direction
	end      bool
	started  bool
}

// NewAnd creates an AND node over children, ordered by less, positioned on
// the first key every child holds.
func NewAnd[K any](less func(a, b K) bool, dir Direction, children ...Iterator[K]) *AndIter[K] {
	a := &AndIter[K]{children: children, less: less, dir: dir}
	a.Next()
	return a
}

func (a *AndIter[K]) equal(x, y K) bool { return !a.less(x, y) && !a.less(y, x) }

func (a *AndIter[K]) IsEnd() bool {
	if a.end || len(a.children) == 0 {
		return true
	}
	for _, c := range a.children {
		if c.IsEnd() {
			return true
		}
	}
	return false
}

func (a *AndIter[K]) Next() (K, bool) {
	var zero K
	if a.end {
		return zero, false
	}
	if !a.started {
		a.started = true
		if a.IsEnd() {
			a.end = true
			return zero, false
		}
		if k, ok := a.converge(); ok {
			return k, true
		}
		a.end = true
		return zero, false
	}
	// Advance every child past the last agreed key, then reconverge.
	for _, c := range a.children {
		if c.IsEnd() {
			a.end = true
			return zero, false
		}
		c.Next()
	}
	if a.IsEnd() {
		a.end = true
		return zero, false
	}
	if k, ok := a.converge(); ok {
		return k, true
	}
	a.end = true
	return zero, false
}

func (a *AndIter[K]) converge() (K, bool) {
	var zero K
	for {
		if a.IsEnd() {
			return zero, false
		}
		driver := a.children[0].GetKey()
		agree := true
		for i := 1; i < len(a.children); i++ {
			if !a.children[i].Join(driver, a.dir) {
				return zero, false
			}
			ck := a.children[i].GetKey()
			if !a.equal(ck, driver) {
				agree = false
				if !a.children[0].Join(ck, a.dir) {
					return zero, false
				}
				break
			}
		}
		if agree {
			return driver, true
		}
	}
}

func (a *AndIter[K]) GetKey() K {
	if len(a.children) == 0 {
		var zero K
		return zero
	}
	return a.children[0].GetKey()
}

func (a *AndIter[K]) Join(k K, dir Direction) bool {
	for _, c := range a.children {
		if !c.Join(k, dir) {
			a.end = true
			return false
		}
	}
	_, ok := a.converge()
	a.started = true
	if !ok {
		a.end = true
	}
	return ok
}

func (a *AndIter[K]) JoinBound(k K) bool { return a.Join(k, a.dir) }

func (a *AndIter[K]) Peek() (K, bool) {
	if a.IsEnd() {
		var zero K
		return zero, false
	}
	return a.GetKey(), true
}

func (a *AndIter[K]) LimitBy(k K) bool {
	if a.IsEnd() {
		return false
	}
	return !a.less(k, a.GetKey())
}

func (a *AndIter[K]) Stop() {
	a.end = true
	for _, c := range a.children {
		c.Stop()
	}
}

func (a *AndIter[K]) BeginTyped(dir Direction) Iterator[K] {
	children := make([]Iterator[K], len(a.children))
	for i, c := range a.children {
		children[i] = c.BeginTyped(dir)
	}
	return NewAnd(a.less, dir, children...)
}

func (a *AndIter[K]) Signature(sink *SignatureWriter) {
	sink.WriteTag('A')
	sink.WriteUint64(uint64(len(a.children)))
	for _, c := range a.children {
		c.Signature(sink)
	}
}

func (a *AndIter[K]) CompareTo(other Iterator[K]) float64 {
	cost := 0.0
	for _, c := range a.children {
		cost += c.CompareTo(other)
	}
	return cost
}
