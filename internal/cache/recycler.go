// Package cache implements the bounded page-lock cache described in spec
// §4.3: a CacheRecycler tracking total buffered bytes with FIFO-of-weak-
// slots eviction, and a PrefixCache keyed by (page_num, state_num) with
// "best state match" lookup and negative-result caching. Grounded on
// edirooss-zmux-server's singleflight-backed fill-dedup pattern for
// concurrent cache misses.
package cache

import (
	"container/list"
	"sync"
)

// Evictable is the subset of reslock.ResourceLock's contract the recycler
// needs: whether a lock may currently be reclaimed.
type Evictable interface {
	Evictable() bool
	SetRecycled(bool)
}

// slot is one FIFO entry: a weak reference to a cached lock, identified
// only by its byte cost so eviction doesn't need to touch the lock's own
// package.
type slot struct {
	key   any
	bytes int
	lock  Evictable
}

// Recycler bounds the sum of buffered page bytes across every prefix
// sharing a Workspace, evicting the oldest clean/unowned lock first when a
// new addition would exceed the ceiling. Mirrors spec §4.3's
// "FixedList of weak slots" FIFO.
type Recycler struct {
	mu       sync.Mutex
	ceiling  int64
	used     int64
	order    *list.List // front = oldest
	elements map[any]*list.Element
	evictFn  func(key any)
}

// NewRecycler creates a Recycler with the given byte ceiling. evictFn, if
// non-nil, is invoked (outside the recycler's lock) whenever a slot is
// evicted, so the owning PrefixCache can remove its own index entry.
func NewRecycler(ceilingBytes int64, evictFn func(key any)) *Recycler {
	return &Recycler{
		ceiling:  ceilingBytes,
		order:    list.New(),
		elements: make(map[any]*list.Element),
		evictFn:  evictFn,
	}
}

// Add registers a newly-filled lock of the given byte size under key,
// evicting older clean/unowned locks first if needed to stay under the
// ceiling. If no eviction candidate exists and the ceiling would still be
// exceeded, the lock is admitted anyway — the cache favors correctness
// (never refuse a fill) over the soft byte cap, matching spec's wording of
// cache_bytes as a "soft cap".
func (r *Recycler) Add(key any, bytes int, lock Evictable) {
	r.mu.Lock()
	var toEvict []any
	skipped := 0 // pinned slots rotated to the back during this call
	for r.used+int64(bytes) > r.ceiling && skipped < r.order.Len() {
		oldest := r.order.Front()
		if oldest == nil {
			break
		}
		s := oldest.Value.(*slot)
		if !s.lock.Evictable() {
			// Not evictable yet; move to back so we don't spin on it and
			// can still find other evictable slots behind it.
			r.order.MoveToBack(oldest)
			skipped++
			continue
		}
		r.order.Remove(oldest)
		delete(r.elements, s.key)
		r.used -= int64(s.bytes)
		s.lock.SetRecycled(true)
		toEvict = append(toEvict, s.key)
	}

	el := r.order.PushBack(&slot{key: key, bytes: bytes, lock: lock})
	r.elements[key] = el
	r.used += int64(bytes)
	r.mu.Unlock()

	if r.evictFn != nil {
		for _, k := range toEvict {
			r.evictFn(k)
		}
	}
}

// Touch moves key to the back of the FIFO, refreshing its eviction
// priority on reuse (a cache hit counts as "recently used" even though
// eviction order is nominally pure FIFO — this keeps hot pages from being
// evicted purely because they were filled early).
func (r *Recycler) Touch(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.elements[key]; ok {
		r.order.MoveToBack(el)
	}
}

// Remove drops key from the recycler's accounting without evicting via
// evictFn (used when the owning cache itself removes an entry, e.g. on
// commit of a dirty page).
func (r *Recycler) Remove(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.elements[key]; ok {
		s := el.Value.(*slot)
		r.order.Remove(el)
		delete(r.elements, key)
		r.used -= int64(s.bytes)
	}
}

// UsedBytes returns the current total buffered bytes.
func (r *Recycler) UsedBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}
