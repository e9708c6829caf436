package cache

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lock is the minimal contract PrefixCache needs from a cached value: its
// committed state number, byte footprint, and eviction eligibility.
type Lock interface {
	Evictable
	StateNum() uint64
}

type pageEntry struct {
	state uint64
	bytes int
	lock  Lock
}

type negRange struct{ lo, hi uint64 }

// PrefixCache maps (page_num, state_num) to the lock whose state is the
// largest value <= the requested state — spec §4.3's "best state match".
// Concurrent misses for the same page/state are deduplicated through a
// singleflight.Group, grounded on edirooss-zmux-server's use of
// golang.org/x/sync/singleflight for concurrent cache-fill collapsing.
type PrefixCache struct {
	mu       sync.RWMutex
	entries  map[uint64][]pageEntry // page -> ascending by state
	negative map[uint64][]negRange
	recycler *Recycler
	fill     singleflight.Group
}

// NewPrefixCache creates a PrefixCache backed by recycler for eviction
// accounting.
func NewPrefixCache(recycler *Recycler) *PrefixCache {
	pc := &PrefixCache{
		entries:  make(map[uint64][]pageEntry),
		negative: make(map[uint64][]negRange),
	}
	pc.recycler = recycler
	return pc
}

// FindRange returns the lock for page whose state is the largest value <=
// reqState among entries with state in [lo, hi], or ok=false if none is
// cached (including if that absence was already recorded as a negative
// result).
func (pc *PrefixCache) FindRange(page, lo, hi, reqState uint64) (lock Lock, ok bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	for _, nr := range pc.negative[page] {
		if lo >= nr.lo && hi <= nr.hi {
			return nil, false
		}
	}

	entries := pc.entries[page]
	// Largest state <= reqState: entries sorted ascending, so search for
	// the first entry with state > reqState and step back one.
	i := sort.Search(len(entries), func(i int) bool { return entries[i].state > reqState }) - 1
	if i < 0 {
		return nil, false
	}
	e := entries[i]
	if e.state < lo || e.state > hi {
		return nil, false
	}
	return e.lock, true
}

// Put registers a freshly-filled lock in the cache and the recycler.
func (pc *PrefixCache) Put(page uint64, lock Lock, bytes int) {
	pc.mu.Lock()
	entries := pc.entries[page]
	state := lock.StateNum()
	i := sort.Search(len(entries), func(i int) bool { return entries[i].state >= state })
	entries = append(entries, pageEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = pageEntry{state: state, bytes: bytes, lock: lock}
	pc.entries[page] = entries
	pc.clearNegativeLocked(page, state)
	pc.mu.Unlock()

	pc.recycler.Add(pc.cacheKey(page, state), bytes, lock)
}

// MarkMissing records that no cached version of page exists within
// [lo, hi], so repeated lookups in that range skip straight to a miss
// instead of re-scanning the (possibly still-empty) entry list.
func (pc *PrefixCache) MarkMissing(page, lo, hi uint64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.negative[page] = append(pc.negative[page], negRange{lo, hi})
}

func (pc *PrefixCache) clearNegativeLocked(page, state uint64) {
	ranges := pc.negative[page]
	if len(ranges) == 0 {
		return
	}
	kept := ranges[:0]
	for _, nr := range ranges {
		if state >= nr.lo && state <= nr.hi {
			continue // this range is no longer entirely missing
		}
		kept = append(kept, nr)
	}
	pc.negative[page] = kept
}

// Invalidate drops every cached entry for page (used when a page is freed
// and its page number recycled by the allocator).
func (pc *PrefixCache) Invalidate(page uint64) {
	pc.mu.Lock()
	entries := pc.entries[page]
	delete(pc.entries, page)
	delete(pc.negative, page)
	pc.mu.Unlock()
	for _, e := range entries {
		pc.recycler.Remove(pc.cacheKey(page, e.state))
	}
}

// Fill runs loader at most once across all concurrent callers sharing the
// same (page, reqState) key, caching and returning its result. Use when a
// FindRange miss requires consulting the diff index or full page IO.
func (pc *PrefixCache) Fill(page, reqState uint64, loader func() (Lock, int, error)) (Lock, error) {
	key := fmt.Sprintf("%p:%d:%d", pc, page, reqState)
	v, err, _ := pc.fill.Do(key, func() (any, error) {
		lock, bytes, err := loader()
		if err != nil {
			return nil, err
		}
		pc.Put(page, lock, bytes)
		return lock, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Lock), nil
}

// cacheKey scopes the (page, state) pair to this PrefixCache instance, so
// a Recycler shared by several prefixes (spec §4.11's "shared
// CacheRecycler") never collides two prefixes' identical page/state pairs
// under one key.
func (pc *PrefixCache) cacheKey(page, state uint64) any {
	return cacheEntry{pc, page, state}
}

type cacheEntry struct {
	owner *PrefixCache
	page  uint64
	state uint64
}
