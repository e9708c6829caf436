package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dbzero-software/dbzero-engine/internal/cache"
	"github.com/dbzero-software/dbzero-engine/internal/config"
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/reslock"
)

// ───────────────────────────────────────────────────────────────────────────
// Prefix: the multi-version page storage substrate (spec §4.1)
// ───────────────────────────────────────────────────────────────────────────
//
// A Prefix owns one block file (the current-state page image, addressed
// directly by page number), one change-log file (the sorted-page-number
// record of every commit), one meta-stream file (restart acceleration), and
// one version-store file recording, for every page touched by a commit,
// either its full new image or a diff against the previous version — this
// is what makes historical reads (mapRange at a state older than the
// current one) possible. Grounded on the teacher's pager.Pager (single
// block-file-backed page cache keyed by page number) generalized with the
// per-page version chain the original C++ source's ChangeLog/DiffWriter
// pair implements.
const (
	versionKindFull byte = 0
	versionKindDiff byte = 1
)

// versionRef locates one stored version of a page within the version file.
type versionRef struct {
	state  StateNum
	kind   byte
	offset int64
	length int32
}

// Prefix is the storage substrate for one logical "prefix" (spec's unit of
// a single block file + its auxiliary streams, identified by a UUID).
type Prefix struct {
	mu  sync.RWMutex
	log *zap.Logger
	cfg config.Config

	dir  string
	data *os.File // current-state page images, direct-mapped by page number
	ver  *os.File // append-only version store (full images + diffs)
	verPos int64

	sb         *Superblock
	changeLog  *ChangeLog
	metaStream *MetaStream
	freeMgr    *FreeManager

	versions map[PageNum][]versionRef // ascending by state

	// atomic nesting: each frame records pages touched so a rollback can
	// discard them (spec's beginAtomic/endAtomic).
	atomicStack []map[PageNum]struct{}

	// cache, if set via SetCache, lets read-only locks (no write/create
	// promotion) be shared across callers instead of re-reading the page
	// from the version store on every MapRange. Write/create locks are
	// never cached: each transaction needs its own private CoW-promoted
	// buffer, and sharing one across callers would let one transaction's
	// uncommitted write leak into another's view.
	cache *cache.PrefixCache
}

// OpenPrefix opens or creates a prefix rooted at dir.
func OpenPrefix(dir string, cfg config.Config, log *zap.Logger) (*Prefix, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.KindIO, "pager.OpenPrefix", err)
	}

	p := &Prefix{
		log:      log.Named("pager"),
		cfg:      cfg,
		dir:      dir,
		versions: make(map[PageNum][]versionRef),
	}

	dataPath := filepath.Join(dir, "blocks.db")
	data, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.New(errs.KindIO, "pager.OpenPrefix", err)
	}
	p.data = data

	sbPath := filepath.Join(dir, "superblock.db")
	sb, created, err := loadOrCreateSuperblock(sbPath, cfg.PageSize)
	if err != nil {
		return nil, err
	}
	p.sb = sb
	if created {
		p.log.Info("created new prefix", zap.String("uuid", sb.UUID.String()))
	}

	cl, err := OpenChangeLog(filepath.Join(dir, "changelog.db"))
	if err != nil {
		return nil, errs.New(errs.KindIO, "pager.OpenPrefix", err)
	}
	p.changeLog = cl

	ms, err := OpenMetaStream(filepath.Join(dir, "meta.db"), cfg.StepSize)
	if err != nil {
		return nil, errs.New(errs.KindIO, "pager.OpenPrefix", err)
	}
	p.metaStream = ms

	verPath := filepath.Join(dir, "versions.db")
	ver, err := os.OpenFile(verPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.New(errs.KindIO, "pager.OpenPrefix", err)
	}
	p.ver = ver

	p.freeMgr = NewFreeManager()

	if err := p.replayVersions(); err != nil {
		return nil, err
	}

	return p, nil
}

func loadOrCreateSuperblock(path string, pageSize int) (*Superblock, bool, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, false, errs.New(errs.KindIO, "pager.loadOrCreateSuperblock", err)
		}
		sb, err := UnmarshalSuperblock(buf)
		if err != nil {
			return nil, false, err
		}
		return sb, false, nil
	}
	sb := NewSuperblock(pageSize)
	if err := persistSuperblock(path, sb, pageSize); err != nil {
		return nil, false, err
	}
	return sb, true, nil
}

func persistSuperblock(path string, sb *Superblock, pageSize int) error {
	buf := sb.Marshal(pageSize)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errs.New(errs.KindIO, "pager.persistSuperblock", err)
	}
	return nil
}

// replayVersions scans the version store from byte zero, rebuilding the
// in-memory per-page version index. Acceptable for this implementation; a
// production-scale restart would seed the scan position from the meta
// stream the way ChangeLog.ReadFrom does.
func (p *Prefix) replayVersions() error {
	info, err := p.ver.Stat()
	if err != nil {
		return errs.New(errs.KindIO, "pager.replayVersions", err)
	}
	size := info.Size()
	var pos int64
	for pos+versionHeaderSize <= size {
		hdr := make([]byte, versionHeaderSize)
		if _, err := p.ver.ReadAt(hdr, pos); err != nil {
			return errs.New(errs.KindIO, "pager.replayVersions", err)
		}
		state := StateNum(binary.LittleEndian.Uint64(hdr[0:8]))
		page := PageNum(binary.LittleEndian.Uint64(hdr[8:16]))
		kind := hdr[16]
		length := int32(binary.LittleEndian.Uint32(hdr[17:21]))
		total := int64(versionHeaderSize) + int64(length) + 4
		if pos+total > size {
			break // truncated tail record
		}
		rest := make([]byte, length+4)
		if _, err := p.ver.ReadAt(rest, pos+versionHeaderSize); err != nil {
			return errs.New(errs.KindIO, "pager.replayVersions", err)
		}
		storedCRC := binary.LittleEndian.Uint32(rest[length:])
		computedCRC := crc32.ChecksumIEEE(append(append([]byte(nil), hdr...), rest[:length]...))
		if storedCRC != computedCRC {
			break
		}
		p.versions[page] = append(p.versions[page], versionRef{
			state: state, kind: kind, offset: pos + versionHeaderSize + 0, length: length,
		})
		pos += total
	}
	p.verPos = pos
	return nil
}

const versionHeaderSize = 8 + 8 + 1 + 4 // state + page + kind + length

// PageSize implements reslock.PageStore.
func (p *Prefix) PageSize() int { return p.cfg.PageSize }

// ReadPage resolves the bytes of page `num` as of `state`, implementing
// spec invariant 1 ("read at state S returns the page's last committed
// image at or before S"). If num has never been written, returns a
// zero-filled page.
func (p *Prefix) ReadPage(num PageNum, state StateNum) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	refs := p.versions[num]
	if len(refs) == 0 {
		return make([]byte, p.cfg.PageSize), nil
	}

	// Locate the latest version at or before `state`.
	idx := sort.Search(len(refs), func(i int) bool { return refs[i].state > state }) - 1
	if idx < 0 {
		return make([]byte, p.cfg.PageSize), nil
	}
	if state >= p.sb.NextState-1 && refs[idx].state == p.currentVersionState(num) {
		// Fast path: requested state is at or past the latest committed
		// version, which also lives in the direct-mapped data file.
		buf := make([]byte, p.cfg.PageSize)
		if _, err := p.data.ReadAt(buf, int64(num)*int64(p.cfg.PageSize)); err != nil && err != io.EOF {
			return nil, errs.New(errs.KindIO, "pager.Prefix.ReadPage", err)
		}
		return buf, nil
	}
	return p.materialize(num, refs, idx)
}

func (p *Prefix) currentVersionState(num PageNum) StateNum {
	refs := p.versions[num]
	if len(refs) == 0 {
		return 0
	}
	return refs[len(refs)-1].state
}

// materialize walks backward from idx to the nearest full image, then
// replays diffs forward to reconstruct the page at refs[idx].state.
func (p *Prefix) materialize(num PageNum, refs []versionRef, idx int) ([]byte, error) {
	base := idx
	for base > 0 && refs[base].kind == versionKindDiff {
		base--
	}
	img, err := p.readVersionPayload(refs[base])
	if err != nil {
		return nil, err
	}
	if refs[base].kind != versionKindFull {
		img = make([]byte, p.cfg.PageSize) // no full image ever stored: treat as zero base
	}
	for i := base + 1; i <= idx; i++ {
		if refs[i].kind == versionKindFull {
			img, err = p.readVersionPayload(refs[i])
			if err != nil {
				return nil, err
			}
			continue
		}
		diff, err := p.readVersionPayload(refs[i])
		if err != nil {
			return nil, err
		}
		img = Apply(img, diff, nil)
	}
	return img, nil
}

func (p *Prefix) readVersionPayload(ref versionRef) ([]byte, error) {
	buf := make([]byte, ref.length)
	if _, err := p.ver.ReadAt(buf, ref.offset); err != nil {
		return nil, errs.New(errs.KindIO, "pager.Prefix.readVersionPayload", err)
	}
	return buf, nil
}

// WritePage records a new version of page `num` at `state` and updates the
// direct-mapped current image. Called by reslock.ResourceLock.Flush via the
// PageStore interface.
func (p *Prefix) WritePage(num PageNum, state StateNum, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writePageLocked(num, state, buf)
}

func (p *Prefix) writePageLocked(num PageNum, state StateNum, buf []byte) error {
	if len(buf) != p.cfg.PageSize {
		return errs.Newf(errs.KindInput, "pager.Prefix.WritePage", "buffer length %d != page size %d", len(buf), p.cfg.PageSize)
	}

	kind := versionKindFull
	payload := buf
	if refs := p.versions[num]; len(refs) > 0 {
		prev, err := p.materialize(num, refs, len(refs)-1)
		if err == nil {
			if d, ok := Diff(prev, buf); ok {
				kind = versionKindDiff
				payload = d
			}
		}
	}

	off, err := p.appendVersion(state, num, kind, payload)
	if err != nil {
		return err
	}
	p.versions[num] = append(p.versions[num], versionRef{state: state, kind: kind, offset: off, length: int32(len(payload))})

	if _, err := p.data.WriteAt(buf, int64(num)*int64(p.cfg.PageSize)); err != nil {
		return errs.New(errs.KindIO, "pager.Prefix.WritePage", err)
	}

	if frame := p.topAtomicFrame(); frame != nil {
		frame[num] = struct{}{}
	}
	return nil
}

func (p *Prefix) appendVersion(state StateNum, num PageNum, kind byte, payload []byte) (int64, error) {
	hdr := make([]byte, versionHeaderSize)
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(state))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(num))
	hdr[16] = kind
	binary.LittleEndian.PutUint32(hdr[17:21], uint32(len(payload)))

	block := append(hdr, payload...)
	crc := crc32.ChecksumIEEE(block)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	block = append(block, crcBuf[:]...)

	n, err := p.ver.WriteAt(block, p.verPos)
	if err != nil {
		return 0, errs.New(errs.KindIO, "pager.Prefix.appendVersion", err)
	}
	payloadOffset := p.verPos + versionHeaderSize
	p.verPos += int64(n)
	return payloadOffset, nil
}

// AllocPage grows the prefix by one page (or reuses a freed one) and
// returns its number, ready to be written at the next commit.
func (p *Prefix) AllocPage() PageNum {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pn, ok := p.freeMgr.Alloc(); ok {
		return pn
	}
	pn := p.sb.NextPageNum
	p.sb.NextPageNum++
	return pn
}

// FreePage releases a page back to the free manager for reuse by future
// allocations (used by GC0 when an object's last reference is dropped).
func (p *Prefix) FreePage(pn PageNum) {
	p.freeMgr.Free(pn)
}

// AllocContiguousPages grows the prefix by n pages guaranteed to have
// consecutive page numbers, returning the first. Used by memspace to back
// a slab with a single linear byte range. Only ever draws from the
// high-water mark, never the free list, since reused free pages cannot be
// guaranteed contiguous with their neighbors — freed pages are handed out
// only by AllocPage, one at a time, a documented simplification relative
// to a real slab-aware free list.
//
// Returns uint64 to match memspace.PageSource's signature; PageNum is an
// alias of uint64, so the two are the same type.
func (p *Prefix) AllocContiguousPages(n int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	first := p.sb.NextPageNum
	p.sb.NextPageNum += PageNum(n)
	return uint64(first)
}

// BeginAtomic pushes a new nested-transaction frame (spec's beginAtomic).
func (p *Prefix) BeginAtomic() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.atomicStack = append(p.atomicStack, make(map[PageNum]struct{}))
}

func (p *Prefix) topAtomicFrame() map[PageNum]struct{} {
	if len(p.atomicStack) == 0 {
		return nil
	}
	return p.atomicStack[len(p.atomicStack)-1]
}

// EndAtomic pops the current nested-transaction frame. If commit is false,
// every page version recorded within the frame (and not present in an
// outer frame) is discarded, rolling storage back to its pre-frame state.
func (p *Prefix) EndAtomic(commit bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.atomicStack) == 0 {
		return errs.New(errs.KindInternal, "pager.Prefix.EndAtomic", fmt.Errorf("no open atomic section"))
	}
	frame := p.atomicStack[len(p.atomicStack)-1]
	p.atomicStack = p.atomicStack[:len(p.atomicStack)-1]
	if commit {
		if outer := p.topAtomicFrame(); outer != nil {
			for pn := range frame {
				outer[pn] = struct{}{}
			}
		}
		return nil
	}
	for pn := range frame {
		if refs := p.versions[pn]; len(refs) > 0 {
			p.versions[pn] = refs[:len(refs)-1]
		}
	}
	return nil
}

// Commit finalizes a transaction: bumps the state number, appends a
// change-log entry listing every page touched, checks the meta stream, and
// persists the superblock. Returns the new current state number.
func (p *Prefix) Commit(dirtyPages []PageNum) (StateNum, error) {
	p.mu.Lock()
	state := p.sb.NextState
	p.sb.NextState++
	sbPath := filepath.Join(p.dir, "superblock.db")
	sb := p.sb.Clone()
	pageSize := p.cfg.PageSize
	p.mu.Unlock()

	if _, err := p.changeLog.Append(ChangeLogEntry{
		State:          state,
		EndStoragePage: sb.NextPageNum,
		ModifiedPages:  dirtyPages,
	}); err != nil {
		return 0, errs.New(errs.KindIO, "pager.Prefix.Commit", err)
	}
	if _, err := p.metaStream.CheckAndAppend(state, p.changeLog.Tail()); err != nil {
		return 0, errs.New(errs.KindIO, "pager.Prefix.Commit", err)
	}
	sb.ChangeLogEnd = uint64(p.changeLog.Tail())
	p.mu.Lock()
	p.sb.ChangeLogEnd = sb.ChangeLogEnd
	p.mu.Unlock()
	if err := persistSuperblock(sbPath, sb, pageSize); err != nil {
		return 0, err
	}
	p.log.Debug("committed", zap.Uint64("state", state), zap.Int("dirty_pages", len(dirtyPages)))
	return state, nil
}

// CurrentState returns the last committed state number.
func (p *Prefix) CurrentState() StateNum {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sb.NextState - 1
}

// Refresh re-reads the superblock from disk, picking up commits made by
// another handle onto the same prefix directory (spec's cross-process
// refresh; within one process this also observes commits from sibling
// fixtures sharing a Workspace).
func (p *Prefix) Refresh() (StateNum, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, err := os.ReadFile(filepath.Join(p.dir, "superblock.db"))
	if err != nil {
		return 0, errs.New(errs.KindIO, "pager.Prefix.Refresh", err)
	}
	sb, err := UnmarshalSuperblock(buf)
	if err != nil {
		return 0, err
	}
	p.sb = sb
	return p.sb.NextState - 1, nil
}

// MapRange resolves a byte range at addr into a reslock.Lock: a single
// ResourceLock if the range fits in one page, or a BoundaryLock spanning
// two if it straddles a page boundary. Implements spec §4.1's mapRange
// contract; the access-mode flags (read/write/create/no_flush/no_cache/
// rely) pass straight through to reslock's construction semantics.
func (p *Prefix) MapRange(addr memspace.Address, size int, mode reslock.AccessMode) (reslock.Lock, error) {
	pageSize := p.cfg.PageSize
	pageNum, inPage := addr.PageOffset(pageSize)
	readState := p.CurrentState()
	create := mode.Has(reslock.AccessCreate)
	write := mode.Has(reslock.AccessWrite)

	p.mu.RLock()
	pendingState := p.sb.NextState
	p.mu.RUnlock()

	// Read-only locks (no write/create promotion pending) are safe to
	// share across callers, since nothing ever mutates them in place —
	// Modify() on a read-only lock fails before any byte changes. Sharing
	// them is what reslock.NewResourceLock's doc comment calls "the
	// cache's already-built lock". Write/create locks stay private per
	// call: each transaction needs its own buffer.
	shareable := !write && !create && !mode.Has(reslock.AccessNoCache) && p.cache != nil

	newLock := func(pn PageNum) (*reslock.ResourceLock, error) {
		if shareable {
			if lk, ok := p.cache.FindRange(pn, 0, readState, readState); ok {
				if rl, ok := lk.(*reslock.ResourceLock); ok {
					return rl, nil
				}
			}
		}
		rl, err := reslock.NewResourceLock(p, pn, mode, readState, create)
		if err != nil {
			return nil, err
		}
		// A write-capable lock must land its Flush at the in-progress
		// transaction's state, never at the already-committed readState it
		// was constructed (and, for non-create locks, read) at — this is
		// the CoW promotion spec §4.2 describes ("updateStateNum performs
		// CoW promotion ... advances the lock for a new transaction").
		if (write || create) && pendingState > readState {
			if err := rl.UpdateStateNum(pendingState); err != nil {
				return nil, err
			}
		}
		if shareable {
			p.cache.Put(pn, rl, pageSize)
		}
		return rl, nil
	}

	if inPage+size <= pageSize {
		rl, err := newLock(PageNum(pageNum))
		if err != nil {
			return nil, err
		}
		if inPage != 0 {
			return windowedLock{rl, inPage, size}, nil
		}
		return rl, nil
	}

	left, err := newLock(PageNum(pageNum))
	if err != nil {
		return nil, err
	}
	right, err := newLock(PageNum(pageNum + 1))
	if err != nil {
		return nil, err
	}
	return reslock.NewBoundaryLock(left, right, inPage, size), nil
}

// windowedLock restricts a ResourceLock's full-page buffer to the
// requested [off, off+size) sub-range, for ranges that start mid-page but
// do not cross into the next one.
type windowedLock struct {
	*reslock.ResourceLock
	off, size int
}

func (w windowedLock) Bytes() []byte {
	full := w.ResourceLock.Bytes()
	return full[w.off : w.off+w.size]
}

func (w windowedLock) Modify() ([]byte, error) {
	full, err := w.ResourceLock.Modify()
	if err != nil {
		return nil, err
	}
	return full[w.off : w.off+w.size], nil
}

// SetCache attaches a PrefixCache used to share freshly-built read-only
// locks across callers (spec §4.3). Passing nil (the default) disables
// caching; a Workspace wires one shared Recycler per prefix's own
// PrefixCache instance after OpenPrefix.
func (p *Prefix) SetCache(pc *cache.PrefixCache) { p.cache = pc }

// Snapshot returns a read-only view of the prefix pinned to `state`.
func (p *Prefix) Snapshot(state StateNum) *View {
	return &View{prefix: p, state: state}
}

// Close flushes and closes every underlying file.
func (p *Prefix) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range []io.Closer{p.data, p.ver, p.changeLog, p.metaStream} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return errs.New(errs.KindIO, "pager.Prefix.Close", firstErr)
	}
	return nil
}

// View is a read-only handle onto a prefix pinned to one state number,
// implementing reslock.PageStore for read locks so a fixed snapshot never
// observes later commits (spec's getSnapshot).
type View struct {
	prefix *Prefix
	state  StateNum
}

func (v *View) PageSize() int { return v.prefix.PageSize() }

func (v *View) ReadPage(num PageNum, _ StateNum) ([]byte, error) {
	return v.prefix.ReadPage(num, v.state)
}

func (v *View) WritePage(PageNum, StateNum, []byte) error {
	return errs.New(errs.KindInput, "pager.View.WritePage", fmt.Errorf("snapshot views are read-only"))
}

// State returns the pinned state number.
func (v *View) State() StateNum { return v.state }

// CurrentState satisfies the vobject.Store/object-model contract some
// callers expect regardless of whether they hold a live Prefix or a
// pinned View.
func (v *View) CurrentState() uint64 { return uint64(v.state) }

// MapRange resolves addr against the pinned state, always read-only —
// spec's getSnapshot contract ("fixtures refuse modify()"). Any write or
// create access mode is rejected outright rather than silently downgraded.
func (v *View) MapRange(addr memspace.Address, size int, mode reslock.AccessMode) (reslock.Lock, error) {
	if mode.Has(reslock.AccessWrite) || mode.Has(reslock.AccessCreate) {
		return nil, errs.New(errs.KindInput, "pager.View.MapRange", fmt.Errorf("snapshot views are read-only"))
	}
	pageSize := v.prefix.PageSize()
	pageNum, inPage := addr.PageOffset(pageSize)

	if inPage+size <= pageSize {
		rl, err := reslock.NewResourceLock(v, PageNum(pageNum), mode, uint64(v.state), false)
		if err != nil {
			return nil, err
		}
		if inPage != 0 {
			return windowedLock{rl, inPage, size}, nil
		}
		return rl, nil
	}

	left, err := reslock.NewResourceLock(v, PageNum(pageNum), mode, uint64(v.state), false)
	if err != nil {
		return nil, err
	}
	right, err := reslock.NewResourceLock(v, PageNum(pageNum+1), mode, uint64(v.state), false)
	if err != nil {
		return nil, err
	}
	return reslock.NewBoundaryLock(left, right, inPage, size), nil
}
