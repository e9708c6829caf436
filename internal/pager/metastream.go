package pager

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// ───────────────────────────────────────────────────────────────────────────
// Meta stream
// ───────────────────────────────────────────────────────────────────────────
//
// A co-located file recording, every `step_size` bytes of cumulative growth
// of the managed streams (currently just the change log), a
// MetaEntry{state_num, [item{address, size}]}. On restart the pager reads
// the meta stream tail to seek close to the change-log's true end without
// scanning the whole file from byte zero — mirrors the source's
// MetaIOStream::checkAndAppend.
//
// Wire format, one entry per record:
//
//	[0:8]   StateNum   uint64 LE
//	[8:12]  ItemCount  uint32 LE
//	For each item:
//	  [0:8]  Address  uint64 LE (byte offset in the managed stream)
//	  [8:16] Size     uint64 LE (managed stream size at this position)

// MetaItem records a managed stream's position at a given state.
type MetaItem struct {
	Address uint64
	Size    uint64
}

// MetaEntry is one meta-stream record.
type MetaEntry struct {
	State StateNum
	Items []MetaItem
}

// MetaStream tracks cumulative growth of managed streams and appends an
// entry whenever that growth reaches StepSize bytes.
type MetaStream struct {
	mu            sync.Mutex
	f             *os.File
	stepSize      int64
	cumulative    int64
	lastSize      int64 // size of the managed stream at the last append
}

// OpenMetaStream opens or creates the meta-stream file.
func OpenMetaStream(path string, stepSize int64) (*MetaStream, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open meta stream: %w", err)
	}
	if stepSize <= 0 {
		stepSize = 16 << 20
	}
	return &MetaStream{f: f, stepSize: stepSize}, nil
}

// Close closes the underlying file.
func (ms *MetaStream) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.f.Close()
}

// CheckAndAppend records the managed stream's current size under state and,
// if cumulative growth since the last entry reached StepSize, appends a new
// meta entry referencing it.
func (ms *MetaStream) CheckAndAppend(state StateNum, managedStreamSize int64) (appended bool, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delta := managedStreamSize - ms.lastSize
	if delta < 0 {
		delta = managedStreamSize // stream was truncated/reopened
	}
	ms.cumulative += delta
	ms.lastSize = managedStreamSize
	if ms.cumulative < ms.stepSize {
		return false, nil
	}
	ms.cumulative = 0

	entry := MetaEntry{State: state, Items: []MetaItem{{Address: uint64(managedStreamSize), Size: uint64(managedStreamSize)}}}
	if err := ms.appendLocked(entry); err != nil {
		return false, err
	}
	return true, nil
}

func (ms *MetaStream) appendLocked(entry MetaEntry) error {
	size := 8 + 4 + len(entry.Items)*16
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(entry.State))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(entry.Items)))
	off := 12
	for _, it := range entry.Items {
		binary.LittleEndian.PutUint64(buf[off:off+8], it.Address)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], it.Size)
		off += 16
	}
	info, err := ms.f.Stat()
	if err != nil {
		return fmt.Errorf("pager: stat meta stream: %w", err)
	}
	if _, err := ms.f.WriteAt(buf, info.Size()); err != nil {
		return fmt.Errorf("pager: append meta stream: %w", err)
	}
	return nil
}

// Last returns the most recently appended meta entry, or ok=false if the
// meta stream is empty. Used to seed the change log's read position after
// a restart without scanning the full file.
func (ms *MetaStream) Last() (entry MetaEntry, ok bool, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	info, err := ms.f.Stat()
	if err != nil {
		return MetaEntry{}, false, fmt.Errorf("pager: stat meta stream: %w", err)
	}
	if info.Size() < 12 {
		return MetaEntry{}, false, nil
	}

	buf := make([]byte, info.Size())
	if _, err := ms.f.ReadAt(buf, 0); err != nil {
		return MetaEntry{}, false, fmt.Errorf("pager: read meta stream: %w", err)
	}

	// Walk entries sequentially; the format is self-describing so the last
	// complete record wins even after a truncated tail write.
	pos := 0
	var last MetaEntry
	found := false
	for pos+12 <= len(buf) {
		state := StateNum(binary.LittleEndian.Uint64(buf[pos : pos+8]))
		count := int(binary.LittleEndian.Uint32(buf[pos+8 : pos+12]))
		need := 12 + count*16
		if pos+need > len(buf) {
			break
		}
		items := make([]MetaItem, count)
		off := pos + 12
		for i := 0; i < count; i++ {
			items[i] = MetaItem{
				Address: binary.LittleEndian.Uint64(buf[off : off+8]),
				Size:    binary.LittleEndian.Uint64(buf[off+8 : off+16]),
			}
			off += 16
		}
		last = MetaEntry{State: state, Items: items}
		found = true
		pos += need
	}
	return last, found, nil
}
