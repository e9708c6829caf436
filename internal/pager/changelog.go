package pager

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"sync"
)

// ───────────────────────────────────────────────────────────────────────────
// Change-log stream
// ───────────────────────────────────────────────────────────────────────────
//
// Append-only sequence of blocks, one per committed transaction:
//
//	[0:8]    StateNum          uint64 LE
//	[8:16]   EndStoragePageNum  uint64 LE — sentinel, the absolute storage
//	                            page number marking the end of this
//	                            transaction's allocated region
//	[16]     RLECompressed      byte (0/1)
//	[17:21]  EntryCount         uint32 LE — number of page numbers recorded
//	[21:25]  PayloadLen         uint32 LE
//	[25:25+PayloadLen]  Payload (sorted page numbers, raw or RLE, see below)
//	[...:+4] CRC32 of the entire block (header+payload)
//
// Payload encodings:
//   - raw:  EntryCount * uint64 LE page numbers, strictly increasing.
//   - RLE:  a sequence of (start uint64 varint, run-length uint64 varint)
//     pairs — used when consecutive page numbers in the sorted change set
//     are contiguous runs, which is common for a single table append.

const changeLogBlockHeaderSize = 8 + 8 + 1 + 4 + 4

// ChangeLogEntry is one committed transaction's record.
type ChangeLogEntry struct {
	State           StateNum
	EndStoragePage  PageNum
	ModifiedPages   []PageNum // sorted ascending
}

// ChangeLog is the append-only per-prefix change-log file.
type ChangeLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
	pos  int64 // next write offset
}

// OpenChangeLog opens or creates the change-log file at path.
func OpenChangeLog(path string) (*ChangeLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open change log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat change log: %w", err)
	}
	return &ChangeLog{f: f, path: path, pos: info.Size()}, nil
}

// Close closes the underlying file.
func (cl *ChangeLog) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.f.Close()
}

// Tail returns the current byte length of the change-log file.
func (cl *ChangeLog) Tail() int64 {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.pos
}

// Append writes one committed transaction's change-log entry. RLE encoding
// is chosen automatically when it shrinks the payload; rle_compress is
// reported back for the meta-stream/inspection tooling.
func (cl *ChangeLog) Append(entry ChangeLogEntry) (rleUsed bool, err error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	pages := append([]PageNum(nil), entry.ModifiedPages...)
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })

	rlePayload := encodeRLEPages(pages)
	rawPayload := encodeRawPages(pages)

	payload := rawPayload
	rleUsed = false
	if len(rlePayload) < len(rawPayload) {
		payload = rlePayload
		rleUsed = true
	}

	block := make([]byte, changeLogBlockHeaderSize+len(payload)+4)
	binary.LittleEndian.PutUint64(block[0:8], uint64(entry.State))
	binary.LittleEndian.PutUint64(block[8:16], uint64(entry.EndStoragePage))
	if rleUsed {
		block[16] = 1
	}
	binary.LittleEndian.PutUint32(block[17:21], uint32(len(pages)))
	binary.LittleEndian.PutUint32(block[21:25], uint32(len(payload)))
	copy(block[changeLogBlockHeaderSize:], payload)
	crc := crc32.ChecksumIEEE(block[:changeLogBlockHeaderSize+len(payload)])
	binary.LittleEndian.PutUint32(block[len(block)-4:], crc)

	n, err := cl.f.WriteAt(block, cl.pos)
	if err != nil {
		return rleUsed, fmt.Errorf("pager: write change log: %w", err)
	}
	cl.pos += int64(n)
	return rleUsed, nil
}

// ReadFrom streams all change-log entries starting at byte offset `from`,
// stopping at the first corrupt or truncated block (CRC/size mismatch is
// treated as "file truncated to the last good entry", per spec §4.1).
func (cl *ChangeLog) ReadFrom(from int64) ([]ChangeLogEntry, int64, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	r := io.NewSectionReader(cl.f, from, cl.pos-from)
	br := bufio.NewReader(r)

	var entries []ChangeLogEntry
	pos := from
	for {
		hdr := make([]byte, changeLogBlockHeaderSize)
		n, err := io.ReadFull(br, hdr)
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			break // truncated header: stop, last good position is `pos`
		}
		payloadLen := binary.LittleEndian.Uint32(hdr[21:25])
		rest := make([]byte, int(payloadLen)+4)
		if _, err := io.ReadFull(br, rest); err != nil {
			break // truncated payload/CRC
		}
		full := append(hdr, rest...)
		storedCRC := binary.LittleEndian.Uint32(full[len(full)-4:])
		computedCRC := crc32.ChecksumIEEE(full[:len(full)-4])
		if storedCRC != computedCRC {
			break // corrupt block: treat file as truncated here
		}

		entry := ChangeLogEntry{
			State:          StateNum(binary.LittleEndian.Uint64(hdr[0:8])),
			EndStoragePage: PageNum(binary.LittleEndian.Uint64(hdr[8:16])),
		}
		rleCompressed := hdr[16] == 1
		entryCount := binary.LittleEndian.Uint32(hdr[17:21])
		payload := rest[:payloadLen]
		if rleCompressed {
			entry.ModifiedPages = decodeRLEPages(payload, int(entryCount))
		} else {
			entry.ModifiedPages = decodeRawPages(payload)
		}
		entries = append(entries, entry)
		pos += int64(len(full))
	}
	return entries, pos, nil
}

func encodeRawPages(pages []PageNum) []byte {
	buf := make([]byte, len(pages)*8)
	for i, p := range pages {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(p))
	}
	return buf
}

func decodeRawPages(buf []byte) []PageNum {
	pages := make([]PageNum, len(buf)/8)
	for i := range pages {
		pages[i] = PageNum(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return pages
}

// encodeRLEPages encodes a sorted page-number list as (start, run-length)
// varint pairs, collapsing consecutive runs — effective when a transaction
// touches a contiguous range of pages (e.g. a bulk append).
func encodeRLEPages(pages []PageNum) []byte {
	if len(pages) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(pages)*2)
	i := 0
	for i < len(pages) {
		start := pages[i]
		run := uint64(1)
		for i+int(run) < len(pages) && pages[i+int(run)] == start+PageNum(run) {
			run++
		}
		var tmp [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(tmp[:], uint64(start))
		buf = append(buf, tmp[:n]...)
		n = binary.PutUvarint(tmp[:], run)
		buf = append(buf, tmp[:n]...)
		i += int(run)
	}
	return buf
}

func decodeRLEPages(buf []byte, expectedCount int) []PageNum {
	pages := make([]PageNum, 0, expectedCount)
	r := buf
	for len(r) > 0 {
		start, n := binary.Uvarint(r)
		r = r[n:]
		run, n := binary.Uvarint(r)
		r = r[n:]
		for k := uint64(0); k < run; k++ {
			pages = append(pages, PageNum(start+k))
		}
	}
	return pages
}
