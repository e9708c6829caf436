// Package pager implements the block I/O and diff-codec layer of the
// storage engine: fixed-size pages, a per-page header with a CRC, and the
// append-only change-log / meta-stream that record which pages changed at
// each committed state number.
//
// The on-disk layout is bit-exact with spec §6: a superblock page followed
// by the slab region, a change-log stream, and an optional co-located meta
// stream. Everything above this package (memspace, v-objects, collections)
// treats page contents as opaque bytes; pager only knows about pages,
// states, and diffs.
package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	// DefaultPageSize matches spec §6's documented default.
	DefaultPageSize = 4096
	// MinPageSize is the smallest page size accepted.
	MinPageSize = 512
	// MaxPageSize is the largest page size accepted.
	MaxPageSize = 65536

	// PageHeaderSize is the size of the common page header in bytes.
	//
	//	[0]     PageType  (1 byte)
	//	[1]     Flags     (1 byte)
	//	[2:4]   Reserved  (2 bytes)
	//	[4:12]  PageNum   (8 bytes, uint64 LE)
	//	[12:20] StateNum  (8 bytes, uint64 LE) — state in which page was written
	//	[20:24] CRC32     (4 bytes, uint32 LE)
	//	[24:32] Reserved  (8 bytes)
	PageHeaderSize = 32

	// InvalidPageNum is the null page pointer (page 0 is always the superblock).
	InvalidPageNum PageNum = 0
)

// PageNum identifies a page within a prefix's block file. A type alias
// (not a distinct defined type) so it is interchangeable with reslock's
// own PageNum alias — reslock.PageStore's ReadPage/WritePage signatures
// must match exactly for Prefix to satisfy that interface, and reslock
// deliberately avoids importing this package.
type PageNum = uint64

// StateNum is the monotonic per-prefix version counter from spec §3, also
// a type alias for the same reason as PageNum.
type StateNum = uint64

// PageType identifies the structural role of a page.
type PageType uint8

const (
	PageTypeSuperblock PageType = 0x01
	PageTypeData       PageType = 0x02
	PageTypeFreeList   PageType = 0x03
	PageTypeMeta       PageType = 0x04
)

func (pt PageType) String() string {
	switch pt {
	case PageTypeSuperblock:
		return "Superblock"
	case PageTypeData:
		return "Data"
	case PageTypeFreeList:
		return "FreeList"
	case PageTypeMeta:
		return "Meta"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(pt))
	}
}

// Header is the 32-byte common header present at the start of every page.
type Header struct {
	Type     PageType
	Flags    uint8
	Reserved uint16
	Num      PageNum
	State    StateNum
	CRC      uint32
}

// MarshalHeader writes h into the first PageHeaderSize bytes of buf.
func MarshalHeader(h *Header, buf []byte) {
	if len(buf) < PageHeaderSize {
		panic("pager: buffer too small for page header")
	}
	buf[0] = byte(h.Type)
	buf[1] = h.Flags
	binary.LittleEndian.PutUint16(buf[2:4], h.Reserved)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.Num))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(h.State))
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC)
}

// UnmarshalHeader reads a Header from the first PageHeaderSize bytes of buf.
func UnmarshalHeader(buf []byte) Header {
	var h Header
	h.Type = PageType(buf[0])
	h.Flags = buf[1]
	h.Reserved = binary.LittleEndian.Uint16(buf[2:4])
	h.Num = PageNum(binary.LittleEndian.Uint64(buf[4:12]))
	h.State = StateNum(binary.LittleEndian.Uint64(buf[12:20]))
	h.CRC = binary.LittleEndian.Uint32(buf[20:24])
	return h
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ComputeCRC computes the CRC32-C of a full page, treating the CRC field
// (bytes 20..24) as zero during computation.
func ComputeCRC(page []byte) uint32 {
	h := crc32.New(crcTable)
	h.Write(page[:20])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(page[24:])
	return h.Sum32()
}

// SetCRC computes and writes the CRC into the page header.
func SetCRC(page []byte) {
	binary.LittleEndian.PutUint32(page[20:24], ComputeCRC(page))
}

// VerifyCRC checks the CRC32 of a page against its stored value.
func VerifyCRC(page []byte) error {
	stored := binary.LittleEndian.Uint32(page[20:24])
	computed := ComputeCRC(page)
	if stored != computed {
		num := PageNum(binary.LittleEndian.Uint64(page[4:12]))
		return fmt.Errorf("pager: CRC mismatch on page %d: stored=%08x computed=%08x", num, stored, computed)
	}
	return nil
}

// NewPage allocates a zeroed page buffer of pageSize and writes its header.
func NewPage(pageSize int, pt PageType, num PageNum, state StateNum) []byte {
	buf := make([]byte, pageSize)
	h := &Header{Type: pt, Num: num, State: state}
	MarshalHeader(h, buf)
	return buf
}
