package pager

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ───────────────────────────────────────────────────────────────────────────
// Superblock — page 0
// ───────────────────────────────────────────────────────────────────────────
//
// Layout (fits in one page):
//
//	Offset  Size  Field
//	──────  ────  ───────────────────
//	0       32    Common Header (Type=Superblock, Num=0)
//	32      8     Magic            [8]byte "DBZERO\x00\x00"
//	40      4     FormatVersion    uint32 LE
//	44      4     PageSize         uint32 LE
//	48      16    UUID             prefix identity
//	64      8     FirstStateNum    uint64 LE
//	72      8     NextStateNum     uint64 LE
//	80      8     NextPageNum      uint64 LE (high-water mark)
//	88      8     FreeListHead     uint64 LE (PageNum, 0 = empty)
//	96      8     ChangeLogEnd     uint64 LE (byte offset of the change-log tail)
//	104     8     MetaStreamEnd    uint64 LE (byte offset of the meta-stream tail)
//	112     remaining  Reserved (zero-filled)

const (
	SuperblockMagic       = "DBZERO\x00\x00"
	CurrentFormatVersion  = uint32(1)
	sbMagicOff            = PageHeaderSize
	sbFormatVersionOff    = sbMagicOff + 8
	sbPageSizeOff         = sbFormatVersionOff + 4
	sbUUIDOff             = sbPageSizeOff + 4
	sbFirstStateOff       = sbUUIDOff + 16
	sbNextStateOff        = sbFirstStateOff + 8
	sbNextPageNumOff      = sbNextStateOff + 8
	sbFreeListHeadOff     = sbNextPageNumOff + 8
	sbChangeLogEndOff     = sbFreeListHeadOff + 8
	sbMetaStreamEndOff    = sbChangeLogEndOff + 8
)

// Superblock holds the parsed contents of page 0.
type Superblock struct {
	FormatVersion uint32
	PageSize      uint32
	UUID          uuid.UUID
	FirstState    StateNum
	NextState     StateNum
	NextPageNum   PageNum
	FreeListHead  PageNum
	ChangeLogEnd  uint64
	MetaStreamEnd uint64
}

// NewSuperblock creates a fresh Superblock for a new prefix file.
func NewSuperblock(pageSize int) *Superblock {
	return &Superblock{
		FormatVersion: CurrentFormatVersion,
		PageSize:      uint32(pageSize),
		UUID:          uuid.New(),
		FirstState:    1,
		NextState:     1,
		NextPageNum:   1, // page 0 is the superblock itself
		FreeListHead:  InvalidPageNum,
	}
}

// Marshal serializes sb into a full page buffer of the given size.
func (sb *Superblock) Marshal(pageSize int) []byte {
	buf := NewPage(pageSize, PageTypeSuperblock, 0, sb.NextState)
	copy(buf[sbMagicOff:sbMagicOff+8], SuperblockMagic)
	binary.LittleEndian.PutUint32(buf[sbFormatVersionOff:], sb.FormatVersion)
	binary.LittleEndian.PutUint32(buf[sbPageSizeOff:], sb.PageSize)
	copy(buf[sbUUIDOff:sbUUIDOff+16], sb.UUID[:])
	binary.LittleEndian.PutUint64(buf[sbFirstStateOff:], uint64(sb.FirstState))
	binary.LittleEndian.PutUint64(buf[sbNextStateOff:], uint64(sb.NextState))
	binary.LittleEndian.PutUint64(buf[sbNextPageNumOff:], uint64(sb.NextPageNum))
	binary.LittleEndian.PutUint64(buf[sbFreeListHeadOff:], uint64(sb.FreeListHead))
	binary.LittleEndian.PutUint64(buf[sbChangeLogEndOff:], sb.ChangeLogEnd)
	binary.LittleEndian.PutUint64(buf[sbMetaStreamEndOff:], sb.MetaStreamEnd)
	SetCRC(buf)
	return buf
}

// UnmarshalSuperblock parses and validates page 0.
func UnmarshalSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < MinPageSize {
		return nil, fmt.Errorf("pager: superblock page too small: %d bytes", len(buf))
	}
	if err := VerifyCRC(buf); err != nil {
		return nil, fmt.Errorf("pager: superblock: %w", err)
	}
	magic := string(buf[sbMagicOff : sbMagicOff+8])
	if magic != SuperblockMagic {
		return nil, fmt.Errorf("pager: bad magic %q, expected %q", magic, SuperblockMagic)
	}
	sb := &Superblock{
		FormatVersion: binary.LittleEndian.Uint32(buf[sbFormatVersionOff:]),
		PageSize:      binary.LittleEndian.Uint32(buf[sbPageSizeOff:]),
		FirstState:    StateNum(binary.LittleEndian.Uint64(buf[sbFirstStateOff:])),
		NextState:     StateNum(binary.LittleEndian.Uint64(buf[sbNextStateOff:])),
		NextPageNum:   PageNum(binary.LittleEndian.Uint64(buf[sbNextPageNumOff:])),
		FreeListHead:  PageNum(binary.LittleEndian.Uint64(buf[sbFreeListHeadOff:])),
		ChangeLogEnd:  binary.LittleEndian.Uint64(buf[sbChangeLogEndOff:]),
		MetaStreamEnd: binary.LittleEndian.Uint64(buf[sbMetaStreamEndOff:]),
	}
	copy(sb.UUID[:], buf[sbUUIDOff:sbUUIDOff+16])

	if sb.FormatVersion != CurrentFormatVersion {
		return nil, fmt.Errorf("pager: unsupported format version %d (build supports %d)",
			sb.FormatVersion, CurrentFormatVersion)
	}
	if sb.PageSize < MinPageSize || sb.PageSize > MaxPageSize {
		return nil, fmt.Errorf("pager: page size %d out of range [%d..%d]", sb.PageSize, MinPageSize, MaxPageSize)
	}
	if sb.PageSize&(sb.PageSize-1) != 0 {
		return nil, fmt.Errorf("pager: page size %d is not a power of two", sb.PageSize)
	}
	return sb, nil
}

// Clone returns a deep copy, used when building a read-only snapshot view.
func (sb *Superblock) Clone() *Superblock {
	c := *sb
	return &c
}
