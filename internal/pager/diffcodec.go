package pager

import "encoding/binary"

// ───────────────────────────────────────────────────────────────────────────
// Diff codec
// ───────────────────────────────────────────────────────────────────────────
//
// Encodes the byte-level difference between two equal-sized page images as
// a sequence of (offset, length, data) change-runs. Mirrors the source's
// DiffWriter/o_diff_header framing (a run count, then each run's bytes) but
// keeps the whole thing in one page-sized buffer rather than chaining
// continuation pages — the continuation case instead falls back to full-page
// storage, the strategy spec §8 invariant 2 asks for.
//
// Wire format of a diff buffer:
//
//	[0:2]  RunCount  uint16 LE
//	For each run:
//	  [0:4]  Offset  uint32 LE
//	  [4:6]  Length  uint16 LE
//	  [6:6+Length] Data

const (
	diffHeaderSize = 2
	diffRunHeader  = 6
	// diffBudgetDivisor bounds the diff size relative to the page, matching
	// the teacher's overflowThresholdFor sizing logic (roughly 1/4 of usable
	// page space): beyond this, full-page storage is cheaper than the diff.
	diffBudgetDivisor = 4
)

// Diff computes the byte-run difference between a (old) and b (new), both of
// the same length. It returns ok=false when the encoded diff would exceed
// len(a)/diffBudgetDivisor bytes, signaling the caller to fall back to
// storing the full page image instead.
func Diff(a, b []byte) (diff []byte, ok bool) {
	if len(a) != len(b) {
		return nil, false
	}
	budget := len(a) / diffBudgetDivisor
	type run struct {
		off, length int
	}
	var runs []run
	i := 0
	for i < len(a) {
		if a[i] == b[i] {
			i++
			continue
		}
		start := i
		for i < len(a) && a[i] != b[i] {
			i++
		}
		runs = append(runs, run{start, i - start})
	}

	size := diffHeaderSize
	for _, r := range runs {
		size += diffRunHeader + r.length
	}
	if size > budget || len(runs) > 0xFFFF {
		return nil, false
	}

	buf := make([]byte, diffHeaderSize, size)
	binary.LittleEndian.PutUint16(buf, uint16(len(runs)))
	for _, r := range runs {
		var hdr [diffRunHeader]byte
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(r.off))
		binary.LittleEndian.PutUint16(hdr[4:6], uint16(r.length))
		buf = append(buf, hdr[:]...)
		buf = append(buf, b[r.off:r.off+r.length]...)
	}
	return buf, true
}

// Apply reconstructs the new page image by applying diff on top of base.
// The caller-supplied dst, if non-nil and the right length, is reused.
func Apply(base, diff []byte, dst []byte) []byte {
	if len(dst) != len(base) {
		dst = make([]byte, len(base))
	}
	copy(dst, base)
	if len(diff) < diffHeaderSize {
		return dst
	}
	runCount := binary.LittleEndian.Uint16(diff[0:2])
	pos := diffHeaderSize
	for n := 0; n < int(runCount); n++ {
		if pos+diffRunHeader > len(diff) {
			break
		}
		off := int(binary.LittleEndian.Uint32(diff[pos : pos+4]))
		length := int(binary.LittleEndian.Uint16(diff[pos+4 : pos+6]))
		pos += diffRunHeader
		if pos+length > len(diff) || off+length > len(dst) {
			break
		}
		copy(dst[off:off+length], diff[pos:pos+length])
		pos += length
	}
	return dst
}
