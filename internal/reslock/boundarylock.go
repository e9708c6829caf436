package reslock

import "github.com/dbzero-software/dbzero-engine/internal/errs"

// BoundaryLock composes two adjacent ResourceLocks to present a single
// contiguous view over a byte range that straddles a page boundary. Grounded
// on spec §4.2's boundary-lock contract; mirrors the teacher's pattern of
// presenting a virtual contiguous slice over two buffer-pool frames for an
// overflow record that crosses a page (see overflow.go in the teacher).
type BoundaryLock struct {
	left, right *ResourceLock
	splitOff    int // byte offset within left.data where the range begins
	length      int

	// scratch is the materialized view handed out by Modify. It is the
	// single source of truth for Bytes() once Modify has been called, and
	// is scattered back into left.data/right.data on Flush so edits made
	// through the returned slice are not silently dropped.
	scratch []byte
}

// NewBoundaryLock builds a view of `length` bytes starting at byte offset
// splitOff within left's page, continuing into right's page.
func NewBoundaryLock(left, right *ResourceLock, splitOff, length int) *BoundaryLock {
	return &BoundaryLock{left: left, right: right, splitOff: splitOff, length: length}
}

// leftSpan returns how many of bl.length bytes live in left.data.
func (bl *BoundaryLock) leftSpan() int {
	leftPart := len(bl.left.data) - bl.splitOff
	if leftPart > bl.length {
		leftPart = bl.length
	}
	return leftPart
}

// materialize copies the spanned range out of the two underlying buffers.
func (bl *BoundaryLock) materialize() []byte {
	out := make([]byte, bl.length)
	leftPart := bl.leftSpan()
	copy(out[:leftPart], bl.left.data[bl.splitOff:bl.splitOff+leftPart])
	if leftPart < bl.length {
		copy(out[leftPart:], bl.right.data[:bl.length-leftPart])
	}
	return out
}

// scatter writes buf back across the left and right page buffers.
func (bl *BoundaryLock) scatter(buf []byte) {
	leftPart := bl.leftSpan()
	copy(bl.left.data[bl.splitOff:bl.splitOff+leftPart], buf[:leftPart])
	if leftPart < bl.length {
		copy(bl.right.data[:bl.length-leftPart], buf[leftPart:])
	}
}

// Bytes returns the current read view of the spanned range: the live
// scratch buffer if Modify has been called since the last Flush, otherwise
// a fresh materialization of the two underlying pages.
func (bl *BoundaryLock) Bytes() []byte {
	if bl.scratch != nil {
		return bl.scratch
	}
	return bl.materialize()
}

// Modify marks both halves dirty and returns a writable view of the
// spanned range. The returned slice is the single source of truth until
// the next Flush: edits written into it are scattered back into the left
// and right page buffers when Flush runs.
func (bl *BoundaryLock) Modify() ([]byte, error) {
	if _, err := bl.left.Modify(); err != nil {
		return nil, errs.New(errs.KindInput, "reslock.BoundaryLock.Modify", err)
	}
	if _, err := bl.right.Modify(); err != nil {
		return nil, errs.New(errs.KindInput, "reslock.BoundaryLock.Modify", err)
	}
	if bl.scratch == nil {
		bl.scratch = bl.materialize()
	}
	return bl.scratch, nil
}

// Flush scatters any pending scratch edits into the left and right page
// buffers, then flushes both underlying page locks.
func (bl *BoundaryLock) Flush() error {
	if bl.scratch != nil {
		bl.scatter(bl.scratch)
		bl.scratch = nil
	}
	if err := bl.left.Flush(); err != nil {
		return err
	}
	return bl.right.Flush()
}

// IsDirty reports whether either half has unflushed writes.
func (bl *BoundaryLock) IsDirty() bool { return bl.left.IsDirty() || bl.right.IsDirty() }

// StateNum returns the left page's state (both halves share a transaction's
// state number by construction).
func (bl *BoundaryLock) StateNum() StateNum { return bl.left.StateNum() }

// UpdateStateNum promotes both halves to a new state.
func (bl *BoundaryLock) UpdateStateNum(state StateNum) error {
	if err := bl.left.UpdateStateNum(state); err != nil {
		return err
	}
	return bl.right.UpdateStateNum(state)
}
