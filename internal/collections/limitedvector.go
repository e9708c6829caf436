package collections

import (
	"sync"
	"sync/atomic"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
)

// LimitedVector is a single indexing block of fixed capacity with
// atomic-increment slot assignment (spec's LimitedVector<T>): concurrent
// appenders race only on the slot counter, then write their own slot
// independently.
type LimitedVector[T any] struct {
	mu       sync.RWMutex
	slots    []T
	assigned atomic.Int64
	capacity int
}

// NewLimitedVector creates a LimitedVector with a fixed capacity.
func NewLimitedVector[T any](capacity int) *LimitedVector[T] {
	return &LimitedVector[T]{slots: make([]T, capacity), capacity: capacity}
}

// Append atomically reserves the next slot and writes val into it,
// returning the slot index. Fails with OutOfDiskSpace if the block is full
// — callers should start a new block (spec's "one indexing block" wording
// implies a chain of blocks above this type; block chaining lives in the
// caller, e.g. the tag index's per-tag posting list).
func (v *LimitedVector[T]) Append(val T) (int, error) {
	idx := int(v.assigned.Add(1)) - 1
	if idx >= v.capacity {
		v.assigned.Add(-1)
		return 0, errs.New(errs.KindOutOfDiskSpace, "collections.LimitedVector.Append", nil)
	}
	v.mu.Lock()
	v.slots[idx] = val
	v.mu.Unlock()
	return idx, nil
}

// At returns the value at idx.
func (v *LimitedVector[T]) At(idx int) (T, error) {
	var zero T
	if idx < 0 || idx >= int(v.assigned.Load()) {
		return zero, errs.Newf(errs.KindInput, "collections.LimitedVector.At", "index %d out of range", idx)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.slots[idx], nil
}

// Len returns the number of slots assigned so far.
func (v *LimitedVector[T]) Len() int { return int(v.assigned.Load()) }

// Full reports whether the block's capacity has been exhausted.
func (v *LimitedVector[T]) Full() bool { return int(v.assigned.Load()) >= v.capacity }

// LimitedMatrix is the two-dimensional counterpart (spec's
// VLimitedMatrix<T>): a fixed number of rows, each a LimitedVector of
// fixed capacity, used for small per-object attribute tables (e.g. the
// sparse tail of a PosVT).
type LimitedMatrix[T any] struct {
	rowCap int
	rows   []*LimitedVector[T]
}

// NewLimitedMatrix creates a LimitedMatrix with rowCount rows, each with
// capacity rowCap.
func NewLimitedMatrix[T any](rowCount, rowCap int) *LimitedMatrix[T] {
	m := &LimitedMatrix[T]{rowCap: rowCap, rows: make([]*LimitedVector[T], rowCount)}
	for i := range m.rows {
		m.rows[i] = NewLimitedVector[T](rowCap)
	}
	return m
}

// AppendTo appends val to the given row.
func (m *LimitedMatrix[T]) AppendTo(row int, val T) (int, error) {
	if row < 0 || row >= len(m.rows) {
		return 0, errs.Newf(errs.KindInput, "collections.LimitedMatrix.AppendTo", "row %d out of range", row)
	}
	return m.rows[row].Append(val)
}

// At returns the value at (row, idx).
func (m *LimitedMatrix[T]) At(row, idx int) (T, error) {
	var zero T
	if row < 0 || row >= len(m.rows) {
		return zero, errs.Newf(errs.KindInput, "collections.LimitedMatrix.At", "row %d out of range", row)
	}
	return m.rows[row].At(idx)
}
