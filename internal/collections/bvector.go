// Package collections implements the v-object container building blocks
// from spec §4.5: a paged vector with O(1) amortized append, a run-length
// sequence encoding, and a content-addressed interning pool. These are
// in-memory generic containers overlaying the same growth/addressing
// patterns the original's page-backed containers use, adapted to Go
// generics rather than the C++ template-per-type approach — grounded on
// the teacher's slotted_page.go (indirection between a logical row index
// and its physical page slot).
package collections

import "github.com/dbzero-software/dbzero-engine/internal/errs"

// BVector is a paged vector: elements are grouped into fixed-size pages
// with an indirection block mapping index -> (page, offset), giving O(1)
// amortized append and O(1) random access without reallocating the whole
// backing array on growth (spec: v_bvector<T>).
type BVector[T any] struct {
	pageLen int
	pages   [][]T
	length  int
}

// NewBVector creates a BVector grouping elements into pages of pageLen.
func NewBVector[T any](pageLen int) *BVector[T] {
	if pageLen <= 0 {
		pageLen = 64
	}
	return &BVector[T]{pageLen: pageLen}
}

// Append adds v to the end, growing a new backing page if the current one
// is full.
func (v *BVector[T]) Append(val T) int {
	idx := v.length
	page, off := idx/v.pageLen, idx%v.pageLen
	if page >= len(v.pages) {
		v.pages = append(v.pages, make([]T, v.pageLen))
	}
	v.pages[page][off] = val
	v.length++
	return idx
}

// At returns the element at idx.
func (v *BVector[T]) At(idx int) (T, error) {
	var zero T
	if idx < 0 || idx >= v.length {
		return zero, errs.Newf(errs.KindInput, "collections.BVector.At", "index %d out of range [0,%d)", idx, v.length)
	}
	page, off := idx/v.pageLen, idx%v.pageLen
	return v.pages[page][off], nil
}

// Set overwrites the element at idx.
func (v *BVector[T]) Set(idx int, val T) error {
	if idx < 0 || idx >= v.length {
		return errs.Newf(errs.KindInput, "collections.BVector.Set", "index %d out of range [0,%d)", idx, v.length)
	}
	page, off := idx/v.pageLen, idx%v.pageLen
	v.pages[page][off] = val
	return nil
}

// Len returns the number of elements appended.
func (v *BVector[T]) Len() int { return v.length }

// Truncate shrinks the vector to n elements, discarding any pages that
// become entirely unused.
func (v *BVector[T]) Truncate(n int) {
	if n >= v.length {
		return
	}
	v.length = n
	keepPages := (n + v.pageLen - 1) / v.pageLen
	if keepPages < len(v.pages) {
		v.pages = v.pages[:keepPages]
	}
}

// ForEach visits every element in index order.
func (v *BVector[T]) ForEach(fn func(idx int, val T)) {
	for i := 0; i < v.length; i++ {
		page, off := i/v.pageLen, i%v.pageLen
		fn(i, v.pages[page][off])
	}
}
