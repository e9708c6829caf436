// Package ftindex implements the composable full-text / range-tree query
// iterators from spec §4.6-4.8: the FT_Iterator contract, composite nodes
// (AND/OR/ORX/ANDNOT/Sort/Range/Span/Slice), a tag index over tagged
// objects, and a range-tree typed-key index. Grounded on tinySQL's
// btree.go/btree_page.go for the underlying ordered-scan shape, with the
// composite-iterator algebra itself following spec §4.6's prose directly
// (no teacher file implements a composable iterator tree; this is the
// engine-specific query layer spec.md exists to describe).
package ftindex

import (
	"encoding/base32"
	"hash/fnv"
)

// Direction controls which way a seek or restart moves through key order.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Iterator is the FT_Iterator<Key> trait from spec §4.6. Key must be
// ordered; composite nodes compare keys with the supplied Less function at
// construction rather than requiring Key itself satisfy cmp.Ordered, so
// Key can be the engine's own Address or a typed range-tree key.
type Iterator[K any] interface {
	// IsEnd reports whether the iterator has been exhausted or stopped.
	IsEnd() bool
	// Next advances the iterator and returns the new current key, or
	// ok=false if it is now at end.
	Next() (K, bool)
	// GetKey returns the current key without advancing.
	GetKey() K
	// Join seeks to the first key >= k (Forward) or <= k (Backward)
	// satisfying this node, returning false if no such key exists.
	Join(k K, dir Direction) bool
	// JoinBound is a Join with an inclusive bound hint used by Range/Span
	// nodes to clip their scan without a full external seek.
	JoinBound(k K) bool
	// Peek reports the next key this node would emit without consuming it.
	Peek() (K, bool)
	// LimitBy restricts further emission to keys not past k (inclusive),
	// returning false once every remaining key would exceed the limit.
	LimitBy(k K) bool
	// Stop is a one-shot cancellation request; idempotent.
	Stop()
	// BeginTyped restarts the node from its beginning in the given
	// direction, returning a fresh iterator over the same logical source.
	BeginTyped(dir Direction) Iterator[K]
	// Signature writes a deterministic byte sequence identifying this
	// node's shape and operands, for memoization (spec: base32-encoded by
	// upper layers, see Base32Signature).
	Signature(sink *SignatureWriter)
	// CompareTo returns a heuristic cost/selectivity score relative to
	// other, lower meaning cheaper/more selective.
	CompareTo(other Iterator[K]) float64
}

// SignatureWriter accumulates a node tree's deterministic byte signature.
type SignatureWriter struct {
	buf []byte
}

// NewSignatureWriter creates an empty signature accumulator.
func NewSignatureWriter() *SignatureWriter { return &SignatureWriter{} }

// WriteTag appends a single-byte node-kind tag.
func (w *SignatureWriter) WriteTag(tag byte) { w.buf = append(w.buf, tag) }

// WriteUint64 appends an 8-byte big-endian operand (big-endian so the
// signature sorts the same way the value does, useful for debugging).
func (w *SignatureWriter) WriteUint64(v uint64) {
	w.buf = append(w.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteBytes appends raw bytes (e.g. a nested child's own signature).
func (w *SignatureWriter) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// Bytes returns the accumulated signature.
func (w *SignatureWriter) Bytes() []byte { return w.buf }

// Base32Signature encodes an iterator tree's signature using the standard
// RFC 4648 alphabet — confirmed bit-exact against the original source's
// utils/base32.cpp ("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"), which is why
// stdlib encoding/base32.StdEncoding is used here rather than a
// third-party base32 variant.
func Base32Signature[K any](it Iterator[K]) string {
	w := NewSignatureWriter()
	it.Signature(w)
	return base32.StdEncoding.EncodeToString(w.Bytes())
}

// quickHash returns the 64-bit FNV-1a hash of b: a cheap, deterministic
// value derived from a node's signature rather than object identity. No
// CompareTo implementation in this package calls it; they score nodes from
// entry counts alone.
func quickHash(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
