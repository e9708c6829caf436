package pager

import (
	"bytes"
	"testing"
)

func TestDiffApplyRoundTrip(t *testing.T) {
	a := make([]byte, 256)
	b := make([]byte, 256)
	copy(b, a)
	b[10] = 0xAA
	b[11] = 0xBB
	b[200] = 0xCC

	diff, ok := Diff(a, b)
	if !ok {
		t.Fatal("Diff reported not-ok for a small change")
	}
	got := Apply(a, diff, nil)
	if !bytes.Equal(got, b) {
		t.Error("Apply(a, Diff(a,b)) != b")
	}
}

func TestDiffRejectsMismatchedLengths(t *testing.T) {
	if _, ok := Diff(make([]byte, 10), make([]byte, 20)); ok {
		t.Error("Diff should report not-ok for mismatched lengths")
	}
}

func TestDiffFallsBackWhenChangeTooLarge(t *testing.T) {
	a := make([]byte, 256)
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	if _, ok := Diff(a, b); ok {
		t.Error("Diff should report not-ok when the change exceeds the size budget")
	}
}

func TestDiffIdenticalPagesProducesEmptyRuns(t *testing.T) {
	a := make([]byte, 128)
	b := make([]byte, 128)
	diff, ok := Diff(a, b)
	if !ok {
		t.Fatal("Diff(a,a) should always fit the budget")
	}
	got := Apply(a, diff, nil)
	if !bytes.Equal(got, b) {
		t.Error("Apply with no-op diff changed the page")
	}
}

func TestApplyReusesDestinationBuffer(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	b[5] = 0x42
	diff, ok := Diff(a, b)
	if !ok {
		t.Fatal("Diff failed")
	}
	dst := make([]byte, 64)
	got := Apply(a, diff, dst)
	if &got[0] != &dst[0] {
		t.Error("Apply allocated a new buffer instead of reusing dst")
	}
	if got[5] != 0x42 {
		t.Errorf("Apply(dst) result byte 5 = %d, want 0x42", got[5])
	}
}

func TestApplyTruncatedDiffStopsGracefully(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	b[1] = 1
	diff, ok := Diff(a, b)
	if !ok {
		t.Fatal("Diff failed")
	}
	truncated := diff[:len(diff)-1]
	got := Apply(a, truncated, nil)
	if len(got) != len(a) {
		t.Errorf("Apply(truncated) length = %d, want %d", len(got), len(a))
	}
}
