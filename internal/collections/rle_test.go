package collections

import "testing"

func TestRLESequenceAppendExtendsRun(t *testing.T) {
	r := NewRLESequence[int]()
	r.Append(1)
	r.Append(1)
	r.Append(1)
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if r.RunCount() != 1 {
		t.Errorf("RunCount() = %d, want 1", r.RunCount())
	}
}

func TestRLESequenceAppendStartsNewRun(t *testing.T) {
	r := NewRLESequence[int]()
	r.Append(1)
	r.Append(2)
	r.Append(2)
	r.Append(3)
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}
	if r.RunCount() != 3 {
		t.Errorf("RunCount() = %d, want 3", r.RunCount())
	}
}

func TestRLESequenceAt(t *testing.T) {
	r := NewRLESequence[string]()
	for _, v := range []string{"a", "a", "b", "c", "c", "c"} {
		r.Append(v)
	}
	want := []string{"a", "a", "b", "c", "c", "c"}
	for i, w := range want {
		got, ok := r.At(i)
		if !ok {
			t.Fatalf("At(%d) ok = false", i)
		}
		if got != w {
			t.Errorf("At(%d) = %q, want %q", i, got, w)
		}
	}
	if _, ok := r.At(len(want)); ok {
		t.Error("At() ok = true for out-of-range index")
	}
	if _, ok := r.At(-1); ok {
		t.Error("At() ok = true for negative index")
	}
}

func TestRLESequenceForEach(t *testing.T) {
	r := NewRLESequence[int]()
	want := []int{1, 1, 1, 2, 3, 3}
	for _, v := range want {
		r.Append(v)
	}
	var got []int
	r.ForEach(func(v int) { got = append(got, v) })
	if len(got) != len(want) {
		t.Fatalf("ForEach visited %d elements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRLESequenceEmpty(t *testing.T) {
	r := NewRLESequence[int]()
	if r.Len() != 0 || r.RunCount() != 0 {
		t.Errorf("empty sequence: Len()=%d RunCount()=%d, want 0,0", r.Len(), r.RunCount())
	}
	if _, ok := r.At(0); ok {
		t.Error("At(0) ok = true on empty sequence")
	}
}
