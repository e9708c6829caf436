package ftindex

import "testing"

func TestAndIterIntersects(t *testing.T) {
	a := newIntLeaf(1, 2, 3, 4, 5)
	b := newIntLeaf(2, 4, 6)
	and := NewAnd[int64](int64Less2, Forward, a, b)
	got := drain[int64](and)
	want := []int64{2, 4}
	if len(got) != len(want) {
		t.Fatalf("AND result = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAndIterEmptyWhenNoOverlap(t *testing.T) {
	a := newIntLeaf(1, 3, 5)
	b := newIntLeaf(2, 4, 6)
	and := NewAnd[int64](int64Less2, Forward, a, b)
	if !and.IsEnd() {
		t.Error("AND of disjoint sets should be at end immediately")
	}
}

func TestOrIterUnionsAndDedupes(t *testing.T) {
	a := newIntLeaf(1, 3, 5)
	b := newIntLeaf(3, 4, 5, 6)
	or := NewOr[int64](int64Less2, a, b)
	got := drain[int64](or)
	want := []int64{1, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("OR result = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOrXIterKeepsDuplicates(t *testing.T) {
	a := newIntLeaf(1, 3)
	b := newIntLeaf(3, 4)
	orx := NewOrX[int64](int64Less2, a, b)
	got := drain[int64](orx)
	// ORX does not collapse duplicate keys across children: 3 should appear twice.
	count3 := 0
	for _, v := range got {
		if v == 3 {
			count3++
		}
	}
	if count3 != 2 {
		t.Errorf("key 3 appeared %d times in ORX output, want 2", count3)
	}
}

func TestAndNotIterExcludesMatches(t *testing.T) {
	a := newIntLeaf(1, 2, 3, 4, 5)
	b := newIntLeaf(2, 4)
	an := NewAndNot[int64](int64Less2, Forward, a, b)
	got := drain[int64](an)
	want := []int64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("ANDNOT result = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAndNotIterAllExcluded(t *testing.T) {
	a := newIntLeaf(1, 2)
	b := newIntLeaf(1, 2)
	an := NewAndNot[int64](int64Less2, Forward, a, b)
	if !an.IsEnd() {
		t.Error("ANDNOT should be at end when b covers all of a")
	}
}

func TestRangeIterBounds(t *testing.T) {
	leaf := newIntLeaf(1, 2, 3, 4, 5, 6, 7)
	low, high := int64(3), int64(5)
	r := NewRange[int64](leaf, int64Less2, &low, &high, false, false, Forward)
	got := drain[int64](r)
	want := []int64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Range result = %v, want %v", got, want)
	}
}

func TestRangeIterExclusiveBounds(t *testing.T) {
	leaf := newIntLeaf(1, 2, 3, 4, 5)
	low, high := int64(2), int64(4)
	r := NewRange[int64](leaf, int64Less2, &low, &high, true, true, Forward)
	got := drain[int64](r)
	want := []int64{3}
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("exclusive Range result = %v, want %v", got, want)
	}
}

func TestSliceIterWindow(t *testing.T) {
	leaf := newIntLeaf(10, 20, 30, 40, 50, 60)
	s := NewSlice[int64](leaf, 1, 4, 1)
	got := drain[int64](s)
	want := []int64{20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("Slice result = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSpanIterBucketsKeys(t *testing.T) {
	leaf := newUintLeaf(0, 1, 2, 16, 17, 32)
	span := NewSpan(leaf, 4) // bucket size 16
	var got []uint64
	if !span.IsEnd() {
		got = append(got, span.GetKey())
		for {
			k, ok := span.Next()
			if !ok {
				break
			}
			got = append(got, k)
		}
	}
	want := []uint64{0, 0, 0, 1, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("Span result = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func newUintLeaf(vals ...uint64) *Leaf[uint64] {
	entries := make([]LeafEntry[uint64], len(vals))
	for i, v := range vals {
		entries[i] = LeafEntry[uint64]{Key: v, Addr: v}
	}
	return NewLeaf(entries, addrLess, 'U')
}

func TestSortIterOrdersByKey(t *testing.T) {
	leaf := newUintLeaf(10, 20, 30)
	keys := map[uint64]int64{10: 300, 20: 100, 30: 200}
	sorted := NewSort[int64](leaf, func(addr uint64) int64 { return keys[addr] }, int64Less2, true)
	got := drain[int64](sorted)
	want := []int64{100, 200, 300}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBase32SignatureIsDeterministic(t *testing.T) {
	a := newIntLeaf(1, 2)
	b := newIntLeaf(3)
	and := NewAnd[int64](int64Less2, Forward, a, b)
	sig1 := Base32Signature[int64](and)

	a2 := newIntLeaf(1, 2)
	b2 := newIntLeaf(3)
	and2 := NewAnd[int64](int64Less2, Forward, a2, b2)
	sig2 := Base32Signature[int64](and2)

	if sig1 != sig2 {
		t.Errorf("signatures differ for structurally identical trees: %q != %q", sig1, sig2)
	}
}
