package ftindex

import "testing"

func TestTagIndexAddAndFindRequired(t *testing.T) {
	idx := NewTagIndex()
	idx.AddTag(1, 100) // obj 1 carries tag 100
	idx.AddTag(2, 100)
	idx.AddTag(2, 200)
	idx.AddTag(3, 200)

	it := idx.Find([]uint64{100}, nil, nil, nil)
	got := drain[uint64](it)
	want := []uint64{1, 2}
	if len(got) != len(want) {
		t.Fatalf("Find(required=[100]) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestTagIndexFindRequiredIntersection(t *testing.T) {
	idx := NewTagIndex()
	idx.AddTags(1, []uint64{100, 200})
	idx.AddTags(2, []uint64{100})
	idx.AddTags(3, []uint64{200})

	it := idx.Find([]uint64{100, 200}, nil, nil, nil)
	got := drain[uint64](it)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Find(required=[100,200]) = %v, want [1]", got)
	}
}

func TestTagIndexFindExcluded(t *testing.T) {
	idx := NewTagIndex()
	idx.AddTags(1, []uint64{100})
	idx.AddTags(2, []uint64{100, 999})
	idx.AddTags(3, []uint64{100})

	it := idx.Find([]uint64{100}, nil, []uint64{999}, nil)
	got := drain[uint64](it)
	want := []uint64{1, 3}
	if len(got) != len(want) {
		t.Fatalf("Find(required=[100], excluded=[999]) = %v, want %v", got, want)
	}
}

func TestTagIndexRemoveTag(t *testing.T) {
	idx := NewTagIndex()
	idx.AddTag(1, 100)
	idx.AddTag(2, 100)
	idx.RemoveTag(1, 100)

	it := idx.Find([]uint64{100}, nil, nil, nil)
	got := drain[uint64](it)
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("Find after RemoveTag = %v, want [2]", got)
	}
}

func TestTagBatchAppliesAtomically(t *testing.T) {
	idx := NewTagIndex()
	batch := idx.BeginBatchUpdate()
	batch.AddTag(1, 100)
	batch.AddTag(2, 100)

	// Nothing visible until Flush.
	it := idx.Find([]uint64{100}, nil, nil, nil)
	if !it.IsEnd() {
		t.Fatal("uncommitted batch should not be visible to Find")
	}

	batch.Flush()
	it = idx.Find([]uint64{100}, nil, nil, nil)
	got := drain[uint64](it)
	if len(got) != 2 {
		t.Errorf("Find after Flush = %v, want 2 entries", got)
	}
}

func TestTagBatchCloseDiscardsOps(t *testing.T) {
	idx := NewTagIndex()
	batch := idx.BeginBatchUpdate()
	batch.AddTag(1, 100)
	batch.Close()

	it := idx.Find([]uint64{100}, nil, nil, nil)
	if !it.IsEnd() {
		t.Error("discarded batch should leave the index unchanged")
	}
}

func TestTagIndexSplitByExclusiveVsInclusive(t *testing.T) {
	idx := NewTagIndex()
	idx.AddTags(1, []uint64{10, 20})
	idx.AddTags(2, []uint64{10})
	idx.AddTags(3, []uint64{20})

	universe := newUintLeaf(1, 2, 3)
	anyOf := idx.SplitBy([]uint64{10, 20}, universe, false)
	gotAny := drain[uint64](anyOf)
	if len(gotAny) != 3 {
		t.Errorf("SplitBy(anyOf) = %v, want all 3 objects", gotAny)
	}

	universe2 := newUintLeaf(1, 2, 3)
	allOf := idx.SplitBy([]uint64{10, 20}, universe2, true)
	gotAll := drain[uint64](allOf)
	if len(gotAll) != 1 || gotAll[0] != 1 {
		t.Errorf("SplitBy(exclusive) = %v, want [1]", gotAll)
	}
}

func TestTagIndexFindTypeFilter(t *testing.T) {
	idx := NewTagIndex()
	idx.AddTags(1, []uint64{100})
	idx.AddTags(2, []uint64{100})
	idx.AddTags(3, []uint64{100})

	keep := func(addr uint64) bool { return addr != 2 }
	it := idx.Find([]uint64{100}, nil, nil, keep)
	got := drain[uint64](it)
	want := []uint64{1, 3}
	if len(got) != len(want) {
		t.Fatalf("Find with typeFilter = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}
