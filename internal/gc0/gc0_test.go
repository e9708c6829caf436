package gc0

import (
	"testing"

	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/object"
)

func addr(t *testing.T, offset uint64) memspace.Address {
	t.Helper()
	a, err := memspace.NewAddress(offset, 0)
	if err != nil {
		t.Fatalf("NewAddress(%d): %v", offset, err)
	}
	return a
}

func TestRegistryAddAndLen(t *testing.T) {
	r := New()
	a := addr(t, 8)
	r.Add(a, object.GCOps{HasRefs: func() bool { return true }})
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRemoveQueuesZeroRefForCollection(t *testing.T) {
	r := New()
	a := addr(t, 8)
	dropped := false
	r.Add(a, object.GCOps{
		HasRefs: func() bool { return false },
		Drop:    func() error { dropped = true; return nil },
	})
	if err := r.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Remove, want 0", r.Len())
	}
	if err := r.Collect(); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if dropped {
		t.Error("Drop should not fire for an address already removed from live (handled via dropDetached, which found no match)")
	}
}

func TestRemoveWithLiveRefsDoesNotQueue(t *testing.T) {
	r := New()
	a := addr(t, 8)
	refs := true
	dropped := false
	r.Add(a, object.GCOps{
		HasRefs: func() bool { return refs },
		Drop:    func() error { dropped = true; return nil },
	})
	if err := r.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Collect(); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if dropped {
		t.Error("Drop fired despite HasRefs() still reporting true")
	}
}

func TestRemoveUnknownAddress(t *testing.T) {
	r := New()
	if err := r.Remove(addr(t, 99)); err == nil {
		t.Fatal("expected error removing an address never Added")
	}
}

func TestCollectDropsZeroRefLiveEntry(t *testing.T) {
	r := New()
	a := addr(t, 8)
	dropped := false
	r.Add(a, object.GCOps{
		HasRefs: func() bool { return false },
		Drop:    func() error { dropped = true; return nil },
	})
	// Without calling Remove, Collect's re-scan pass should still catch a
	// live entry whose refs already dropped to zero.
	if err := r.Collect(); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !dropped {
		t.Error("Collect should have dropped the zero-ref live entry")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Collect, want 0", r.Len())
	}
}

func TestCollectCascadesThroughDependentDrops(t *testing.T) {
	r := New()
	child := addr(t, 8)
	parent := addr(t, 16)

	childRefs := 1
	parentRefs := true
	var parentDropped, childDropped bool

	r.Add(child, object.GCOps{
		HasRefs: func() bool { return childRefs > 0 },
		Drop:    func() error { childDropped = true; return nil },
	})
	r.Add(parent, object.GCOps{
		HasRefs: func() bool { return parentRefs },
		Drop: func() error {
			parentDropped = true
			childRefs-- // dropping the parent releases its hold on the child
			return nil
		},
	})

	parentRefs = false
	if err := r.Collect(); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !parentDropped {
		t.Error("parent was not dropped")
	}
	if !childDropped {
		t.Error("child was not dropped after the cascade released its last ref")
	}
}

func TestPreCommitRunsEveryRegisteredCallback(t *testing.T) {
	r := New()
	var calls []string
	r.Add(addr(t, 8), object.GCOps{PreCommit: func() error { calls = append(calls, "a"); return nil }})
	r.Add(addr(t, 16), object.GCOps{PreCommit: func() error { calls = append(calls, "b"); return nil }})
	r.Add(addr(t, 24), object.GCOps{}) // no PreCommit registered: must be skipped, not panic
	if err := r.PreCommit(); err != nil {
		t.Fatalf("PreCommit: %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("PreCommit invoked %d callbacks, want 2", len(calls))
	}
}
