package fixture

import (
	"testing"

	"github.com/dbzero-software/dbzero-engine/internal/reslock"
)

func TestSnapshotCommitAlwaysFails(t *testing.T) {
	f := testFixture(t)
	snap := f.Snapshot()
	if _, err := snap.Commit(); err == nil {
		t.Error("Snapshot.Commit() should always fail")
	}
}

func TestSnapshotSharesCatalogueAndTagIndex(t *testing.T) {
	f := testFixture(t)
	snap := f.Snapshot()
	if snap.Catalogue() != f.Catalogue() {
		t.Error("Snapshot should share the fixture's catalogue")
	}
	if snap.TagIndex() != f.TagIndex() {
		t.Error("Snapshot should share the fixture's tag index")
	}
}

func TestSnapshotCurrentStatePinned(t *testing.T) {
	f := testFixture(t)
	addr := testAddr(t, 0)
	lk, err := f.MapRange(addr, 8, reslock.AccessRead|reslock.AccessWrite|reslock.AccessCreate)
	if err != nil {
		t.Fatalf("MapRange: %v", err)
	}
	if _, err := lk.Modify(); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if err := lk.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := f.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap := f.Snapshot()
	if snap.CurrentState() != f.CurrentState() {
		t.Errorf("Snapshot.CurrentState() = %d, want %d", snap.CurrentState(), f.CurrentState())
	}

	// A later commit should not move an already-pinned snapshot's state.
	if _, err := f.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	if snap.CurrentState() == f.CurrentState() {
		t.Error("Snapshot.CurrentState() moved after a later commit on the live fixture")
	}
}

func TestSnapshotMapRangeRejectsWrite(t *testing.T) {
	f := testFixture(t)
	snap := f.Snapshot()
	addr := testAddr(t, 0)
	if _, err := snap.MapRange(addr, 8, reslock.AccessRead|reslock.AccessWrite); err == nil {
		t.Error("Snapshot.MapRange with AccessWrite should fail")
	}
}

func TestSnapshotAtHistoricalState(t *testing.T) {
	f := testFixture(t)
	addr := testAddr(t, 0)
	lk, err := f.MapRange(addr, 8, reslock.AccessRead|reslock.AccessWrite|reslock.AccessCreate)
	if err != nil {
		t.Fatalf("MapRange: %v", err)
	}
	buf, err := lk.Modify()
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	copy(buf, []byte("snapshot"))
	if err := lk.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	state, err := f.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap := f.SnapshotAt(state)
	lk2, err := snap.MapRange(addr, 8, reslock.AccessRead)
	if err != nil {
		t.Fatalf("Snapshot.MapRange: %v", err)
	}
	if string(lk2.Bytes()) != "snapshot" {
		t.Errorf("SnapshotAt read bytes = %q, want %q", lk2.Bytes(), "snapshot")
	}
}
