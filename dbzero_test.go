package dbzero

import "testing"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PageSize = 512
	cfg.SlabSize = 4096
	cfg.AccessType = AccessReadWrite
	return cfg
}

func TestEndToEndWriteCommitReadBack(t *testing.T) {
	ws, err := OpenWorkspace(t.TempDir(), testConfig(), LockFlags{Blocking: true})
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	fx, err := ws.Open("main")
	if err != nil {
		t.Fatalf("Open fixture: %v", err)
	}

	addr, err := fx.Memspace().Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	obj, err := OpenObject(fx, addr, 16, true)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	buf, err := obj.Modify()
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	copy(buf, []byte("hello, dbzero!!"))
	obj.Commit()
	if err := obj.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	state, err := fx.Commit()
	if err != nil {
		t.Fatalf("fx.Commit: %v", err)
	}
	if state != 1 {
		t.Errorf("fx.Commit returned state %d, want 1", state)
	}

	readBack, err := OpenObject(fx, addr, 16, false)
	if err != nil {
		t.Fatalf("re-OpenObject: %v", err)
	}
	if string(readBack.Bytes()[:15]) != "hello, dbzero!!" {
		t.Errorf("read-back bytes = %q, want %q", readBack.Bytes()[:15], "hello, dbzero!!")
	}
}

func TestSnapshotRefusesWriteAfterCommit(t *testing.T) {
	ws, err := OpenWorkspace(t.TempDir(), testConfig(), LockFlags{Blocking: true})
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	fx, err := ws.Open("main")
	if err != nil {
		t.Fatalf("Open fixture: %v", err)
	}
	addr, err := fx.Memspace().Alloc(8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	obj, err := OpenObject(fx, addr, 8, true)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	buf, _ := obj.Modify()
	copy(buf, []byte("01234567"))
	if err := obj.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if _, err := fx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap := fx.Snapshot()
	if _, err := snap.Commit(); err == nil {
		t.Error("Snapshot.Commit() should always fail")
	}
	if _, err := OpenObject(snap, addr, 8, true); err == nil {
		t.Error("OpenObject with write=true against a Snapshot should fail")
	}
}

func TestWorkspaceNamedFixturesAreIndependent(t *testing.T) {
	ws, err := OpenWorkspace(t.TempDir(), testConfig(), LockFlags{Blocking: true})
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	a, err := ws.Open("a")
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	b, err := ws.Open("b")
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}

	addr, err := a.Memspace().Alloc(8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	obj, err := OpenObject(a, addr, 8, true)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	buf, _ := obj.Modify()
	copy(buf, []byte("fixtureA"))
	obj.Detach()
	if _, err := a.Commit(); err != nil {
		t.Fatalf("Commit a: %v", err)
	}

	if b.CurrentState() != 0 {
		t.Errorf("fixture b's state moved to %d after a commit on fixture a, want 0", b.CurrentState())
	}
}
