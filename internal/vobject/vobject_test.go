package vobject

import (
	"testing"

	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/reslock"
)

// fakeLock is a minimal reslock.Lock for exercising Handle without a real
// pager/memspace stack.
type fakeLock struct {
	data    []byte
	dirty   bool
	write   bool
	flushes int
	state   uint64
}

func (l *fakeLock) Bytes() []byte { return l.data }

func (l *fakeLock) Modify() ([]byte, error) {
	l.dirty = true
	return l.data, nil
}

func (l *fakeLock) Flush() error {
	l.flushes++
	l.dirty = false
	return nil
}

func (l *fakeLock) IsDirty() bool        { return l.dirty }
func (l *fakeLock) StateNum() uint64     { return l.state }
func (l *fakeLock) UpdateStateNum(s uint64) error {
	l.state = s
	return nil
}

// fakeStore implements vobject.Store, handing back one pre-built fakeLock
// regardless of the requested address/mode, and recording the mode it was
// asked for so tests can assert write access was declared correctly.
type fakeStore struct {
	lock       *fakeLock
	lastMode   reslock.AccessMode
	currentSt  uint64
}

func (s *fakeStore) MapRange(addr memspace.Address, size int, mode reslock.AccessMode) (reslock.Lock, error) {
	s.lastMode = mode
	return s.lock, nil
}

func (s *fakeStore) CurrentState() uint64 { return s.currentSt }

func TestOpenReadOnly(t *testing.T) {
	store := &fakeStore{lock: &fakeLock{data: []byte("hello")}}
	addr, _ := memspace.NewAddress(8, 0)
	h, err := Open(store, addr, 5, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(h.Bytes()) != "hello" {
		t.Errorf("Bytes() = %q, want %q", h.Bytes(), "hello")
	}
	if store.lastMode.Has(reslock.AccessWrite) {
		t.Error("read-only Open should not request AccessWrite")
	}
	if _, err := h.Modify(); err == nil {
		t.Fatal("expected error calling Modify on a read-only handle")
	}
}

func TestOpenWriteAndModify(t *testing.T) {
	store := &fakeStore{lock: &fakeLock{data: []byte("xxxxx")}}
	addr, _ := memspace.NewAddress(8, 0)
	h, err := Open(store, addr, 5, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !store.lastMode.Has(reslock.AccessWrite) {
		t.Error("write Open should request AccessWrite")
	}
	buf, err := h.Modify()
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	copy(buf, []byte("abcde"))
	if !store.lock.IsDirty() {
		t.Error("underlying lock should be dirty after Modify")
	}
}

func TestHandleAddressSurvivesDetach(t *testing.T) {
	store := &fakeStore{lock: &fakeLock{data: []byte("z")}}
	addr, _ := memspace.NewAddress(40, 0)
	h, err := Open(store, addr, 1, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if h.Address() != addr {
		t.Errorf("Address() after Detach = %v, want %v", h.Address(), addr)
	}
	if store.lock.flushes != 1 {
		t.Errorf("Detach should flush exactly once, got %d flushes", store.lock.flushes)
	}
}

func TestHandleCommitClearsWriteFlag(t *testing.T) {
	store := &fakeStore{lock: &fakeLock{data: []byte("z")}}
	addr, _ := memspace.NewAddress(40, 0)
	h, err := Open(store, addr, 1, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h.Commit()
	if _, err := h.Modify(); err == nil {
		t.Fatal("expected error calling Modify after Commit clears write access")
	}
}
