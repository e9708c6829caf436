package memspace

import "testing"

func TestNewAddressRoundTrip(t *testing.T) {
	addr, err := NewAddress(12345, 7)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if got := addr.Offset(); got != 12345 {
		t.Errorf("Offset() = %d, want 12345", got)
	}
	if got := addr.InstanceID(); got != 7 {
		t.Errorf("InstanceID() = %d, want 7", got)
	}
	if addr.IsPlain() {
		t.Error("IsPlain() = true for a non-zero instance id")
	}
}

func TestNewAddressPlain(t *testing.T) {
	addr, err := NewAddress(1, PlainInstanceID)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if !addr.IsPlain() {
		t.Error("IsPlain() = false for instance id 0")
	}
}

func TestNewAddressOffsetOutOfRange(t *testing.T) {
	if _, err := NewAddress(maxOffset, 0); err == nil {
		t.Fatal("expected error for offset at the 50-bit boundary")
	}
}

func TestNewAddressInstanceIDOutOfRange(t *testing.T) {
	if _, err := NewAddress(0, 1<<14); err == nil {
		t.Fatal("expected error for instance id at the 14-bit boundary")
	}
}

func TestWithInstanceID(t *testing.T) {
	addr, err := NewAddress(42, 0)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	rebound, err := addr.WithInstanceID(3)
	if err != nil {
		t.Fatalf("WithInstanceID: %v", err)
	}
	if rebound.Offset() != addr.Offset() {
		t.Errorf("WithInstanceID changed the offset: %d != %d", rebound.Offset(), addr.Offset())
	}
	if rebound.InstanceID() != 3 {
		t.Errorf("InstanceID() = %d, want 3", rebound.InstanceID())
	}
}

func TestPageOffset(t *testing.T) {
	addr, err := NewAddress(4096*3+100, 0)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	pageNum, inPage := addr.PageOffset(4096)
	if pageNum != 3 {
		t.Errorf("pageNum = %d, want 3", pageNum)
	}
	if inPage != 100 {
		t.Errorf("inPage = %d, want 100", inPage)
	}
}
