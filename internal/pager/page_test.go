package pager

import "testing"

func TestMarshalUnmarshalHeaderRoundTrip(t *testing.T) {
	h := &Header{Type: PageTypeData, Flags: 0x3, Num: 42, State: 7}
	buf := make([]byte, PageHeaderSize)
	MarshalHeader(h, buf)

	got := UnmarshalHeader(buf)
	if got.Type != h.Type || got.Flags != h.Flags || got.Num != h.Num || got.State != h.State {
		t.Errorf("UnmarshalHeader round trip = %+v, want %+v", got, h)
	}
}

func TestMarshalHeaderPanicsOnSmallBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MarshalHeader did not panic on an undersized buffer")
		}
	}()
	MarshalHeader(&Header{}, make([]byte, PageHeaderSize-1))
}

func TestPageTypeString(t *testing.T) {
	cases := map[PageType]string{
		PageTypeSuperblock: "Superblock",
		PageTypeData:       "Data",
		PageTypeFreeList:   "FreeList",
		PageTypeMeta:       "Meta",
		PageType(0xFF):     "Unknown(0xff)",
	}
	for pt, want := range cases {
		if got := pt.String(); got != want {
			t.Errorf("PageType(%d).String() = %q, want %q", pt, got, want)
		}
	}
}

func TestNewPageWritesHeader(t *testing.T) {
	buf := NewPage(512, PageTypeData, 5, 3)
	if len(buf) != 512 {
		t.Fatalf("NewPage length = %d, want 512", len(buf))
	}
	h := UnmarshalHeader(buf)
	if h.Type != PageTypeData || h.Num != 5 || h.State != 3 {
		t.Errorf("NewPage header = %+v, want Type=Data Num=5 State=3", h)
	}
}

func TestSetCRCAndVerifyCRC(t *testing.T) {
	buf := NewPage(512, PageTypeData, 1, 1)
	copy(buf[32:], []byte("hello world"))
	SetCRC(buf)
	if err := VerifyCRC(buf); err != nil {
		t.Fatalf("VerifyCRC after SetCRC: %v", err)
	}
	buf[40] ^= 0xFF
	if err := VerifyCRC(buf); err == nil {
		t.Error("VerifyCRC did not detect corruption")
	}
}
