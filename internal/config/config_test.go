package config

import "testing"

func TestParseAccessType(t *testing.T) {
	cases := []struct {
		in      string
		want    AccessType
		wantErr bool
	}{
		{"r", AccessRead, false},
		{"R", AccessRead, false},
		{"w", AccessReadWrite, false},
		{"rw", AccessReadWrite, false},
		{"wr", AccessReadWrite, false},
		{"", AccessRead, true},
		{"x", AccessRead, true},
	}
	for _, c := range cases {
		got, err := ParseAccessType(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseAccessType(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAccessType(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAccessType(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAccessTypeString(t *testing.T) {
	if AccessRead.String() != "r" {
		t.Errorf("AccessRead.String() = %q, want %q", AccessRead.String(), "r")
	}
	if AccessReadWrite.String() != "w" {
		t.Errorf("AccessReadWrite.String() = %q, want %q", AccessReadWrite.String(), "w")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed Validate(): %v", err)
	}
}

func TestValidateRejectsNonPowerOfTwoPageSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSize = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-power-of-two page size")
	}
}

func TestValidateRejectsSmallPageSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSize = 256
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for page size below 512")
	}
}

func TestValidateRejectsSlabSmallerThanPage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlabSize = int64(cfg.PageSize) - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when slab_size < page_size")
	}
}

func TestValidateRejectsCacheSmallerThanPage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheBytes = int64(cfg.PageSize) - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when cache_bytes < page_size")
	}
}

func TestValidateRejectsNegativeSortThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SortThreshold = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative sort_threshold")
	}
}

func TestValidateRejectsNonPositiveStepSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for step_size <= 0")
	}
}
