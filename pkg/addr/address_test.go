package addr

import "testing"

func TestWrapReducesOffset(t *testing.T) {
	s := NewSpace(0, "ram", RAM, 2, 1, false, 0)
	if s.HighestOffset != 0xffff {
		t.Fatalf("HighestOffset = %#x, want 0xffff", s.HighestOffset)
	}
	if got := s.Wrap(0x10000); got != 0 {
		t.Fatalf("Wrap(0x10000) = %#x, want 0", got)
	}
}

func TestAddWrapsAcrossSpaceBoundary(t *testing.T) {
	s := NewSpace(0, "ram", RAM, 1, 1, false, 0)
	a := New(s, 0xff)
	got := a.Add(1)
	if got.Offset != 0 {
		t.Fatalf("Add wrapped to %#x, want 0", got.Offset)
	}
}

func TestAddNegativeDelta(t *testing.T) {
	s := NewSpace(0, "ram", RAM, 2, 1, false, 0)
	a := New(s, 0x10)
	got := a.Add(-1)
	if got.Offset != 0x0f {
		t.Fatalf("Add(-1) = %#x, want 0x0f", got.Offset)
	}
}

func TestCompareOrdersBySpaceThenOffset(t *testing.T) {
	s0 := NewSpace(0, "a", RAM, 2, 1, false, 0)
	s1 := NewSpace(1, "b", RAM, 2, 1, false, 0)
	a := New(s0, 5)
	b := New(s1, 1)
	if a.Compare(b) >= 0 {
		t.Fatal("expected space 0 to sort before space 1 regardless of offset")
	}
	if New(s0, 1).Compare(New(s0, 2)) >= 0 {
		t.Fatal("expected lower offset to sort first within the same space")
	}
}

func TestTableLookup(t *testing.T) {
	s0 := NewSpace(0, "ram", RAM, 2, 1, false, 0)
	s1 := NewSpace(1, "register", Register, 2, 1, false, 0)
	tbl := NewTable(s0, s1)

	if tbl.ByID(1) != s1 {
		t.Fatal("ByID(1) did not return the register space")
	}
	if tbl.ByName("ram") != s0 {
		t.Fatal("ByName(ram) did not return the ram space")
	}
	if tbl.ByID(99) != nil {
		t.Fatal("expected nil for unknown space id")
	}
}
