package varnode

import (
	"testing"

	"github.com/oisee/pcodevm/pkg/addr"
)

func ramSpace() *addr.Space {
	return addr.NewSpace(0, "ram", addr.RAM, 4, 1, false, 0)
}

func TestNewWrapsOffset(t *testing.T) {
	s := addr.NewSpace(0, "ram", addr.RAM, 1, 1, false, 0)
	vn := New(s, 0x100, 1)
	if vn.Offset != 0 {
		t.Fatalf("offset = %#x, want 0", vn.Offset)
	}
}

func TestIsConstant(t *testing.T) {
	c := addr.NewSpace(1, "const", addr.Constant, 8, 1, false, 0)
	vn := New(c, 42, 4)
	if !vn.IsConstant() {
		t.Fatal("expected constant varnode")
	}
	if New(ramSpace(), 0, 4).IsConstant() {
		t.Fatal("ram varnode should not be constant")
	}
}

func TestOverlapsAndContains(t *testing.T) {
	s := ramSpace()
	a := New(s, 0, 4)
	b := New(s, 2, 4)
	c := New(s, 8, 4)

	if !a.Overlaps(b) {
		t.Fatal("expected a and b to overlap")
	}
	if a.Overlaps(c) {
		t.Fatal("a and c should not overlap")
	}
	if !a.Contains(New(s, 1, 2)) {
		t.Fatal("a should contain a sub-range of itself")
	}
	if a.Contains(b) {
		t.Fatal("a should not contain b (b extends past a's end)")
	}
}

func TestOverlapsDifferentSpaces(t *testing.T) {
	s0 := ramSpace()
	s1 := addr.NewSpace(1, "register", addr.Register, 4, 1, false, 0)
	a := New(s0, 0, 4)
	b := New(s1, 0, 4)
	if a.Overlaps(b) {
		t.Fatal("varnodes in different spaces should never overlap")
	}
}

func TestEqual(t *testing.T) {
	s := ramSpace()
	a := New(s, 4, 2)
	b := New(s, 4, 2)
	c := New(s, 4, 4)
	if !Equal(a, b) {
		t.Fatal("expected equal varnodes")
	}
	if Equal(a, c) {
		t.Fatal("expected differing size to break equality")
	}
}

func TestFromAddress(t *testing.T) {
	s := ramSpace()
	a := addr.New(s, 16)
	vn := FromAddress(a, 2)
	if vn.Offset != 16 || vn.Size != 2 || vn.Space != s {
		t.Fatalf("unexpected varnode from address: %+v", vn)
	}
}
