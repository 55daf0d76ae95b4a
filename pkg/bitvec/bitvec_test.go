package bitvec_test

import (
	"testing"

	. "github.com/oisee/pcodevm/pkg/bitvec"
	"github.com/oisee/pcodevm/pkg/propcheck"
	"pgregory.net/rapid"
)

func TestAddWraps(t *testing.T) {
	a := FromUint64(0xff, 1)
	b := FromUint64(1, 1)
	got := Add(a, b)
	if got.Uint64() != 0 {
		t.Fatalf("Add(0xff,1) at width 1 = %#x, want 0", got.Uint64())
	}
}

func TestSubBorrow(t *testing.T) {
	a := FromUint64(0, 1)
	b := FromUint64(1, 1)
	got := Sub(a, b)
	if got.Uint64() != 0xff {
		t.Fatalf("Sub(0,1) at width 1 = %#x, want 0xff", got.Uint64())
	}
}

func TestSextNegative(t *testing.T) {
	a := FromUint64(0xff, 1) // -1 at width 1
	got := Sext(a, 2)
	if got.Uint64() != 0xffff {
		t.Fatalf("Sext(-1,1->2) = %#x, want 0xffff", got.Uint64())
	}
}

func TestZextNonNegative(t *testing.T) {
	a := FromUint64(0xff, 1)
	got := Zext(a, 2)
	if got.Uint64() != 0x00ff {
		t.Fatalf("Zext(0xff,1->2) = %#x, want 0x00ff", got.Uint64())
	}
}

func TestPopcount(t *testing.T) {
	a := FromUint64(0b10110, 1)
	got := Popcount(a)
	if got.Uint64() != 3 {
		t.Fatalf("Popcount(0b10110) = %d, want 3", got.Uint64())
	}
}

func TestLzcountFullWidth(t *testing.T) {
	a := Zero(2)
	got := Lzcount(a)
	if got.Uint64() != 16 {
		t.Fatalf("Lzcount(0) at width 2 = %d, want 16", got.Uint64())
	}
}

func TestEncodeDecodeBigEndian(t *testing.T) {
	v := FromUint64(0x0102, 2)
	enc := v.Encode(true)
	if enc[0] != 0x01 || enc[1] != 0x02 {
		t.Fatalf("big-endian encode = %x, want [01 02]", enc)
	}
	got := Decode(enc, true)
	if got.Uint64() != v.Uint64() {
		t.Fatalf("round trip = %#x, want %#x", got.Uint64(), v.Uint64())
	}
}

func TestEncodeDecodeLittleEndian(t *testing.T) {
	v := FromUint64(0x0102, 2)
	enc := v.Encode(false)
	if enc[0] != 0x02 || enc[1] != 0x01 {
		t.Fatalf("little-endian encode = %x, want [02 01]", enc)
	}
	got := Decode(enc, false)
	if got.Uint64() != v.Uint64() {
		t.Fatalf("round trip = %#x, want %#x", got.Uint64(), v.Uint64())
	}
}

func TestWideValueUsesBigIntPath(t *testing.T) {
	a := FromUint64(1, 16)
	b := FromUint64(1, 16)
	got := Add(a, b)
	if got.Uint64() != 2 || got.Width() != 16 {
		t.Fatalf("16-byte Add(1,1) = %v, width %d", got.Uint64(), got.Width())
	}
}

func TestEncodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, propcheck.CheckEncodeRoundTrip)
}

func TestZextPreservesValueProperty(t *testing.T) {
	rapid.Check(t, propcheck.CheckZextPreservesValue)
}

func TestSubpieceNarrowsInPlaceProperty(t *testing.T) {
	rapid.Check(t, propcheck.CheckSubpieceNarrowsInPlace)
}
