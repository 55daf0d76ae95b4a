package propcheck

import (
	"github.com/oisee/pcodevm/pkg/bitvec"
	"pgregory.net/rapid"
)

// CheckEncodeRoundTrip asserts Decode(Encode(v)) == v for both endiannesses,
// covering the bit-vector endian codec property.
func CheckEncodeRoundTrip(t *rapid.T) {
	v := Bitvec(t)
	bigEndian := rapid.Bool().Draw(t, "big_endian")

	enc := v.Encode(bigEndian)
	if len(enc) != v.Width() {
		t.Fatalf("encode produced %d bytes, want %d", len(enc), v.Width())
	}
	got := bitvec.Decode(enc, bigEndian)
	if got.Width() != v.Width() || got.Uint64() != v.Uint64() {
		t.Fatalf("round trip mismatch: %v -> %x -> %v", v, enc, got)
	}
}

// CheckZextPreservesValue asserts Zext never changes the unsigned value,
// only the width, when widening.
func CheckZextPreservesValue(t *rapid.T) {
	w := Width(t)
	v := BitvecOfWidth(t, w)
	wider := rapid.SampledFrom(widerWidths(w)).Draw(t, "wider_width")

	z := bitvec.Zext(v, wider)
	if z.Width() != wider {
		t.Fatalf("Zext width = %d, want %d", z.Width(), wider)
	}
	if z.Uint64() != v.Uint64() {
		t.Fatalf("Zext changed value: %#x -> %#x", v.Uint64(), z.Uint64())
	}
}

// CheckSubpieceNarrowsInPlace asserts taking the full width back out of a
// Subpiece at shift 0 reproduces the original low bytes.
func CheckSubpieceNarrowsInPlace(t *rapid.T) {
	v := BitvecOfWidth(t, 8)
	out := rapid.SampledFrom([]int{1, 2, 4}).Draw(t, "out_width")

	sp := bitvec.Subpiece(v, 0, out)
	if sp.Width() != out {
		t.Fatalf("Subpiece width = %d, want %d", sp.Width(), out)
	}
	mask := uint64(1)<<(uint(out)*8) - 1
	if sp.Uint64() != v.Uint64()&mask {
		t.Fatalf("Subpiece(0,%d) = %#x, want low bytes %#x", out, sp.Uint64(), v.Uint64()&mask)
	}
}

func widerWidths(w int) []int {
	var out []int
	for _, c := range Widths {
		if c > w {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []int{w}
	}
	return out
}
