// Package propcheck supplies rapid generators and property helpers shared
// across this module's test suites, generalizing stoke's seeded-random
// instruction mutator into domain generators for bit-vectors, addresses,
// and varnodes.
package propcheck

import (
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/bitvec"
	"github.com/oisee/pcodevm/pkg/varnode"
	"pgregory.net/rapid"
)

// Widths are the byte widths this module's evaluator actually handles end
// to end (1, 2, 4, 8 cover every integer op; float ops narrow this further
// to 4 and 8 at the call site).
var Widths = []int{1, 2, 4, 8}

// Width draws one of the supported integer widths.
func Width(t *rapid.T) int {
	return rapid.SampledFrom(Widths).Draw(t, "width")
}

// BitvecOfWidth draws a Value of exactly width bytes, covering the full
// unsigned range (including the uint64 fast path's upper bound).
func BitvecOfWidth(t *rapid.T, width int) bitvec.Value {
	bits := uint(width) * 8
	if width >= 8 {
		hi := rapid.Uint64().Draw(t, "hi")
		return bitvec.FromUint64(hi, width)
	}
	max := (uint64(1) << bits) - 1
	v := rapid.Uint64Range(0, max).Draw(t, "val")
	return bitvec.FromUint64(v, width)
}

// Bitvec draws a random width then a value of that width.
func Bitvec(t *rapid.T) bitvec.Value {
	return BitvecOfWidth(t, Width(t))
}

// Space draws a small synthetic address space of the given kind, useful for
// varnode/state round-trip properties that don't care about a real
// language's catalog.
func Space(t *rapid.T, kind addr.Kind, id int) *addr.Space {
	name := rapid.SampledFrom([]string{"ram", "register", "unique", "const"}).Draw(t, "space_name")
	size := rapid.SampledFrom([]int{1, 2, 4, 8}).Draw(t, "addr_size")
	return &addr.Space{ID: id, Name: name, Kind: kind, AddrSize: size, WordSize: 1, HighestOffset: 0xffff}
}

// Offset draws an offset within [0, limit).
func Offset(t *rapid.T, limit uint64) uint64 {
	if limit == 0 {
		return 0
	}
	return rapid.Uint64Range(0, limit-1).Draw(t, "offset")
}

// Varnode draws a varnode into space with a supported width, starting at
// any offset below maxOffset. The offset is not aligned, and offset plus
// width may run past maxOffset.
func Varnode(t *rapid.T, space *addr.Space, maxOffset uint64) varnode.Varnode {
	w := Width(t)
	off := Offset(t, maxOffset)
	return varnode.New(space, off, w)
}
