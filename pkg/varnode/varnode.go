// Package varnode implements component C3: the (space, offset, size) triple
// that every p-code input/output ultimately refers to.
package varnode

import (
	"fmt"

	"github.com/oisee/pcodevm/pkg/addr"
)

// Varnode is a contiguous range of storage: size bytes starting at offset in
// a space.
type Varnode struct {
	Space  *addr.Space
	Offset uint64
	Size   int
}

// New builds a Varnode, wrapping the offset within the space.
func New(space *addr.Space, offset uint64, size int) Varnode {
	return Varnode{Space: space, Offset: space.Wrap(offset), Size: size}
}

// FromAddress builds a Varnode at the given address.
func FromAddress(a addr.Address, size int) Varnode {
	return New(a.Space, a.Offset, size)
}

// IsConstant reports whether this varnode denotes a literal value rather
// than a storage location (its Space.Kind is addr.Constant and its Offset
// carries the value itself).
func (v Varnode) IsConstant() bool {
	return v.Space != nil && v.Space.Kind == addr.Constant
}

// Address returns the (space, offset) pair as an addr.Address, discarding
// size.
func (v Varnode) Address() addr.Address {
	return addr.Address{Space: v.Space, Offset: v.Offset}
}

// Overlaps reports whether v and o cover any common byte in the same space.
func (v Varnode) Overlaps(o Varnode) bool {
	if v.Space == nil || o.Space == nil || v.Space.ID != o.Space.ID {
		return false
	}
	vEnd := v.Offset + uint64(v.Size)
	oEnd := o.Offset + uint64(o.Size)
	return v.Offset < oEnd && o.Offset < vEnd
}

// Contains reports whether o is fully contained within v (same space).
func (v Varnode) Contains(o Varnode) bool {
	if v.Space == nil || o.Space == nil || v.Space.ID != o.Space.ID {
		return false
	}
	return o.Offset >= v.Offset && o.Offset+uint64(o.Size) <= v.Offset+uint64(v.Size)
}

func (v Varnode) String() string {
	if v.Space == nil {
		return fmt.Sprintf("(nil:0x%x:%d)", v.Offset, v.Size)
	}
	if v.IsConstant() {
		return fmt.Sprintf("const(0x%x:%d)", v.Offset, v.Size)
	}
	return fmt.Sprintf("%s(0x%x:%d)", v.Space.Name, v.Offset, v.Size)
}

// Equal reports whether two varnodes denote exactly the same storage.
func Equal(a, b Varnode) bool {
	if a.Space == nil || b.Space == nil {
		return a.Space == b.Space && a.Offset == b.Offset && a.Size == b.Size
	}
	return a.Space.ID == b.Space.ID && a.Offset == b.Offset && a.Size == b.Size
}
