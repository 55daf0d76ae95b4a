package addr

import "fmt"

// Address is a space-qualified offset. Arithmetic wraps within the space;
// the constant space reinterprets offsets as literal values rather than
// storage locations.
type Address struct {
	Space  *Space
	Offset uint64
}

// New builds an Address, wrapping the offset to the space's bounds.
func New(space *Space, offset uint64) Address {
	return Address{Space: space, Offset: space.Wrap(offset)}
}

// Add returns addr+delta, wrapped within the space (delta may be negative).
func (a Address) Add(delta int64) Address {
	var off uint64
	if delta >= 0 {
		off = a.Offset + uint64(delta)
	} else {
		off = a.Offset - uint64(-delta)
	}
	return New(a.Space, off)
}

// Compare returns -1/0/1 comparing two addresses in the same space. Addresses
// in different spaces compare by space ID first.
func (a Address) Compare(b Address) int {
	if a.Space.ID != b.Space.ID {
		if a.Space.ID < b.Space.ID {
			return -1
		}
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	default:
		return 0
	}
}

func (a Address) String() string {
	if a.Space == nil {
		return fmt.Sprintf("0x%x", a.Offset)
	}
	return fmt.Sprintf("%s:0x%x", a.Space.Name, a.Offset)
}
