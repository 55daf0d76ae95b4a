// Package state implements the state abstraction and memory map (component
// C10): register/temporary/memory storage addressed by varnode, with
// fork/restore for independent emulation branches.
package state

import (
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/bitvec"
	"github.com/oisee/pcodevm/pkg/varnode"
)

// State is the read/write surface the evaluator (C8) drives, plus the
// fork/restore lifecycle (spec §4.6, §6 "State interface").
type State interface {
	ReadVarnode(vn varnode.Varnode) (bitvec.Value, error)
	WriteVarnode(vn varnode.Varnode, val bitvec.Value) error
	ReadMemory(a addr.Address, size int) ([]byte, error)
	WriteMemory(a addr.Address, data []byte) error
	Fork() State
	Restore(snapshot State) error
}

// ConcreteState is the reference State implementation: a flat register
// file, a flat temporaries file, and a memory map, dispatched by space kind
// (spec §4.6 bullet list).
type ConcreteState struct {
	spaces  *addr.Table
	regSize uint64
	tmpSize uint64

	registers []byte
	temps     []byte
	memory    *MemoryMap
}

// NewConcreteState builds a state over the given space table. regSpace and
// uniqueSpace size the flat register/temporary arrays; memWordSize sizes
// the memory map's alignment granularity.
func NewConcreteState(spaces *addr.Table, regSpace, uniqueSpace *addr.Space, memWordSize int) *ConcreteState {
	return &ConcreteState{
		spaces:    spaces,
		regSize:   regSpace.HighestOffset + 1,
		tmpSize:   uniqueSpace.HighestOffset + 1,
		registers: make([]byte, regSpace.HighestOffset+1),
		temps:     make([]byte, uniqueSpace.HighestOffset+1),
		memory:    NewMemoryMap(memWordSize),
	}
}

// MapMemory reserves a buffer-backed region of the default space.
func (s *ConcreteState) MapMemory(base, size uint64) error {
	return s.memory.Map(base, size)
}

// MapPeripheral reserves a peripheral-backed region of the default space.
func (s *ConcreteState) MapPeripheral(base, size uint64, handler Peripheral) error {
	return s.memory.MapPeripheral(base, size, handler)
}

func (s *ConcreteState) ReadVarnode(vn varnode.Varnode) (bitvec.Value, error) {
	if vn.Space == nil {
		return bitvec.Value{}, newError(Unmapped, "varnode has no space")
	}
	switch vn.Space.Kind {
	case addr.Constant:
		return bitvec.FromUint64(vn.Offset, vn.Size), nil
	case addr.Register:
		return readFlat(s.registers, vn, vn.Space.BigEndian)
	case addr.Unique:
		return readFlat(s.temps, vn, vn.Space.BigEndian)
	case addr.RAM:
		b, err := s.memory.Read(vn.Offset, vn.Size)
		if err != nil {
			return bitvec.Value{}, err
		}
		return bitvec.Decode(b, vn.Space.BigEndian), nil
	default:
		return bitvec.Value{}, newError(Unmapped, "unsupported space kind for varnode read")
	}
}

func (s *ConcreteState) WriteVarnode(vn varnode.Varnode, val bitvec.Value) error {
	if vn.Space == nil {
		return newError(Unmapped, "varnode has no space")
	}
	switch vn.Space.Kind {
	case addr.Constant:
		return newError(Unmapped, "cannot write to the constant space")
	case addr.Register:
		return writeFlat(s.registers, vn, val, vn.Space.BigEndian)
	case addr.Unique:
		return writeFlat(s.temps, vn, val, vn.Space.BigEndian)
	case addr.RAM:
		return s.memory.Write(vn.Offset, val.Encode(vn.Space.BigEndian))
	default:
		return newError(Unmapped, "unsupported space kind for varnode write")
	}
}

func readFlat(buf []byte, vn varnode.Varnode, bigEndian bool) (bitvec.Value, error) {
	if vn.Offset+uint64(vn.Size) > uint64(len(buf)) {
		return bitvec.Value{}, newError(Unmapped, "varnode read out of bounds")
	}
	return bitvec.Decode(buf[vn.Offset:vn.Offset+uint64(vn.Size)], bigEndian), nil
}

func writeFlat(buf []byte, vn varnode.Varnode, val bitvec.Value, bigEndian bool) error {
	if vn.Offset+uint64(vn.Size) > uint64(len(buf)) {
		return newError(Unmapped, "varnode write out of bounds")
	}
	copy(buf[vn.Offset:vn.Offset+uint64(vn.Size)], val.Encode(bigEndian))
	return nil
}

func (s *ConcreteState) ReadMemory(a addr.Address, size int) ([]byte, error) {
	return s.memory.Read(a.Offset, size)
}

func (s *ConcreteState) WriteMemory(a addr.Address, data []byte) error {
	return s.memory.Write(a.Offset, data)
}

// Fork performs a deep copy of all mutable storage; the space table is
// shared read-only (spec §4.6 "fork").
func (s *ConcreteState) Fork() State {
	return &ConcreteState{
		spaces:    s.spaces,
		regSize:   s.regSize,
		tmpSize:   s.tmpSize,
		registers: append([]byte(nil), s.registers...),
		temps:     append([]byte(nil), s.temps...),
		memory:    s.memory.Clone(),
	}
}

// Restore replaces this state's mutable storage with a copy of snapshot's.
func (s *ConcreteState) Restore(snapshot State) error {
	other, ok := snapshot.(*ConcreteState)
	if !ok {
		return newError(Unmapped, "restore source is not a *ConcreteState")
	}
	s.registers = append([]byte(nil), other.registers...)
	s.temps = append([]byte(nil), other.temps...)
	s.memory = other.memory.Clone()
	return nil
}
