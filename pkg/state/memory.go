package state

import (
	"sort"
)

// Peripheral is a memory-mapped handler: reads/writes routed to a region
// backed by device logic rather than a plain buffer (spec §4.6 "memory-
// mapped peripherals").
type Peripheral interface {
	ReadBytes(offset uint64, size int) ([]byte, error)
	WriteBytes(offset uint64, data []byte) error
}

type region struct {
	base, size uint64
	buf        []byte
	peripheral Peripheral
}

func (r *region) end() uint64 { return r.base + r.size }

// MemoryMap is an address-keyed mapping of the default space to backing
// buffers or peripheral handlers, with disjoint, word-aligned regions
// (spec §4.6 "Memory regions").
type MemoryMap struct {
	wordSize uint64
	regions  []*region // sorted by base
}

// NewMemoryMap creates a memory map whose region bases/sizes must be
// multiples of wordSize.
func NewMemoryMap(wordSize int) *MemoryMap {
	if wordSize <= 0 {
		wordSize = 1
	}
	return &MemoryMap{wordSize: uint64(wordSize)}
}

// Map reserves [base, base+size) as a zero-filled buffer region.
func (m *MemoryMap) Map(base, size uint64) error {
	if err := m.checkAlign(base, size); err != nil {
		return err
	}
	r := &region{base: base, size: size, buf: make([]byte, size)}
	return m.insert(r)
}

// MapPeripheral reserves [base, base+size) and routes all access to handler.
func (m *MemoryMap) MapPeripheral(base, size uint64, handler Peripheral) error {
	if err := m.checkAlign(base, size); err != nil {
		return err
	}
	return m.insert(&region{base: base, size: size, peripheral: handler})
}

func (m *MemoryMap) checkAlign(base, size uint64) error {
	if base%m.wordSize != 0 || size%m.wordSize != 0 {
		return newError(UnalignedRegion, "region base/size not a multiple of the space's word size")
	}
	return nil
}

func (m *MemoryMap) insert(r *region) error {
	idx := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].base >= r.base })
	if idx > 0 && m.regions[idx-1].end() > r.base {
		return newError(OverlapOnMap, "region overlaps an existing mapping")
	}
	if idx < len(m.regions) && r.end() > m.regions[idx].base {
		return newError(OverlapOnMap, "region overlaps an existing mapping")
	}
	m.regions = append(m.regions, nil)
	copy(m.regions[idx+1:], m.regions[idx:])
	m.regions[idx] = r
	return nil
}

func (m *MemoryMap) find(offset uint64) *region {
	idx := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].end() > offset })
	if idx < len(m.regions) && m.regions[idx].base <= offset {
		return m.regions[idx]
	}
	return nil
}

// Read returns size bytes starting at offset.
func (m *MemoryMap) Read(offset uint64, size int) ([]byte, error) {
	r := m.find(offset)
	if r == nil || offset+uint64(size) > r.end() {
		return nil, newError(Unmapped, "read from unmapped address")
	}
	if r.peripheral != nil {
		return r.peripheral.ReadBytes(offset-r.base, size)
	}
	local := offset - r.base
	out := make([]byte, size)
	copy(out, r.buf[local:local+uint64(size)])
	return out, nil
}

// Write stores data starting at offset.
func (m *MemoryMap) Write(offset uint64, data []byte) error {
	r := m.find(offset)
	if r == nil || offset+uint64(len(data)) > r.end() {
		return newError(Unmapped, "write to unmapped address")
	}
	if r.peripheral != nil {
		return r.peripheral.WriteBytes(offset-r.base, data)
	}
	local := offset - r.base
	copy(r.buf[local:local+uint64(len(data))], data)
	return nil
}

// Clone deep-copies all buffer-backed regions; peripherals are shared by
// reference (spec §4.6 "fork(): deep copy of all mutable storage; shared
// read-only resources ... are referenced, not copied" — a peripheral
// handler is treated as shared device state, not per-fork storage).
func (m *MemoryMap) Clone() *MemoryMap {
	c := &MemoryMap{wordSize: m.wordSize, regions: make([]*region, len(m.regions))}
	for i, r := range m.regions {
		nr := &region{base: r.base, size: r.size, peripheral: r.peripheral}
		if r.buf != nil {
			nr.buf = append([]byte(nil), r.buf...)
		}
		c.regions[i] = nr
	}
	return c
}
