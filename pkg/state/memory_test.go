package state

import "testing"

type fakePeripheral struct {
	last []byte
}

func (f *fakePeripheral) ReadBytes(offset uint64, size int) ([]byte, error) {
	return []byte{byte(offset), byte(size)}, nil
}

func (f *fakePeripheral) WriteBytes(offset uint64, data []byte) error {
	f.last = append([]byte(nil), data...)
	return nil
}

func TestMapAndReadWrite(t *testing.T) {
	m := NewMemoryMap(1)
	if err := m.Map(0x100, 0x10); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Write(0x104, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(0x104, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Read = %v, want [1 2 3]", got)
	}
}

func TestOverlappingMapRejected(t *testing.T) {
	m := NewMemoryMap(1)
	if err := m.Map(0x100, 0x10); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Map(0x108, 0x10); err == nil {
		t.Fatal("expected overlap error")
	}
}

func TestAdjacentRegionsAllowed(t *testing.T) {
	m := NewMemoryMap(1)
	if err := m.Map(0x100, 0x10); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Map(0x110, 0x10); err != nil {
		t.Fatalf("adjacent Map should not overlap: %v", err)
	}
}

func TestUnalignedRegionRejected(t *testing.T) {
	m := NewMemoryMap(4)
	if err := m.Map(2, 4); err == nil {
		t.Fatal("expected unaligned base to be rejected")
	}
	if err := m.Map(0, 3); err == nil {
		t.Fatal("expected unaligned size to be rejected")
	}
}

func TestReadOutOfRangeFails(t *testing.T) {
	m := NewMemoryMap(1)
	m.Map(0, 0x10)
	if _, err := m.Read(0x20, 1); err == nil {
		t.Fatal("expected error reading unmapped offset")
	}
	if _, err := m.Read(0x0c, 8); err == nil {
		t.Fatal("expected error reading past region end")
	}
}

func TestPeripheralBackedRegion(t *testing.T) {
	m := NewMemoryMap(1)
	p := &fakePeripheral{}
	if err := m.MapPeripheral(0x200, 0x10, p); err != nil {
		t.Fatalf("MapPeripheral: %v", err)
	}
	if err := m.Write(0x201, []byte{9, 9}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(p.last) != 2 || p.last[0] != 9 {
		t.Fatalf("peripheral did not observe write: %v", p.last)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewMemoryMap(1)
	m.Map(0, 0x10)
	m.Write(0, []byte{1})

	c := m.Clone()
	c.Write(0, []byte{2})

	got, _ := m.Read(0, 1)
	if got[0] != 1 {
		t.Fatalf("original memory mutated via clone: got %d, want 1", got[0])
	}
	gotClone, _ := c.Read(0, 1)
	if gotClone[0] != 2 {
		t.Fatalf("clone memory = %d, want 2", gotClone[0])
	}
}

func TestCloneSharesPeripheral(t *testing.T) {
	m := NewMemoryMap(1)
	p := &fakePeripheral{}
	m.MapPeripheral(0, 0x10, p)

	c := m.Clone()
	c.Write(0, []byte{7})

	if p.last == nil || p.last[0] != 7 {
		t.Fatal("clone should route peripheral writes to the shared handler")
	}
}
