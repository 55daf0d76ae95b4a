package pcode

import "fmt"

// Arena is an append-only bump allocator with a single lifetime: all p-code
// produced while lifting one or more instructions lives here, and Release
// invalidates every handle at once (spec §3 "Arena", §8 "Arena safety").
//
// Go's garbage collector makes a literal use-after-free impossible, so
// safety is enforced explicitly: once Released is called, every accessor
// panics rather than silently returning stale or zeroed data. This keeps
// the arena-safety invariant something a test can actually exercise.
type Arena struct {
	insns    []Insn
	released bool
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Emit appends an instruction and returns its index within the arena.
func (a *Arena) Emit(insn Insn) int {
	a.checkLive()
	a.insns = append(a.insns, insn)
	return len(a.insns) - 1
}

// Len returns the number of instructions currently held.
func (a *Arena) Len() int {
	a.checkLive()
	return len(a.insns)
}

// At returns the instruction at index i.
func (a *Arena) At(i int) Insn {
	a.checkLive()
	return a.insns[i]
}

// Set overwrites the instruction at index i (used to patch in resolved
// branch-label offsets after emission, spec §4.3 phase 3).
func (a *Arena) Set(i int, insn Insn) {
	a.checkLive()
	a.insns[i] = insn
}

// Slice returns the instructions in [start,end) as a borrowed view. The
// returned slice must not be retained past Release.
func (a *Arena) Slice(start, end int) []Insn {
	a.checkLive()
	return a.insns[start:end]
}

// All returns every instruction currently held, as a borrowed view.
func (a *Arena) All() []Insn {
	a.checkLive()
	return a.insns
}

// Release frees the arena's backing storage and invalidates every handle
// previously returned. Idempotent.
func (a *Arena) Release() {
	a.released = true
	a.insns = nil
}

func (a *Arena) checkLive() {
	if a.released {
		panic(fmt.Errorf("pcode: use of arena after Release"))
	}
}
