// Package ctxdb implements the context database (component C4): a
// piecewise-constant map from address to a bit-packed context word, with
// split/commit semantics for flow-(in)sensitive writes accumulated during
// decoding.
package ctxdb

import (
	"sort"
	"sync"

	"github.com/oisee/pcodevm/pkg/addr"
)

// Commit is a single pending context write accumulated during decode,
// applied atomically to a DB only after a successful lift (spec §4.2/§4.3:
// decode is side-effect-free on failure).
type Commit struct {
	Addr          addr.Address
	NumBits       int
	StartBit      int
	Value         uint32
	FlowSensitive bool
}

// boundary is one interval start; the interval runs [Offset, nextBoundary).
type boundary struct {
	offset uint64
	word   uint32
}

// DB is the context database for one address space (normally the register
// space's default space, or the address space context words key against).
// Each method takes an internal mutex, so single calls may run concurrently;
// ApplyCommits applies its batch one Commit call at a time, not as one
// atomic step. Per spec §5, the caller invoking decode owns it and must
// clone for snapshots.
type DB struct {
	mu          sync.Mutex
	space       *addr.Space
	defaultWord uint32
	bounds      []boundary // sorted by offset, offset 0 always conceptually covered by defaultWord until split
}

// New creates a context database over the given space with the given
// initial default context word.
func New(space *addr.Space, defaultWord uint32) *DB {
	return &DB{space: space, defaultWord: defaultWord}
}

// Get returns the context word of the interval containing a.
func (d *DB) Get(a addr.Address) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wordAt(a.Offset)
}

// wordAt must be called with mu held.
func (d *DB) wordAt(offset uint64) uint32 {
	idx := sort.Search(len(d.bounds), func(i int) bool { return d.bounds[i].offset > offset })
	if idx == 0 {
		return d.defaultWord
	}
	return d.bounds[idx-1].word
}

// Split inserts an interval boundary at a, duplicating the predecessor's
// word. Idempotent: splitting an already-existing boundary is a no-op.
func (d *DB) Split(a addr.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.split(a.Offset)
}

// split must be called with mu held. Returns the index of the boundary at
// offset (inserting it if absent).
func (d *DB) split(offset uint64) int {
	idx := sort.Search(len(d.bounds), func(i int) bool { return d.bounds[i].offset >= offset })
	if idx < len(d.bounds) && d.bounds[idx].offset == offset {
		return idx
	}
	word := d.wordAt(offset)
	d.bounds = append(d.bounds, boundary{})
	copy(d.bounds[idx+1:], d.bounds[idx:])
	d.bounds[idx] = boundary{offset: offset, word: word}
	return idx
}

// SetDefaultBits applies a bitfield write to the global default word,
// without touching any existing interval.
func (d *DB) SetDefaultBits(mask, value uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultWord = (d.defaultWord &^ mask) | (value & mask)
}

// Commit writes a bitfield of numBits starting at startBit, at the interval
// beginning at addr. When flowSensitive is false, the write propagates to
// every interval at or after addr, up to and including the last boundary's
// interval, which covers everything past it; the default word (below the
// first boundary) is not changed. When true, it propagates only up to the
// next existing boundary (a single interval).
func (d *DB) Commit(a addr.Address, numBits, startBit int, value uint32, flowSensitive bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mask := fieldMask(numBits, startBit)
	fieldVal := (value << uint(startBit)) & mask

	startIdx := d.split(a.Offset)
	d.bounds[startIdx].word = (d.bounds[startIdx].word &^ mask) | fieldVal

	if flowSensitive {
		// Confined to [a, next boundary): the just-split interval only.
		return
	}

	for i := startIdx + 1; i < len(d.bounds); i++ {
		d.bounds[i].word = (d.bounds[i].word &^ mask) | fieldVal
	}
}

// ApplyCommits applies a batch of pending commits in order, as done by a
// caller after a successful lift.
func (d *DB) ApplyCommits(commits []Commit) {
	for _, c := range commits {
		d.Commit(c.Addr, c.NumBits, c.StartBit, c.Value, c.FlowSensitive)
	}
}

func fieldMask(numBits, startBit int) uint32 {
	if numBits >= 32 {
		return ^uint32(0) << uint(startBit)
	}
	return ((uint32(1) << uint(numBits)) - 1) << uint(startBit)
}

// Clone returns an independent copy of the database, for callers that need
// a context snapshot (spec §5: "callers wishing to snapshot must clone it").
func (d *DB) Clone() *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &DB{space: d.space, defaultWord: d.defaultWord, bounds: make([]boundary, len(d.bounds))}
	copy(c.bounds, d.bounds)
	return c
}
