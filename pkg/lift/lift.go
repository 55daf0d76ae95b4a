// Package lift implements the p-code lifter (component C7): given a
// decoded constructor tree, resolve operand handles, instantiate semantic
// templates into p-code, and patch relative branch labels.
package lift

import (
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/decode"
	"github.com/oisee/pcodevm/pkg/pcode"
	"github.com/oisee/pcodevm/pkg/sym"
	"github.com/oisee/pcodevm/pkg/varnode"
)

// tempStride bounds how many unique-space bytes one instruction's
// temporaries may consume before the next instruction's prefix would
// collide with it. Large enough for any realistic semantic template.
const tempStride = 0x100

// tempAllocator hands out fresh unique-space offsets within one
// instruction, prefixed by a base derived from the instruction's position
// in its block (Options.InstructionIndex), not from its address, so
// temporaries minted while lifting different instructions into the same
// block never alias; separate Lift calls given the same index reuse the same
// offsets (spec §3 "temporaries (flat byte array sized by unique-space
// size)").
type tempAllocator struct {
	space  *addr.Space
	base   uint64
	cursor uint64
}

func newTempAllocator(space *addr.Space, instructionIndex uint64) *tempAllocator {
	return &tempAllocator{space: space, base: instructionIndex * tempStride}
}

func (t *tempAllocator) next(size int) varnode.Varnode {
	if size <= 0 {
		size = 1
	}
	offset := t.base + t.cursor
	t.cursor += uint64(size)
	return varnode.New(t.space, offset, size)
}

// Options configures one Lift invocation.
type Options struct {
	// InstructionIndex seeds the per-instruction temp-space prefix
	// (InstructionIndex * tempStride) so sequential instructions lifted into
	// the same block/arena never reuse unique-space offsets.
	InstructionIndex uint64
}

// Result is the p-code produced for one instruction (spec §6 "Lifted
// instruction").
type Result struct {
	Address         addr.Address
	Length          int
	DelaySlotLength int
	Arena           *pcode.Arena
	Start, End      int // [Start,End) within Arena holds this instruction's ops, including delay slots
	PendingCommits  []ctxdb.Commit
}

// Lift runs the three phases of spec §4.3 against a decoded instruction,
// emitting p-code into arena. Delay-slot instructions, if any, are decoded
// and lifted first (directly into the shared arena, each with its own
// temp-space prefix), so their p-code precedes the primary instruction's
// own terminating branch — per spec's "their p-code is emitted before the
// primary's terminating branch".
func Lift(lang *sym.Language, db *ctxdb.DB, dec *decode.Result, bytes []byte, arena *pcode.Arena, opts Options) (*Result, error) {
	start := arena.Len()

	if dec.DelaySlotLength > 0 {
		slotBytes := bytes[dec.Length:]
		consumed := 0
		idx := opts.InstructionIndex
		for consumed < dec.DelaySlotLength {
			idx++
			slotDec, err := decode.Decode(lang, db, dec.Address.Add(int64(dec.Length+consumed)), slotBytes[consumed:], decode.DefaultOptions())
			if err != nil {
				return nil, err
			}
			if _, err := liftOne(lang, slotDec, arena, Options{InstructionIndex: idx}); err != nil {
				return nil, err
			}
			consumed += slotDec.Length
		}
	}

	if _, err := liftOne(lang, dec, arena, opts); err != nil {
		return nil, err
	}

	end := arena.Len()
	return &Result{
		Address:         dec.Address,
		Length:          dec.Length,
		DelaySlotLength: dec.DelaySlotLength,
		Arena:           arena,
		Start:           start,
		End:             end,
		PendingCommits:  resolvePendingAddrs(dec),
	}, nil
}

// resolvePendingAddrs fixes up decode's pending commits, which record only
// a byte offset within the instruction, into absolute addresses.
func resolvePendingAddrs(dec *decode.Result) []ctxdb.Commit {
	out := make([]ctxdb.Commit, len(dec.PendingCommits))
	for i, c := range dec.PendingCommits {
		c.Addr = dec.Address.Add(int64(c.Addr.Offset))
		out[i] = c
	}
	return out
}

func liftOne(lang *sym.Language, dec *decode.Result, arena *pcode.Arena, opts Options) (*resolved, error) {
	res, err := resolveHandles(lang, dec.Root)
	if err != nil {
		return nil, err
	}
	b := &builder{
		lang:    lang,
		arena:   arena,
		res:     res,
		tempGen: newTempAllocator(lang.UniqueSpace, opts.InstructionIndex),
	}
	if err := b.build(dec.Root); err != nil {
		return nil, err
	}
	return res, nil
}
