package engine

import (
	"sync"

	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/decode"
	"github.com/oisee/pcodevm/pkg/diag"
	"github.com/oisee/pcodevm/pkg/lift"
	"github.com/oisee/pcodevm/pkg/pcode"
	"github.com/oisee/pcodevm/pkg/sym"
)

type cacheKey struct {
	space  int
	offset uint64
}

func keyOf(a addr.Address) cacheKey { return cacheKey{space: a.Space.ID, offset: a.Offset} }

// entryState is the stored state of a cache entry: Cached or Failed. Absent
// is the zero value (no map entry). No Lifting state is stored: Fetch runs
// LiftBlock with the cache mutex released, and when two callers lift the
// same entry concurrently, the first result inserted is the one kept.
type entryState int

const (
	stateCached entryState = iota
	stateFailed
)

type cacheEntry struct {
	state entryState
	block *Block
	err   error
}

// Cache is the address-indexed translation block store. Only cache inserts
// require synchronization (spec §5 "Locking discipline"); everything else
// is caller-local.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry

	Lang   *sym.Language
	Code   CodeSource
	Opts   decode.Options
	Ledger *diag.Ledger
}

// NewCache creates an empty translation cache for lang, reading bytes from
// code.
func NewCache(lang *sym.Language, code CodeSource) *Cache {
	return &Cache{
		entries: make(map[cacheKey]*cacheEntry),
		Lang:    lang,
		Code:    code,
		Opts:    decode.DefaultOptions(),
		Ledger:  diag.NewLedger(),
	}
}

// Fetch returns the block whose entry is exactly a, lifting it on demand if
// absent (spec §4.5 "fetch"). An address that lies inside another cached
// block's range is not matched to that block; it is lifted as the entry of
// a block of its own. A memoized first-instruction failure is returned as
// an error on every subsequent call.
func (c *Cache) Fetch(db *ctxdb.DB, a addr.Address) (*Block, error) {
	key := keyOf(a)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		if e.state == stateFailed {
			return nil, e.err
		}
		return e.block, nil
	}
	c.mu.Unlock()

	block, err := c.LiftBlock(db, a)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		if existing.state == stateFailed {
			return nil, existing.err
		}
		return existing.block, nil
	}
	if err != nil {
		c.entries[key] = &cacheEntry{state: stateFailed, err: err}
		diag.CacheTransition(a.Offset, "absent", "failed")
		c.Ledger.Add(diag.Failure{Offset: a.Offset, Stage: "lift", Err: err})
		return nil, err
	}
	c.entries[key] = &cacheEntry{state: stateCached, block: block}
	diag.CacheTransition(a.Offset, "absent", "cached")
	return block, nil
}

// LiftBlock decodes/lifts instructions sequentially from entry, extending
// the block until a p-code op writes the program counter, the last
// architectural op is a flow-control op, an instruction issues a user-op
// (CALLOTHER, which may halt the machine), or a decode/lift failure occurs
// (spec §4.5 "lift_block").
func (c *Cache) LiftBlock(db *ctxdb.DB, entry addr.Address) (*Block, error) {
	const maxWindow = 16
	arena := pcode.NewArena()
	block := &Block{Entry: entry, Arena: arena, FailedAt: -1}
	pcVN := c.pcVarnode()

	cur := entry
	offset := 0
	idx := uint64(0)

	for {
		bytes, err := c.Code.Bytes(cur, maxWindow)
		if err != nil || len(bytes) == 0 {
			if block.Len() == 0 {
				return nil, err
			}
			break
		}

		dec, err := decode.Decode(c.Lang, db, cur, bytes, c.Opts)
		if err != nil {
			if block.Len() == 0 {
				return nil, err
			}
			block.FailedAt = offset
			block.FailErr = err
			break
		}

		res, err := lift.Lift(c.Lang, db, dec, bytes, arena, lift.Options{InstructionIndex: idx})
		if err != nil {
			if block.Len() == 0 {
				return nil, err
			}
			block.FailedAt = offset
			block.FailErr = err
			break
		}

		block.InstructionOffsets = append(block.InstructionOffsets, offset)
		block.InstructionArenaEnd = append(block.InstructionArenaEnd, res.End)
		block.PendingCommits = append(block.PendingCommits, res.PendingCommits...)
		db.ApplyCommits(res.PendingCommits)

		closed := false
		for i := res.Start; i < res.End; i++ {
			insn := arena.At(i)
			if insn.Op.IsFlowControl() || insn.Op == pcode.CALLOTHER {
				closed = true
			}
			if insn.Out != nil && insn.Out.Overlaps(pcVN) {
				closed = true
			}
		}
		advance := dec.Length + dec.DelaySlotLength
		offset += advance
		cur = cur.Add(int64(advance))
		idx += uint64(dec.DelaySlotLength) + 1

		if closed {
			break
		}
	}

	block.RawBytes = make([]byte, offset)
	raw, err := c.Code.Bytes(entry, offset)
	if err == nil {
		copy(block.RawBytes, raw)
	}
	return block, nil
}
