package engine

import (
	"sort"

	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/bitvec"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/eval"
	"github.com/oisee/pcodevm/pkg/state"
	"github.com/oisee/pcodevm/pkg/sym"
	"github.com/oisee/pcodevm/pkg/varnode"
)

// pcVarnode returns the language's program-counter register as a varnode,
// evaluating its offset expression (offset 0 when none is set).
func (c *Cache) pcVarnode() varnode.Varnode {
	t := c.Lang.PCRegister
	var offset uint64
	if t.OffsetExpr != nil {
		offset = uint64(t.OffsetExpr.Eval(sym.Env{}))
	}
	return varnode.Varnode{Space: t.Space, Offset: offset, Size: t.Size}
}

// Step reads the program counter from st, fetches (lifting on demand) the
// block whose entry it names, and runs the block's p-code ops through the
// evaluator in order, advancing the program counter to the fall-through or
// branch target as appropriate (spec §4.5 "step"). Before the first op of
// each instruction in the block, the program counter is set to that
// instruction's own address.
func (c *Cache) Step(db *ctxdb.DB, st state.State, dispatcher eval.Dispatcher) (eval.Outcome, error) {
	pcVN := c.pcVarnode()
	pcVal, err := st.ReadVarnode(pcVN)
	if err != nil {
		return eval.Outcome{}, err
	}
	pcAddr := addr.Address{Space: c.Lang.DefaultSpace, Offset: pcVal.Uint64()}

	block, err := c.Fetch(db, pcAddr)
	if err != nil {
		return eval.Outcome{}, err
	}

	ctx := eval.Context{Spaces: c.Lang.Spaces, DefaultSpace: c.Lang.DefaultSpace, Dispatcher: dispatcher}

	i := 0
	n := block.Arena.Len()
	cur := -1
	for i < n {
		// k is the instruction whose p-code range holds op i.
		k := sort.SearchInts(block.InstructionArenaEnd, i+1)
		if k != cur && k < len(block.InstructionOffsets) {
			if err := c.setPC(st, pcVN, block.Entry.Add(int64(block.InstructionOffsets[k]))); err != nil {
				return eval.Outcome{}, err
			}
			cur = k
		}
		outcome, err := eval.Step(ctx, st, block.Arena.At(i))
		if err != nil {
			return eval.Outcome{}, err
		}
		switch outcome.Kind {
		case eval.Fall:
			i++
		case eval.Branch:
			if outcome.Target.PcodeRelative {
				i += outcome.Target.PcodeOffset
				continue
			}
			if err := c.setPC(st, pcVN, outcome.Target.Address); err != nil {
				return outcome, err
			}
			return outcome, nil
		case eval.Call, eval.Return:
			if err := c.setPC(st, pcVN, outcome.Target.Address); err != nil {
				return outcome, err
			}
			return outcome, nil
		}
	}

	fallAddr := block.Entry.Add(int64(len(block.RawBytes)))
	if err := c.setPC(st, pcVN, fallAddr); err != nil {
		return eval.Outcome{}, err
	}
	return eval.Outcome{Kind: eval.Fall}, nil
}

func (c *Cache) setPC(st state.State, pcVN varnode.Varnode, target addr.Address) error {
	return st.WriteVarnode(pcVN, bitvec.FromUint64(target.Offset, pcVN.Size))
}
