package lift

import (
	"github.com/oisee/pcodevm/pkg/bitvec"
	"github.com/oisee/pcodevm/pkg/decode"
	"github.com/oisee/pcodevm/pkg/pcode"
	"github.com/oisee/pcodevm/pkg/sym"
	"github.com/oisee/pcodevm/pkg/varnode"
)

// builder instantiates semantic templates into an arena for one
// instruction's frame tree (Phase 2 of spec §4.3).
type builder struct {
	lang    *sym.Language
	arena   *pcode.Arena
	res     *resolved
	tempGen *tempAllocator
}

type labelRef struct {
	insnIndex int
	inputPos  int
	label     int
	size      int
}

// build walks f pre-order, but emits each child's p-code before the
// parent's own semantic ops (post-order code emission within the overall
// pre-order tree traversal), since the parent's template may reference a
// child operand's handle that only becomes concrete storage once the
// child's own dynamic-handle materialization (if any) has executed. This is
// the only internally consistent reading of "recursively emit that
// constructor's body in place": the referenced body runs before the op that
// consumes its result.
func (b *builder) build(f *decode.Frame) error {
	for _, child := range f.Children {
		if child != nil {
			if err := b.build(child); err != nil {
				return err
			}
		}
	}
	return b.buildOwn(f)
}

func (b *builder) buildOwn(f *decode.Frame) error {
	operandHandles := b.res.operands[f]
	locals := make(map[int]varnode.Varnode)
	labelTargets := make(map[int]int)
	var pendingLabels []labelRef

	resolveInput := func(ref sym.OperandRef) (varnode.Varnode, bool, error) {
		switch ref.Kind {
		case sym.RefConst:
			return varnode.New(b.lang.ConstantSpace, uint64(ref.Const), intSizeOr(ref.Size, 4)), false, nil
		case sym.RefConstExpr:
			v := ref.Expr.Eval(sym.Env{OperandVals: f.OperandVal})
			return varnode.New(b.lang.ConstantSpace, uint64(v), intSizeOr(ref.Size, 4)), false, nil
		case sym.RefOperand:
			if ref.Operand < 0 || ref.Operand >= len(operandHandles) {
				return varnode.Varnode{}, false, newError(InvalidHandle, "semantic op references out-of-range operand")
			}
			vn, err := b.materializeRead(operandHandles[ref.Operand])
			return vn, false, err
		case sym.RefTemp:
			vn, ok := locals[ref.Temp]
			if !ok {
				return varnode.Varnode{}, false, newError(InvalidHandle, "semantic op references undefined temporary")
			}
			return vn, false, nil
		case sym.RefLabel:
			return varnode.New(b.lang.ConstantSpace, 0, intSizeOr(ref.Size, 4)), true, nil
		}
		return varnode.Varnode{}, false, newError(InvalidHandle, "unknown operand-ref kind")
	}

	for _, step := range f.Ctor.Template {
		insnIndex := b.arena.Len()
		if step.LabelDef != 0 {
			labelTargets[step.LabelDef] = insnIndex
		}

		insn := pcode.Insn{Op: step.Op, Space: step.Space}
		for pos, in := range step.Inputs {
			vn, isLabel, err := resolveInput(in)
			if err != nil {
				return err
			}
			insn.Inputs = append(insn.Inputs, vn)
			if isLabel {
				pendingLabels = append(pendingLabels, labelRef{insnIndex: insnIndex, inputPos: pos, label: in.Label, size: vn.Size})
			}
		}

		var deferredStore *Handle
		if step.Out != nil {
			switch {
			case step.OutTemp:
				vn := b.tempGen.next(intSizeOr(step.Out.Size, 4))
				locals[step.Out.Temp] = vn
				insn.Out = &vn
			case step.Out.Kind == sym.RefOperand:
				h := operandHandles[step.Out.Operand]
				if h.Kind == HandleDirect {
					vn := h.VN
					insn.Out = &vn
				} else {
					// Dynamic output: compute the value into a temp now,
					// store it to the real address once the op is emitted.
					vn := b.tempGen.next(h.VN.Size)
					insn.Out = &vn
					hCopy := h
					deferredStore = &hCopy
					locals[-1] = vn // scratch slot for the store below
				}
			}
		}

		b.arena.Emit(insn)

		if deferredStore != nil {
			valTemp := locals[-1]
			addrTemp, err := b.materializeAddr(*deferredStore)
			if err != nil {
				return err
			}
			b.arena.Emit(pcode.Insn{
				Op:     pcode.STORE,
				Inputs: []varnode.Varnode{addrTemp, valTemp},
				Space:  b.lang.DefaultSpace.ID,
			})
		}
	}

	for _, pl := range pendingLabels {
		target, ok := labelTargets[pl.label]
		if !ok {
			return newError(UnresolvedLabel, "constructor template references an undefined label")
		}
		offset := int64(target - pl.insnIndex)
		insn := b.arena.At(pl.insnIndex)
		insn.Inputs[pl.inputPos] = varnode.New(b.lang.ConstantSpace, bitvec.FromInt64(offset, pl.size).Uint64(), pl.size)
		b.arena.Set(pl.insnIndex, insn)
	}
	return nil
}

// materializeRead returns the concrete varnode a handle reads from,
// emitting a LOAD through a freshly computed address temp for dynamic
// handles.
func (b *builder) materializeRead(h Handle) (varnode.Varnode, error) {
	if h.Kind == HandleDirect {
		return h.VN, nil
	}
	addrTemp, err := b.materializeAddr(h)
	if err != nil {
		return varnode.Varnode{}, err
	}
	valTemp := b.tempGen.next(h.VN.Size)
	b.arena.Emit(pcode.Insn{
		Op:     pcode.LOAD,
		Out:    &valTemp,
		Inputs: []varnode.Varnode{addrTemp},
		Space:  b.lang.DefaultSpace.ID,
	})
	return valTemp, nil
}

// materializeAddr emits the address computation a dynamic handle defers to
// first use, returning the temp holding the computed address.
func (b *builder) materializeAddr(h Handle) (varnode.Varnode, error) {
	if h.TempSpace == nil {
		return varnode.Varnode{}, newError(InvalidHandle, "dynamic handle missing temp space")
	}
	addrTemp := b.tempGen.next(h.TempSpace.AddrSize)
	offset := int64(0)
	if h.OffsetExpr != nil {
		offset = h.OffsetExpr.Eval(sym.Env{})
	}
	b.arena.Emit(pcode.Insn{
		Op:     pcode.COPY,
		Out:    &addrTemp,
		Inputs: []varnode.Varnode{varnode.New(b.lang.ConstantSpace, uint64(offset), addrTemp.Size)},
	})
	return addrTemp, nil
}
