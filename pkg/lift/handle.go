package lift

import (
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/decode"
	"github.com/oisee/pcodevm/pkg/sym"
	"github.com/oisee/pcodevm/pkg/varnode"
)

// HandleKind tags how a resolved handle refers to storage.
type HandleKind int

const (
	HandleDirect HandleKind = iota
	HandleDynamic
)

// Handle is a resolved operand, bubbled up during Phase 1 (spec §4.3
// "Resolve handles"). A direct handle is a concrete varnode (including
// immediates, which live in the constant space). A dynamic handle defers
// materialization to first use during Phase 2: the offset expression
// computes the address to route through TempSpace/TempSize.
type Handle struct {
	Kind       HandleKind
	VN         varnode.Varnode
	OffsetExpr *sym.Expr
	TempSpace  *addr.Space
	TempSize   int
}

// resolved bundles everything Phase 1 produces: each frame's own bubbled-up
// handle, and (separately, since a frame's operands may include leaf
// symbols with no child frame) the resolved handle of each of its operands.
type resolved struct {
	own      map[*decode.Frame]Handle
	operands map[*decode.Frame][]Handle
}

// resolveHandles walks the decoded frame tree depth-first, post-order,
// producing one Handle per frame (Phase 1 of spec §4.3).
func resolveHandles(lang *sym.Language, f *decode.Frame) (*resolved, error) {
	r := &resolved{own: make(map[*decode.Frame]Handle), operands: make(map[*decode.Frame][]Handle)}
	if err := resolveFrame(lang, f, r); err != nil {
		return nil, err
	}
	return r, nil
}

func resolveFrame(lang *sym.Language, f *decode.Frame, r *resolved) error {
	if f == nil || f.Ctor == nil {
		return newError(InvalidConstructor, "nil frame in decoded tree")
	}
	for _, child := range f.Children {
		if child != nil {
			if err := resolveFrame(lang, child, r); err != nil {
				return err
			}
		}
	}

	operandHandles := make([]Handle, len(f.Ctor.Operands))
	for i, opnd := range f.Ctor.Operands {
		if f.Children[i] != nil {
			operandHandles[i] = r.own[f.Children[i]]
			continue
		}
		opSym := lang.Symbol(opnd.SymbolID)
		if opSym == nil {
			return newError(InvalidSymbol, "unresolved operand symbol in handle resolution")
		}
		h, err := handleForLeaf(lang, opSym, f.OperandVal[i])
		if err != nil {
			return err
		}
		operandHandles[i] = h
	}

	own, err := exportHandle(f.Ctor, operandHandles, sym.Env{OperandVals: f.OperandVal})
	if err != nil {
		return err
	}
	r.own[f] = own
	r.operands[f] = operandHandles
	return nil
}

func handleForLeaf(lang *sym.Language, s *sym.Symbol, val int64) (Handle, error) {
	switch s.Kind {
	case sym.KindVarnodeList:
		idx := int(val)
		if idx < 0 || idx >= len(s.VarnodeList) {
			return Handle{}, newError(InvalidHandle, "varnode-list index out of range: "+s.Name)
		}
		return handleFromTemplate(s.VarnodeList[idx], val), nil
	case sym.KindVarnode:
		if s.Handle == nil {
			return Handle{}, newError(InvalidHandle, "varnode symbol missing handle template: "+s.Name)
		}
		return handleFromTemplate(*s.Handle, val), nil
	case sym.KindValueMap:
		idx := int(val)
		mapped := val
		if idx >= 0 && idx < len(s.ValueMap) {
			mapped = s.ValueMap[idx]
		}
		return Handle{Kind: HandleDirect, VN: varnode.New(lang.ConstantSpace, uint64(mapped), 4)}, nil
	default:
		// Value, Name, ContextField, markers, Operand, Epsilon: plain
		// immediates in the constant space.
		return Handle{Kind: HandleDirect, VN: varnode.New(lang.ConstantSpace, uint64(val), 4)}, nil
	}
}

func handleFromTemplate(t sym.HandleTemplate, val int64) Handle {
	if !t.Dynamic {
		offset := uint64(val)
		if t.OffsetExpr != nil {
			offset = uint64(t.OffsetExpr.Eval(sym.Env{}))
		}
		return Handle{Kind: HandleDirect, VN: varnode.New(t.Space, offset, t.Size)}
	}
	return Handle{
		Kind:       HandleDynamic,
		OffsetExpr: t.OffsetExpr,
		TempSpace:  t.TempSpace,
		TempSize:   t.TempSize,
		VN:         varnode.Varnode{Space: t.Space, Size: t.Size},
	}
}

// exportHandle computes a constructor's own bubbled-up handle: the operand
// named by a RefOperand Export rule, or a direct handle of the export's size
// for a RefConst one. Otherwise (no Export, or an Export of another kind,
// including a template temporary) it falls back to the sole operand's handle
// when the constructor has exactly one operand, and an empty handle if not.
func exportHandle(ctor *sym.Constructor, operandHandles []Handle, env sym.Env) (Handle, error) {
	if ctor.Export != nil {
		switch ctor.Export.Kind {
		case sym.RefOperand:
			if ctor.Export.Operand < 0 || ctor.Export.Operand >= len(operandHandles) {
				return Handle{}, newError(InvalidHandle, "export references out-of-range operand")
			}
			return operandHandles[ctor.Export.Operand], nil
		case sym.RefConst:
			return Handle{Kind: HandleDirect, VN: varnode.Varnode{Size: intSizeOr(ctor.Export.Size, 4)}}, nil
		}
	}
	if len(operandHandles) == 1 {
		return operandHandles[0], nil
	}
	return Handle{}, nil
}

func intSizeOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
