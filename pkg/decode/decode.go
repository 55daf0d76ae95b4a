// Package decode implements the parser/decoder (component C6): table-driven
// recursive descent over a loaded language's decision trees, producing a
// resolved constructor tree for one instruction.
package decode

import (
	"strconv"
	"strings"

	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/sym"
)

// Options configures one decode invocation. A plain struct, populated
// directly by callers (no config-file/env layer), matching the ambient
// configuration style used throughout this module.
type Options struct {
	// MaxTokenWindow bounds how many bytes of look-ahead a subtable's
	// pattern test may examine at once.
	MaxTokenWindow int
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{MaxTokenWindow: 4}
}

// Frame is one stack entry of the decode scratchpad: a constructor instance
// being matched and resolved, plus its operands' offsets/lengths and child
// frames for subtable operands (spec §3 "Parser input state").
type Frame struct {
	SymbolID      int
	Ctor          *sym.Constructor
	Offset        uint64
	Length        int
	OperandIndex  int
	OperandOffset []uint64
	OperandLength []int
	OperandVal    []int64
	Children      []*Frame // nil entry for non-subtable operands
}

// Result is the fully resolved operand tree for one decoded instruction
// (spec §3 "Translation block" feeds from this; §6 "Disassembled
// instruction").
type Result struct {
	Address         addr.Address
	Length          int
	DelaySlotLength int
	Root            *Frame
	Lang            *sym.Language
	PendingCommits  []ctxdb.Commit
	Bytes           []byte
}

// Disassembly renders the resolved tree's mnemonic and operands using the
// root constructor's print pieces, mirroring the teacher's placeholder
// substitution style for instruction text.
func (r *Result) Disassembly() string {
	return renderFrame(r.Lang, r.Root)
}

func renderFrame(lang *sym.Language, f *Frame) string {
	if f == nil || f.Ctor == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range f.Ctor.PrintPieces {
		if !p.IsOperand {
			b.WriteString(p.Literal)
			continue
		}
		if p.OperandIndex < len(f.Children) && f.Children[p.OperandIndex] != nil {
			b.WriteString(renderFrame(lang, f.Children[p.OperandIndex]))
			continue
		}
		if p.OperandIndex < len(f.OperandVal) {
			b.WriteString(strconv.FormatInt(f.OperandVal[p.OperandIndex], 10))
		}
	}
	return b.String()
}

// Decode runs the recursive-descent algorithm of spec §4.2 against bytes
// starting at address a, using db's word at a as the initial working context
// word. Decode never mutates db; pending commits are returned with offsets
// relative to the instruction, and lift.Lift resolves them to absolute
// addresses for the caller to apply after a successful lift (spec §4.2
// "Failure semantics").
func Decode(lang *sym.Language, db *ctxdb.DB, a addr.Address, bytes []byte, opts Options) (*Result, error) {
	if opts.MaxTokenWindow <= 0 {
		opts = DefaultOptions()
	}
	root := lang.Root()
	if root == nil || root.Subtable == nil {
		return nil, newError(Mismatch, 0, "language has no root subtable")
	}

	working := db.Get(a)
	var pending []ctxdb.Commit
	var delaySlot int

	rootFrame, err := decodeFrame(lang, root, 0, bytes, &working, &pending, &delaySlot, opts)
	if err != nil {
		return nil, err
	}

	if uint64(rootFrame.Length) > uint64(len(bytes)) {
		return nil, newError(ShortStream, 0, "instruction length exceeds supplied bytes")
	}

	return &Result{
		Address:         a,
		Length:          rootFrame.Length,
		DelaySlotLength: delaySlot,
		Root:            rootFrame,
		Lang:            lang,
		PendingCommits:  pending,
		Bytes:           bytes[:rootFrame.Length],
	}, nil
}

func decodeFrame(lang *sym.Language, subtableSym *sym.Symbol, offset uint64, bytes []byte, working *uint32, pending *[]ctxdb.Commit, delaySlot *int, opts Options) (*Frame, error) {
	if offset > uint64(len(bytes)) {
		return nil, newError(ShortStream, offset, "operand offset beyond byte stream")
	}

	window := bytes[offset:]
	if len(window) > opts.MaxTokenWindow {
		window = window[:opts.MaxTokenWindow]
	}
	tokenWindow := packWindow(window)

	ctor := subtableSym.Subtable.Select(tokenWindow, bytes[offset:], *working)
	if ctor == nil {
		return nil, newError(Mismatch, offset, "no constructor matches: "+subtableSym.Name)
	}

	f := &Frame{
		SymbolID:      subtableSym.ID,
		Ctor:          ctor,
		Offset:        offset,
		OperandOffset: make([]uint64, len(ctor.Operands)),
		OperandLength: make([]int, len(ctor.Operands)),
		OperandVal:    make([]int64, len(ctor.Operands)),
		Children:      make([]*Frame, len(ctor.Operands)),
	}

	// Apply this constructor's context actions: immediate actions are
	// visible to later decoding within this same instruction, deferred
	// ones are only recorded as pending commits.
	for _, action := range ctor.ContextActions {
		env := sym.Env{Bytes: bytes[offset:], Context: *working}
		val := uint32(action.Value.Eval(env))
		mask := fieldMask(action.NumBits, action.StartBit)
		shifted := (val << uint(action.StartBit)) & mask
		if action.Immediate {
			*working = (*working &^ mask) | shifted
		}
		*pending = append(*pending, ctxdb.Commit{
			Addr:          addr.Address{Space: nil, Offset: offset}, // resolved to an absolute address by the caller
			NumBits:       action.NumBits,
			StartBit:      action.StartBit,
			Value:         val,
			FlowSensitive: action.FlowSensitive,
		})
	}

	if ctor.DelaySlotLength > *delaySlot {
		*delaySlot = ctor.DelaySlotLength
	}

	maxEnd := uint64(ctor.MinimumLength)
	for i, opnd := range ctor.Operands {
		base := f.Offset
		if opnd.Anchor == sym.AnchorOperand && opnd.AnchorIdx < i {
			base = f.OperandOffset[opnd.AnchorIdx]
		}
		opOffset := uint64(int64(base) + int64(opnd.OffsetRela))
		f.OperandOffset[i] = opOffset

		opSym := lang.Symbol(opnd.SymbolID)
		if opSym == nil {
			return nil, newError(Mismatch, opOffset, "unresolved operand symbol")
		}

		if opSym.Kind == sym.KindSubtable {
			child, err := decodeFrame(lang, opSym, opOffset, bytes, working, pending, delaySlot, opts)
			if err != nil {
				return nil, err
			}
			f.Children[i] = child
			f.OperandLength[i] = child.Length
			if end := opOffset + uint64(child.Length) - f.Offset; end > maxEnd {
				maxEnd = end
			}
			continue
		}

		if opSym.Pattern != nil {
			if opOffset > uint64(len(bytes)) {
				return nil, newError(ShortStream, opOffset, "operand offset beyond byte stream")
			}
			env := sym.Env{Bytes: bytes[opOffset:], Context: *working}
			val := opSym.Pattern.Eval(env)
			f.OperandVal[i] = val

			switch opSym.Kind {
			case sym.KindValue, sym.KindContextField, sym.KindName, sym.KindVarnode, sym.KindVarnodeList, sym.KindValueMap, sym.KindOperand, sym.KindEpsilon:
				// filter/value symbols: no mismatch condition beyond pattern
				// evaluation itself in this simplified model.
			case sym.KindStartMarker, sym.KindEndMarker, sym.KindNext2Marker:
				// markers carry no stream bytes.
			}
		}

		minLen := 0
		if opSym.Handle != nil {
			minLen = opSym.Handle.Size
		}
		f.OperandLength[i] = minLen
		if end := opOffset + uint64(minLen) - f.Offset; end > maxEnd {
			maxEnd = end
		}
	}

	f.Length = int(maxEnd)
	if f.Length < ctor.MinimumLength {
		f.Length = ctor.MinimumLength
	}
	return f, nil
}

func packWindow(b []byte) uint32 {
	var v uint32
	for _, by := range b {
		v = (v << 8) | uint32(by)
	}
	return v
}

func fieldMask(numBits, startBit int) uint32 {
	if numBits >= 32 {
		return ^uint32(0) << uint(startBit)
	}
	return ((uint32(1) << uint(numBits)) - 1) << uint(startBit)
}
