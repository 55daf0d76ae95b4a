// Package eval implements the p-code evaluator (component C8): execution
// of exactly one p-code operation against an abstract state.
package eval

import (
	"math"

	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/bitvec"
	"github.com/oisee/pcodevm/pkg/pcode"
	"github.com/oisee/pcodevm/pkg/state"
	"github.com/oisee/pcodevm/pkg/varnode"
)

// Context supplies the per-language resources Step needs beyond the
// instruction and state: the space table (to resolve LOAD/STORE space
// ids), the default space (for indirect branch targets), and an optional
// user-op dispatcher.
type Context struct {
	Spaces       *addr.Table
	DefaultSpace *addr.Space
	Dispatcher   Dispatcher
}

// Step executes one p-code instruction against st, returning the resulting
// control-transfer outcome (spec §4.4).
func Step(ctx Context, st state.State, insn pcode.Insn) (Outcome, error) {
	switch insn.Op {
	case pcode.COPY:
		return fallThrough(), unary(st, insn, func(a bitvec.Value) bitvec.Value { return a })
	case pcode.LOAD:
		return fallThrough(), execLoad(ctx, st, insn)
	case pcode.STORE:
		return fallThrough(), execStore(ctx, st, insn)

	case pcode.INT_ADD:
		return fallThrough(), binary(st, insn, bitvec.Add)
	case pcode.INT_SUB:
		return fallThrough(), binary(st, insn, bitvec.Sub)
	case pcode.INT_XOR:
		return fallThrough(), binary(st, insn, bitvec.Xor)
	case pcode.INT_OR:
		return fallThrough(), binary(st, insn, bitvec.Or)
	case pcode.INT_AND:
		return fallThrough(), binary(st, insn, bitvec.And)
	case pcode.INT_MUL:
		return fallThrough(), binary(st, insn, bitvec.Mul)
	case pcode.INT_DIV:
		return fallThrough(), binaryChecked(st, insn, bitvec.Udiv)
	case pcode.INT_SDIV:
		return fallThrough(), binaryChecked(st, insn, bitvec.Sdiv)
	case pcode.INT_REM:
		return fallThrough(), binaryChecked(st, insn, bitvec.Urem)
	case pcode.INT_SREM:
		return fallThrough(), binaryChecked(st, insn, bitvec.Srem)

	case pcode.INT_LSHIFT:
		return fallThrough(), shiftOp(st, insn, bitvec.Shl)
	case pcode.INT_RSHIFT:
		return fallThrough(), shiftOp(st, insn, bitvec.Shr)
	case pcode.INT_SRSHIFT:
		return fallThrough(), shiftOp(st, insn, bitvec.Sar)

	case pcode.INT_EQ:
		return fallThrough(), binary(st, insn, bitvec.Eq)
	case pcode.INT_NEQ:
		return fallThrough(), binary(st, insn, bitvec.NotEq)
	case pcode.INT_LESS:
		return fallThrough(), binary(st, insn, bitvec.Less)
	case pcode.INT_SLESS:
		return fallThrough(), binary(st, insn, bitvec.SLess)
	case pcode.INT_LESSEQ:
		return fallThrough(), binary(st, insn, bitvec.LessEq)
	case pcode.INT_SLESSEQ:
		return fallThrough(), binary(st, insn, bitvec.SLessEq)
	case pcode.INT_CARRY:
		return fallThrough(), binary(st, insn, bitvec.Carry)
	case pcode.INT_SCARRY:
		return fallThrough(), binary(st, insn, bitvec.SCarry)
	case pcode.INT_SBORROW:
		return fallThrough(), binary(st, insn, bitvec.SBorrow)
	case pcode.INT_NOT:
		return fallThrough(), unary(st, insn, bitvec.Not)
	case pcode.INT_NEG:
		return fallThrough(), unary(st, insn, bitvec.Neg)

	case pcode.POPCOUNT:
		return fallThrough(), unary(st, insn, bitvec.Popcount)
	case pcode.LZCOUNT:
		return fallThrough(), unary(st, insn, bitvec.Lzcount)
	case pcode.ZEXT:
		return fallThrough(), unaryWiden(st, insn, bitvec.Zext)
	case pcode.SEXT:
		return fallThrough(), unaryWiden(st, insn, bitvec.Sext)

	case pcode.BOOL_AND:
		return fallThrough(), binary(st, insn, func(a, b bitvec.Value) bitvec.Value { return bitvec.And(a, b) })
	case pcode.BOOL_OR:
		return fallThrough(), binary(st, insn, func(a, b bitvec.Value) bitvec.Value { return bitvec.Or(a, b) })
	case pcode.BOOL_XOR:
		return fallThrough(), binary(st, insn, func(a, b bitvec.Value) bitvec.Value { return bitvec.Xor(a, b) })
	case pcode.BOOL_NOT:
		return fallThrough(), unary(st, insn, func(a bitvec.Value) bitvec.Value {
			if a.Uint64() == 0 {
				return bitvec.FromUint64(1, 1)
			}
			return bitvec.FromUint64(0, 1)
		})

	case pcode.FLOAT_ADD, pcode.FLOAT_SUB, pcode.FLOAT_MUL, pcode.FLOAT_DIV,
		pcode.FLOAT_EQ, pcode.FLOAT_NEQ, pcode.FLOAT_LESS, pcode.FLOAT_LESSEQ:
		return fallThrough(), floatBinary(st, insn)
	case pcode.FLOAT_NEG, pcode.FLOAT_ABS, pcode.FLOAT_SQRT, pcode.FLOAT_CEIL,
		pcode.FLOAT_FLOOR, pcode.FLOAT_ROUND, pcode.FLOAT_TRUNC, pcode.FLOAT_ISNAN:
		return fallThrough(), floatUnary(st, insn)
	case pcode.FLOAT_INT_TO_FLOAT:
		return fallThrough(), floatIntToFloat(st, insn)
	case pcode.FLOAT_FLOAT_TO_FLOAT:
		return fallThrough(), floatToFloat(st, insn)
	case pcode.FLOAT_FLOAT_TO_INT:
		return fallThrough(), floatToInt(st, insn)

	case pcode.SUBPIECE:
		return fallThrough(), execSubpiece(st, insn)

	case pcode.BRANCH:
		return execDirectBranch(ctx, st, insn, Branch)
	case pcode.CBRANCH:
		return execCondBranch(ctx, st, insn)
	case pcode.IBRANCH:
		return execDirectBranch(ctx, st, insn, Branch)
	case pcode.CALL:
		return execDirectBranch(ctx, st, insn, Call)
	case pcode.ICALL:
		return execDirectBranch(ctx, st, insn, Call)
	case pcode.RETURN:
		return execDirectBranch(ctx, st, insn, Return)

	case pcode.CALLOTHER:
		return fallThrough(), execCallOther(ctx, insn)
	}
	return Outcome{}, newError(StateAccess, "unknown opcode")
}

func fallThrough() Outcome { return Outcome{Kind: Fall} }

func readVn(st state.State, vn varnode.Varnode) (bitvec.Value, error) {
	v, err := st.ReadVarnode(vn)
	if err != nil {
		return bitvec.Value{}, newErrorWrap(StateAccess, "varnode read failed", err)
	}
	return v, nil
}

func newErrorWrap(kind Kind, detail string, wrapped error) *Error {
	return &Error{Kind: kind, Detail: detail, Wrapped: wrapped}
}

func unary(st state.State, insn pcode.Insn, f func(bitvec.Value) bitvec.Value) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	return writeOut(st, insn, f(a))
}

func unaryWiden(st state.State, insn pcode.Insn, f func(bitvec.Value, int) bitvec.Value) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	width := 4
	if insn.Out != nil {
		width = insn.Out.Size
	}
	return writeOut(st, insn, f(a, width))
}

func binary(st state.State, insn pcode.Insn, f func(a, b bitvec.Value) bitvec.Value) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	b, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return err
	}
	return writeOut(st, insn, f(a, b))
}

func binaryChecked(st state.State, insn pcode.Insn, f func(a, b bitvec.Value) bitvec.Value) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	b, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return err
	}
	if b.Uint64() == 0 {
		return newError(DivisionByZero, "division or remainder by zero")
	}
	return writeOut(st, insn, f(a, b))
}

func shiftOp(st state.State, insn pcode.Insn, f func(a bitvec.Value, amount uint) bitvec.Value) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	b, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return err
	}
	return writeOut(st, insn, f(a, uint(b.Uint64())))
}

func writeOut(st state.State, insn pcode.Insn, val bitvec.Value) error {
	if insn.Out == nil {
		return nil
	}
	if err := st.WriteVarnode(*insn.Out, val); err != nil {
		return newErrorWrap(StateAccess, "varnode write failed", err)
	}
	return nil
}

func execLoad(ctx Context, st state.State, insn pcode.Insn) error {
	addrVal, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	sp := ctx.Spaces.ByID(insn.Space)
	if sp == nil {
		return newError(UnmappedMemory, "LOAD references unknown space id")
	}
	size := 1
	if insn.Out != nil {
		size = insn.Out.Size
	}
	src := varnode.New(sp, addrVal.Uint64(), size)
	val, err := readVn(st, src)
	if err != nil {
		return newErrorWrap(UnmappedMemory, "LOAD from unmapped address", err)
	}
	return writeOut(st, insn, val)
}

func execStore(ctx Context, st state.State, insn pcode.Insn) error {
	addrVal, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	val, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return err
	}
	sp := ctx.Spaces.ByID(insn.Space)
	if sp == nil {
		return newError(UnmappedMemory, "STORE references unknown space id")
	}
	dst := varnode.New(sp, addrVal.Uint64(), val.Width())
	if err := st.WriteVarnode(dst, val); err != nil {
		return newErrorWrap(UnmappedMemory, "STORE to unmapped address", err)
	}
	return nil
}

func execSubpiece(st state.State, insn pcode.Insn) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	shift, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return err
	}
	outWidth := 1
	if insn.Out != nil {
		outWidth = insn.Out.Size
	}
	return writeOut(st, insn, bitvec.Subpiece(a, int(shift.Uint64()), outWidth))
}

func targetFromVarnode(ctx Context, st state.State, vn varnode.Varnode) (Target, error) {
	if vn.Space == nil {
		return Target{}, newError(StateAccess, "branch target varnode has no space")
	}
	switch vn.Space.Kind {
	case addr.Constant:
		v := bitvec.FromUint64(vn.Offset, vn.Size)
		return Target{PcodeRelative: true, PcodeOffset: int(v.Int64())}, nil
	case addr.RAM:
		return Target{Address: addr.Address{Space: vn.Space, Offset: vn.Offset}}, nil
	default:
		val, err := readVn(st, vn)
		if err != nil {
			return Target{}, err
		}
		return Target{Address: addr.Address{Space: ctx.DefaultSpace, Offset: val.Uint64()}}, nil
	}
}

func execDirectBranch(ctx Context, st state.State, insn pcode.Insn, kind OutcomeKind) (Outcome, error) {
	t, err := targetFromVarnode(ctx, st, insn.Inputs[0])
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: kind, Target: t}, nil
}

func execCondBranch(ctx Context, st state.State, insn pcode.Insn) (Outcome, error) {
	cond, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return Outcome{}, err
	}
	if cond.Uint64() == 0 {
		return fallThrough(), nil
	}
	return execDirectBranch(ctx, st, insn, Branch)
}

func execCallOther(ctx Context, insn pcode.Insn) error {
	if ctx.Dispatcher == nil {
		return newError(UnknownUserOp, "no user-op dispatcher configured")
	}
	if err := ctx.Dispatcher.CallOther(insn.Space, insn.Inputs, insn.Out); err != nil {
		return newErrorWrap(UnknownUserOp, "user-op dispatch failed", err)
	}
	return nil
}

// --- floating point -------------------------------------------------------

func toFloat(v bitvec.Value) (float64, error) {
	switch v.Width() {
	case 4:
		return float64(math.Float32frombits(uint32(v.Uint64()))), nil
	case 8:
		return math.Float64frombits(v.Uint64()), nil
	default:
		return 0, newError(StateAccess, "unsupported float width (only 4 and 8 bytes supported)")
	}
}

func fromFloat(f float64, width int) (bitvec.Value, error) {
	switch width {
	case 4:
		return bitvec.FromUint64(uint64(math.Float32bits(float32(f))), 4), nil
	case 8:
		return bitvec.FromUint64(math.Float64bits(f), 8), nil
	default:
		return bitvec.Value{}, newError(StateAccess, "unsupported float width (only 4 and 8 bytes supported)")
	}
}

func floatBinary(st state.State, insn pcode.Insn) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	b, err := readVn(st, insn.Inputs[1])
	if err != nil {
		return err
	}
	fa, err := toFloat(a)
	if err != nil {
		return err
	}
	fb, err := toFloat(b)
	if err != nil {
		return err
	}
	var result float64
	boolResult := false
	bv := false
	switch insn.Op {
	case pcode.FLOAT_ADD:
		result = fa + fb
	case pcode.FLOAT_SUB:
		result = fa - fb
	case pcode.FLOAT_MUL:
		result = fa * fb
	case pcode.FLOAT_DIV:
		result = fa / fb
	case pcode.FLOAT_EQ:
		boolResult, bv = true, fa == fb
	case pcode.FLOAT_NEQ:
		boolResult, bv = true, fa != fb
	case pcode.FLOAT_LESS:
		boolResult, bv = true, fa < fb
	case pcode.FLOAT_LESSEQ:
		boolResult, bv = true, fa <= fb
	}
	if boolResult {
		return writeOut(st, insn, bitvec.FromUint64(boolToU64(bv), 1))
	}
	width := a.Width()
	if insn.Out != nil {
		width = insn.Out.Size
	}
	out, err := fromFloat(result, width)
	if err != nil {
		return err
	}
	return writeOut(st, insn, out)
}

func floatUnary(st state.State, insn pcode.Insn) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	fa, err := toFloat(a)
	if err != nil {
		return err
	}
	if insn.Op == pcode.FLOAT_ISNAN {
		return writeOut(st, insn, bitvec.FromUint64(boolToU64(math.IsNaN(fa)), 1))
	}
	var result float64
	switch insn.Op {
	case pcode.FLOAT_NEG:
		result = -fa
	case pcode.FLOAT_ABS:
		result = math.Abs(fa)
	case pcode.FLOAT_SQRT:
		result = math.Sqrt(fa)
	case pcode.FLOAT_CEIL:
		result = math.Ceil(fa)
	case pcode.FLOAT_FLOOR:
		result = math.Floor(fa)
	case pcode.FLOAT_ROUND:
		result = math.Round(fa)
	case pcode.FLOAT_TRUNC:
		result = math.Trunc(fa)
	}
	width := a.Width()
	if insn.Out != nil {
		width = insn.Out.Size
	}
	out, err := fromFloat(result, width)
	if err != nil {
		return err
	}
	return writeOut(st, insn, out)
}

func floatIntToFloat(st state.State, insn pcode.Insn) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	width := 8
	if insn.Out != nil {
		width = insn.Out.Size
	}
	out, err := fromFloat(float64(a.Int64()), width)
	if err != nil {
		return err
	}
	return writeOut(st, insn, out)
}

func floatToFloat(st state.State, insn pcode.Insn) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	fa, err := toFloat(a)
	if err != nil {
		return err
	}
	width := 8
	if insn.Out != nil {
		width = insn.Out.Size
	}
	out, err := fromFloat(fa, width)
	if err != nil {
		return err
	}
	return writeOut(st, insn, out)
}

func floatToInt(st state.State, insn pcode.Insn) error {
	a, err := readVn(st, insn.Inputs[0])
	if err != nil {
		return err
	}
	fa, err := toFloat(a)
	if err != nil {
		return err
	}
	width := 4
	if insn.Out != nil {
		width = insn.Out.Size
	}
	return writeOut(st, insn, bitvec.FromInt64(int64(fa), width))
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
