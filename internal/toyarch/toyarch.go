// Package toyarch builds the loaded sym.Language for TOY16, a minimal
// 16-bit demonstration architecture used to exercise the decoder, lifter,
// evaluator and translation cache end to end without depending on a real
// processor manual.
//
// TOY16 is little-endian, 16-bit addressed, with four general registers
// (R0-R3), a stack pointer and a program counter, and a thirteen-opcode
// instruction set fixed at two bytes per instruction (branch/call/jump
// displacements are folded into the same width rather than growing it).
package toyarch

import (
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/pcode"
	"github.com/oisee/pcodevm/pkg/sym"
)

// Opcode values occupy the top nibble of every instruction word.
const (
	OpNOP = iota
	OpMOVI
	OpMOVR
	OpADD
	OpSUB
	OpMUL
	OpLD
	OpST
	OpCALL
	OpRET
	OpBEQ
	OpJMP
	OpSYS
)

// Register-space byte offsets. PC sits at offset 0 to match the translation
// cache's own default PC-varnode placement.
const (
	OffsetPC = 0
	OffsetR0 = 2
	OffsetR1 = 4
	OffsetR2 = 6
	OffsetR3 = 8
	OffsetSP = 10

	RegisterSpaceSize = 12
)

// UserOpHalt is the CALLOTHER index SYS dispatches through.
const UserOpHalt = 0

// Space IDs.
const (
	spaceRAM = iota
	spaceRegister
	spaceUnique
	spaceConstant
)

func constExpr(v int64) *sym.Expr { return &sym.Expr{Kind: sym.ExprConst, Const: v} }

func tokenField(start, end int, signed bool) *sym.Expr {
	return &sym.Expr{Kind: sym.ExprTokenField, Token: sym.Field{StartBit: start, EndBit: end, Signed: signed}}
}

// New builds a fresh TOY16 Language. Each call returns an independent value
// (the Language is meant to be cached in a sym.Catalog by its caller, not
// rebuilt per instruction).
func New() *sym.Language {
	ramSpace := addr.NewSpace(spaceRAM, "ram", addr.RAM, 2, 1, false, 0)
	regSpace := addr.NewSpace(spaceRegister, "register", addr.Register, 2, 1, false, 0)
	uniqueSpace := addr.NewSpace(spaceUnique, "unique", addr.Unique, 2, 1, false, 0)
	constSpace := addr.NewSpace(spaceConstant, "const", addr.Constant, 4, 1, false, 0)
	spaces := addr.NewTable(ramSpace, regSpace, uniqueSpace, constSpace)

	regBank := []sym.HandleTemplate{
		{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetR0)},
		{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetR1)},
		{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetR2)},
		{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetR3)},
	}

	var syms []*sym.Symbol
	add := func(s *sym.Symbol) int {
		s.ID = len(syms)
		syms = append(syms, s)
		return s.ID
	}

	idRegD := add(&sym.Symbol{Name: "RegD", Kind: sym.KindVarnodeList, Pattern: tokenField(4, 5, false), VarnodeList: regBank})
	idRegS := add(&sym.Symbol{Name: "RegS", Kind: sym.KindVarnodeList, Pattern: tokenField(6, 7, false), VarnodeList: regBank})
	idPC := add(&sym.Symbol{Name: "pc", Kind: sym.KindVarnode, Handle: &sym.HandleTemplate{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetPC)}})
	idSP := add(&sym.Symbol{Name: "sp", Kind: sym.KindVarnode, Handle: &sym.HandleTemplate{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetSP)}})
	idImm8U := add(&sym.Symbol{Name: "imm8u", Kind: sym.KindValue, Pattern: tokenField(8, 15, false)})
	idImm8S := add(&sym.Symbol{Name: "imm8s", Kind: sym.KindValue, Pattern: tokenField(8, 15, true)})
	idImm12S := add(&sym.Symbol{Name: "imm12s", Kind: sym.KindValue, Pattern: tokenField(4, 15, true)})

	// AddrMode is a two-constructor subtable wrapping a register operand, to
	// exercise subtable nesting: the most significant bit of the
	// instruction's second byte (bit 23 of the 32-bit token window) picks
	// between a plain "[Rs]" form
	// and a cosmetically tagged "[Rs]!" form. Both export the wrapped
	// register's own handle unchanged; this subtable models addressing-mode
	// dispatch, not a real post-increment.
	addrDirect := &sym.Constructor{
		ID:            1,
		Operands:      []sym.Operand{{SymbolID: idRegS}},
		PatternMask:   0x00800000,
		PatternValue:  0x00000000,
		MinimumLength: 0,
		Mnemonic:      "[Rs]",
		PrintPieces:   []sym.PrintPiece{{Literal: "["}, {IsOperand: true, OperandIndex: 0}, {Literal: "]"}},
		Export:        &sym.OperandRef{Kind: sym.RefOperand, Operand: 0},
	}
	addrTagged := &sym.Constructor{
		ID:            2,
		Operands:      []sym.Operand{{SymbolID: idRegS}},
		PatternMask:   0x00800000,
		PatternValue:  0x00800000,
		MinimumLength: 0,
		Mnemonic:      "[Rs]!",
		PrintPieces:   []sym.PrintPiece{{Literal: "["}, {IsOperand: true, OperandIndex: 0}, {Literal: "]!"}},
		Export:        &sym.OperandRef{Kind: sym.RefOperand, Operand: 0},
	}
	idAddrMode := add(&sym.Symbol{
		Name: "AddrMode",
		Kind: sym.KindSubtable,
	})
	syms[idAddrMode].Subtable = sym.NewLinearSubtable(addrDirect, addrTagged)

	root := buildRootConstructors(idRegD, idRegS, idPC, idSP, idImm8U, idImm8S, idImm12S, idAddrMode, ramSpace.ID)
	idRoot := add(&sym.Symbol{Name: "instruction", Kind: sym.KindSubtable})
	syms[idRoot].Subtable = sym.NewLinearSubtable(root...)

	return &sym.Language{
		ID:            "TOY:LE:16:default",
		Spaces:        spaces,
		DefaultSpace:  ramSpace,
		RegisterSpace: regSpace,
		UniqueSpace:   uniqueSpace,
		ConstantSpace: constSpace,
		Symbols:       syms,
		RootSymbolID:  idRoot,
		PCRegister:    sym.HandleTemplate{Space: regSpace, Size: 2, OffsetExpr: constExpr(OffsetPC)},
		UserOps:       []string{"halt"},
		Convention:    "default",
	}
}

func opcodePattern(opcode uint32) (mask, value uint32) {
	return 0xF0000000, opcode << 28
}

// buildRootConstructors builds the thirteen root-level opcodes. Every
// constructor carries pc as a hidden Operands[0], and every template opens
// with the same inst_next computation ("nextpc_temp = pc + 2"), matching the
// convention real SLEIGH specs use: each instruction needs its own "address
// of the following instruction" for displacement/return-address math. The
// translation cache writes each instruction's own address into the live pc
// register before running that instruction's p-code, so pc + 2 names the
// instruction after it even in the middle of a block. Computing it into a
// scratch temporary instead of writing it back to the live pc register keeps
// this bookkeeping invisible to the translation cache's block-closure check,
// which treats any write to the real pc register as a control transfer (spec
// §4.5); no template writes the live pc register except through a
// CALL/BRANCH/CBRANCH/RETURN outcome.
func buildRootConstructors(idRegD, idRegS, idPC, idSP, idImm8U, idImm8S, idImm12S, idAddrMode, ramSpaceID int) []*sym.Constructor {
	var out []*sym.Constructor
	next := 1
	add := func(c *sym.Constructor) {
		c.ID = next
		next++
		out = append(out, c)
	}

	regOut := func(idx int) *sym.OperandRef { return &sym.OperandRef{Kind: sym.RefOperand, Operand: idx} }
	tempOut := func(id, size int) *sym.OperandRef { return &sym.OperandRef{Kind: sym.RefTemp, Temp: id, Size: size} }
	temp := func(id int) sym.OperandRef { return sym.OperandRef{Kind: sym.RefTemp, Temp: id} }
	constRef := func(v int64, size int) sym.OperandRef { return sym.OperandRef{Kind: sym.RefConst, Const: v, Size: size} }
	operand := func(idx int) sym.OperandRef { return sym.OperandRef{Kind: sym.RefOperand, Operand: idx} }

	// nextPCTemp is the per-instruction local temporary pcAdvance computes
	// into: "address of the instruction following this one" (the inst_next
	// convention), derived from operand 0 (the hidden pc operand) but never
	// written back to the live pc register. A template that needs inst_next
	// for a displacement base or a return address reads temp(nextPCTemp),
	// not operand(0), so the value only reaches the architectural pc
	// register through an explicit CALL/BRANCH/RETURN outcome — never as a
	// plain register write the translation cache's block-closure check
	// would mistake for a control-transfer (spec §4.5 "writes the program
	// counter" means an architectural write, not this bookkeeping one).
	const nextPCTemp = 9

	pcAdvance := sym.SemOp{Op: pcode.INT_ADD, OutTemp: true, Out: tempOut(nextPCTemp, 2), Inputs: []sym.OperandRef{operand(0), constRef(2, 2)}}

	// operands prepends the hidden pc operand to an instruction's own
	// operand list; ops builds a template starting with pcAdvance.
	operands := func(rest ...sym.Operand) []sym.Operand {
		return append([]sym.Operand{{SymbolID: idPC}}, rest...)
	}
	ops := func(rest ...sym.SemOp) []sym.SemOp {
		return append([]sym.SemOp{pcAdvance}, rest...)
	}

	// NOP
	{
		mask, val := opcodePattern(OpNOP)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands:    operands(),
			Template:    ops(),
			Mnemonic:    "NOP",
			PrintPieces: []sym.PrintPiece{{Literal: "NOP"}},
		})
	}

	// MOVI Rd, imm8u — also demonstrates a deferred context action: it
	// raises a "last instruction touched a register" marker bit for the
	// instruction that follows, purely as a context-database exercise.
	{
		mask, val := opcodePattern(OpMOVI)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idImm8U}),
			Template: ops(
				sym.SemOp{Op: pcode.COPY, Out: regOut(1), Inputs: []sym.OperandRef{operand(2)}},
			),
			ContextActions: []sym.ContextAction{
				{NumBits: 1, StartBit: 31, Value: constExpr(1), Immediate: false, FlowSensitive: false},
			},
			Mnemonic:    "MOVI",
			PrintPieces: []sym.PrintPiece{{Literal: "MOVI "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// MOVR Rd, Rs
	{
		mask, val := opcodePattern(OpMOVR)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idRegS}),
			Template: ops(
				sym.SemOp{Op: pcode.COPY, Out: regOut(1), Inputs: []sym.OperandRef{operand(2)}},
			),
			Mnemonic:    "MOVR",
			PrintPieces: []sym.PrintPiece{{Literal: "MOVR "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// ADD Rd, Rs  (Rd = Rd + Rs)
	{
		mask, val := opcodePattern(OpADD)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idRegS}),
			Template: ops(
				sym.SemOp{Op: pcode.INT_ADD, Out: regOut(1), Inputs: []sym.OperandRef{operand(1), operand(2)}},
			),
			Mnemonic:    "ADD",
			PrintPieces: []sym.PrintPiece{{Literal: "ADD "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// SUB Rd, Rs
	{
		mask, val := opcodePattern(OpSUB)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idRegS}),
			Template: ops(
				sym.SemOp{Op: pcode.INT_SUB, Out: regOut(1), Inputs: []sym.OperandRef{operand(1), operand(2)}},
			),
			Mnemonic:    "SUB",
			PrintPieces: []sym.PrintPiece{{Literal: "SUB "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// MUL Rd, Rs
	{
		mask, val := opcodePattern(OpMUL)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idRegS}),
			Template: ops(
				sym.SemOp{Op: pcode.INT_MUL, Out: regOut(1), Inputs: []sym.OperandRef{operand(1), operand(2)}},
			),
			Mnemonic:    "MUL",
			PrintPieces: []sym.PrintPiece{{Literal: "MUL "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// LD Rd, AddrMode — register-indirect load through the nested subtable.
	{
		mask, val := opcodePattern(OpLD)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idAddrMode}),
			Template: ops(
				sym.SemOp{Op: pcode.LOAD, Out: regOut(1), Inputs: []sym.OperandRef{operand(2)}, Space: ramSpaceID},
			),
			Mnemonic:    "LD",
			PrintPieces: []sym.PrintPiece{{Literal: "LD "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// ST Rd, Rs — mem[Rd] = Rs
	{
		mask, val := opcodePattern(OpST)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idRegS}),
			Template: ops(
				sym.SemOp{Op: pcode.STORE, Inputs: []sym.OperandRef{operand(1), operand(2)}, Space: ramSpaceID},
			),
			Mnemonic:    "ST",
			PrintPieces: []sym.PrintPiece{{Literal: "ST "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// CALL imm12s — push the return address, then branch to pc+imm12. The
	// inst_next temp computed by pcAdvance is already the address past this
	// instruction, so it doubles as both the return address and the
	// displacement base.
	{
		mask, val := opcodePattern(OpCALL)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idSP}, sym.Operand{SymbolID: idImm12S}),
			Template: ops(
				sym.SemOp{Op: pcode.INT_ADD, OutTemp: true, Out: tempOut(0, 2), Inputs: []sym.OperandRef{temp(nextPCTemp), operand(2)}},
				sym.SemOp{Op: pcode.INT_SUB, OutTemp: true, Out: tempOut(1, 2), Inputs: []sym.OperandRef{operand(1), constRef(2, 2)}},
				sym.SemOp{Op: pcode.STORE, Inputs: []sym.OperandRef{temp(1), temp(nextPCTemp)}, Space: ramSpaceID},
				sym.SemOp{Op: pcode.COPY, Out: regOut(1), Inputs: []sym.OperandRef{temp(1)}},
				sym.SemOp{Op: pcode.CALL, Inputs: []sym.OperandRef{temp(0)}},
			),
			Mnemonic:    "CALL",
			PrintPieces: []sym.PrintPiece{{Literal: "CALL "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// RET — pop the return address off the stack and return to it.
	{
		mask, val := opcodePattern(OpRET)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idSP}),
			Template: ops(
				sym.SemOp{Op: pcode.LOAD, OutTemp: true, Out: tempOut(0, 2), Inputs: []sym.OperandRef{operand(1)}, Space: ramSpaceID},
				sym.SemOp{Op: pcode.INT_ADD, Out: regOut(1), Inputs: []sym.OperandRef{operand(1), constRef(2, 2)}},
				sym.SemOp{Op: pcode.RETURN, Inputs: []sym.OperandRef{temp(0)}},
			),
			Mnemonic:    "RET",
			PrintPieces: []sym.PrintPiece{{Literal: "RET"}},
		})
	}

	// BEQ Rd, imm8s — branch to pc+imm8 when Rd == 0, using the inst_next
	// temp pcAdvance already computed as the displacement base.
	{
		mask, val := opcodePattern(OpBEQ)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idRegD}, sym.Operand{SymbolID: idImm8S}),
			Template: ops(
				sym.SemOp{Op: pcode.INT_ADD, OutTemp: true, Out: tempOut(0, 2), Inputs: []sym.OperandRef{temp(nextPCTemp), operand(2)}},
				sym.SemOp{Op: pcode.INT_EQ, OutTemp: true, Out: tempOut(1, 1), Inputs: []sym.OperandRef{operand(1), constRef(0, 2)}},
				sym.SemOp{Op: pcode.CBRANCH, Inputs: []sym.OperandRef{temp(0), temp(1)}},
			),
			Mnemonic:    "BEQ",
			PrintPieces: []sym.PrintPiece{{Literal: "BEQ "}, {IsOperand: true, OperandIndex: 1}, {Literal: ", "}, {IsOperand: true, OperandIndex: 2}},
		})
	}

	// JMP imm12s — unconditional branch to pc+imm12, using the inst_next
	// temp pcAdvance already computed as the displacement base.
	{
		mask, val := opcodePattern(OpJMP)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idImm12S}),
			Template: ops(
				sym.SemOp{Op: pcode.INT_ADD, OutTemp: true, Out: tempOut(0, 2), Inputs: []sym.OperandRef{temp(nextPCTemp), operand(1)}},
				sym.SemOp{Op: pcode.BRANCH, Inputs: []sym.OperandRef{temp(0)}},
			),
			Mnemonic:    "JMP",
			PrintPieces: []sym.PrintPiece{{Literal: "JMP "}, {IsOperand: true, OperandIndex: 1}},
		})
	}

	// SYS imm8u — dispatches a CALLOTHER user-op (UserOpHalt by convention).
	{
		mask, val := opcodePattern(OpSYS)
		add(&sym.Constructor{
			PatternMask: mask, PatternValue: val, MinimumLength: 2,
			Operands: operands(sym.Operand{SymbolID: idImm8U}),
			Template: ops(
				sym.SemOp{Op: pcode.CALLOTHER, Inputs: []sym.OperandRef{operand(1)}, Space: UserOpHalt},
			),
			Mnemonic:    "SYS",
			PrintPieces: []sym.PrintPiece{{Literal: "SYS "}, {IsOperand: true, OperandIndex: 1}},
		})
	}

	return out
}
