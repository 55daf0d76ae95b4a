// Package pcode defines the p-code operation vocabulary shared by the
// lifter (C7) and evaluator (C8), plus the arena allocator operations are
// stored in.
package pcode

// Op identifies a p-code operation. The vocabulary and names are a stable
// contract (spec §6); numeric values are this implementation's own and
// carry no external meaning.
type Op uint16

const (
	COPY Op = iota
	LOAD
	STORE

	INT_ADD
	INT_SUB
	INT_XOR
	INT_OR
	INT_AND
	INT_MUL
	INT_DIV
	INT_SDIV
	INT_REM
	INT_SREM

	INT_LSHIFT
	INT_RSHIFT
	INT_SRSHIFT

	INT_EQ
	INT_NEQ
	INT_LESS
	INT_SLESS
	INT_LESSEQ
	INT_SLESSEQ
	INT_CARRY
	INT_SCARRY
	INT_SBORROW
	INT_NOT
	INT_NEG

	POPCOUNT
	LZCOUNT
	ZEXT
	SEXT

	BOOL_AND
	BOOL_OR
	BOOL_XOR
	BOOL_NOT

	FLOAT_ADD
	FLOAT_SUB
	FLOAT_MUL
	FLOAT_DIV
	FLOAT_NEG
	FLOAT_ABS
	FLOAT_SQRT
	FLOAT_CEIL
	FLOAT_FLOOR
	FLOAT_ROUND
	FLOAT_TRUNC
	FLOAT_ISNAN
	FLOAT_EQ
	FLOAT_NEQ
	FLOAT_LESS
	FLOAT_LESSEQ
	FLOAT_INT_TO_FLOAT
	FLOAT_FLOAT_TO_FLOAT
	FLOAT_FLOAT_TO_INT

	BRANCH
	CBRANCH
	IBRANCH
	CALL
	ICALL
	RETURN

	SUBPIECE
	CALLOTHER

	opCount
)

var names = [opCount]string{
	COPY: "COPY", LOAD: "LOAD", STORE: "STORE",
	INT_ADD: "INT_ADD", INT_SUB: "INT_SUB", INT_XOR: "INT_XOR", INT_OR: "INT_OR",
	INT_AND: "INT_AND", INT_MUL: "INT_MUL", INT_DIV: "INT_DIV", INT_SDIV: "INT_SDIV",
	INT_REM: "INT_REM", INT_SREM: "INT_SREM",
	INT_LSHIFT: "INT_LSHIFT", INT_RSHIFT: "INT_RSHIFT", INT_SRSHIFT: "INT_SRSHIFT",
	INT_EQ: "INT_EQ", INT_NEQ: "INT_NEQ", INT_LESS: "INT_LESS", INT_SLESS: "INT_SLESS",
	INT_LESSEQ: "INT_LESSEQ", INT_SLESSEQ: "INT_SLESSEQ",
	INT_CARRY: "INT_CARRY", INT_SCARRY: "INT_SCARRY", INT_SBORROW: "INT_SBORROW",
	INT_NOT: "INT_NOT", INT_NEG: "INT_NEG",
	POPCOUNT: "POPCOUNT", LZCOUNT: "LZCOUNT", ZEXT: "ZEXT", SEXT: "SEXT",
	BOOL_AND: "BOOL_AND", BOOL_OR: "BOOL_OR", BOOL_XOR: "BOOL_XOR", BOOL_NOT: "BOOL_NOT",
	FLOAT_ADD: "FLOAT_ADD", FLOAT_SUB: "FLOAT_SUB", FLOAT_MUL: "FLOAT_MUL", FLOAT_DIV: "FLOAT_DIV",
	FLOAT_NEG: "FLOAT_NEG", FLOAT_ABS: "FLOAT_ABS", FLOAT_SQRT: "FLOAT_SQRT",
	FLOAT_CEIL: "FLOAT_CEIL", FLOAT_FLOOR: "FLOAT_FLOOR", FLOAT_ROUND: "FLOAT_ROUND",
	FLOAT_TRUNC: "FLOAT_TRUNC", FLOAT_ISNAN: "FLOAT_ISNAN",
	FLOAT_EQ: "FLOAT_EQ", FLOAT_NEQ: "FLOAT_NEQ", FLOAT_LESS: "FLOAT_LESS", FLOAT_LESSEQ: "FLOAT_LESSEQ",
	FLOAT_INT_TO_FLOAT: "FLOAT_INT_TO_FLOAT", FLOAT_FLOAT_TO_FLOAT: "FLOAT_FLOAT_TO_FLOAT",
	FLOAT_FLOAT_TO_INT: "FLOAT_FLOAT_TO_INT",
	BRANCH:             "BRANCH", CBRANCH: "CBRANCH", IBRANCH: "IBRANCH",
	CALL: "CALL", ICALL: "ICALL", RETURN: "RETURN",
	SUBPIECE: "SUBPIECE", CALLOTHER: "CALLOTHER",
}

func (o Op) String() string {
	if int(o) < len(names) && names[o] != "" {
		return names[o]
	}
	return "OP?"
}

// IsFlowControl reports whether o is one of the block-closing opcodes named
// in spec §4.5/§8 (block closure property): BRANCH, CBRANCH, IBRANCH, CALL,
// ICALL, RETURN.
func (o Op) IsFlowControl() bool {
	switch o {
	case BRANCH, CBRANCH, IBRANCH, CALL, ICALL, RETURN:
		return true
	default:
		return false
	}
}
