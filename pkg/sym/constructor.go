package sym

import "github.com/oisee/pcodevm/pkg/pcode"

// Anchor names the offset base an operand's displacement is relative to.
type Anchor int

const (
	AnchorNone Anchor = iota
	AnchorOperand       // relative to another operand's offset within the same constructor
)

// Operand is one entry of a constructor's ordered operand list, per spec §3
// "Constructor".
type Operand struct {
	SymbolID   int // index into the owning Language's symbol table
	Anchor     Anchor
	AnchorIdx  int // operand index used as the anchor base, when Anchor == AnchorOperand
	OffsetRela int
}

// ContextAction is a write applied to the working context word on a
// constructor match (spec §3 "context action set").
type ContextAction struct {
	NumBits       int
	StartBit      int
	Value         *Expr // evaluated against the matched operands to produce the write value
	Immediate     bool  // true: visible to later decoding of the same instruction; false: deferred to commit
	FlowSensitive bool
}

// PrintPiece is one element of a constructor's textual rendering: either a
// literal string or a reference to an operand's own printed form.
type PrintPiece struct {
	Literal      string
	OperandIndex int // used when Literal == "" to signal "substitute operand N"
	IsOperand    bool
}

// OperandRefKind tags what a SemOp's input/output argument refers to.
type OperandRefKind int

const (
	RefConst OperandRefKind = iota
	RefConstExpr
	RefOperand
	RefTemp
	RefLabel
)

// OperandRef is one operand of a semantic-template instruction: a constant,
// a computed constant expression, a reference to one of the constructor's
// operand handles, a previously emitted local temporary, or a forward/
// backward intra-template branch label.
type OperandRef struct {
	Kind    OperandRefKind
	Const   int64
	Expr    *Expr
	Operand int // index into the constructor's Operands, for RefOperand
	Temp    int // index into the template's local temporaries, for RefTemp
	Label   int // label id, for RefLabel; resolved to a constant-space op offset at build time
	Size    int // byte width, when the ref itself determines it (RefConst/RefConstExpr/RefLabel)
}

// SemOp is one instruction of a constructor's semantic template: an
// abstract p-code operation over operand handles, to be instantiated by the
// lifter (spec §3 "semantic template").
type SemOp struct {
	Op      pcode.Op
	Out     *OperandRef // nil if the op produces no output
	OutTemp bool        // true: Out names a new local temporary rather than an operand
	Inputs  []OperandRef
	Space   int // LOAD/STORE target space id, or CALLOTHER user-op id

	// LabelDef, if nonzero, marks this op's position as the target of the
	// matching label id used by a RefLabel input elsewhere in the template.
	LabelDef int
}

// Constructor is the atomic decoding unit (spec §3 "Constructor").
type Constructor struct {
	ID              int
	Operands        []Operand
	TokenBits       int // bits consumed directly by this constructor's own pattern (not sub-constructors)
	PatternMask     uint32
	PatternValue    uint32
	ContextMask     uint32
	ContextValue    uint32
	ContextActions  []ContextAction
	Template        []SemOp
	PrintPieces     []PrintPiece
	Mnemonic        string
	MinimumLength   int
	DelaySlotLength int

	// Export names the operand or template temporary that becomes this
	// constructor's own handle when it is referenced as an operand of an
	// enclosing constructor. Nil for constructors that only ever appear at
	// the root (whole instructions). The lifter resolves RefOperand and
	// RefConst exports; a RefTemp export is not resolved and the lifter uses
	// its default handle instead.
	Export *OperandRef
}

// Matches reports whether the constructor's bit pattern and context
// predicate are satisfied by the given token window and working context.
func (c *Constructor) Matches(tokenBits uint32, context uint32) bool {
	if tokenBits&c.PatternMask != c.PatternValue {
		return false
	}
	return context&c.ContextMask == c.ContextValue
}
