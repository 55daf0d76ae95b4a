// Package sym implements the loaded SLEIGH data model (component C5): the
// symbol table, pattern expressions, constructors, decision trees and the
// per-language catalog the decoder (C6) and lifter (C7) walk. This package
// never parses SLEIGH source/XML — per spec §1/§6 that is an external
// collaborator — it only represents the data once loaded.
package sym

import "github.com/oisee/pcodevm/pkg/addr"

// Kind tags the variant a Symbol carries, per spec §3 "Symbol".
type Kind int

const (
	KindValue Kind = iota
	KindValueMap
	KindName
	KindVarnode
	KindVarnodeList
	KindContextField
	KindOperand
	KindStartMarker
	KindEndMarker
	KindNext2Marker
	KindSubtable
	KindUserOp
	KindEpsilon
	KindFlowDest
	KindFlowRef
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindValueMap:
		return "value-map"
	case KindName:
		return "name"
	case KindVarnode:
		return "varnode"
	case KindVarnodeList:
		return "varnode-list"
	case KindContextField:
		return "context-field"
	case KindOperand:
		return "operand"
	case KindStartMarker:
		return "start-marker"
	case KindEndMarker:
		return "end-marker"
	case KindNext2Marker:
		return "next2-marker"
	case KindSubtable:
		return "subtable"
	case KindUserOp:
		return "user-op"
	case KindEpsilon:
		return "epsilon"
	case KindFlowDest:
		return "flow-dest"
	case KindFlowRef:
		return "flow-ref"
	default:
		return "unknown"
	}
}

// HandleTemplate describes how a symbol's value materializes as an operand:
// a fixed varnode, an indirect ("dynamic") reference computed into a
// temporary, or a bare immediate. Spec §3 "Fixed handle".
type HandleTemplate struct {
	// Space is the storage space for a direct reference, or addr.Constant
	// for an immediate.
	Space *addr.Space
	Size  int

	// Dynamic indicates the offset must be computed at lift time (e.g. a
	// [base+index] memory operand) rather than known from the pattern alone.
	Dynamic bool
	// OffsetExpr computes the offset (direct case) or the address loaded
	// into TempSpace (dynamic case).
	OffsetExpr *Expr
	// TempSpace/TempSize describe the temporary a dynamic handle's address
	// is staged through, mirroring spec's temp_space/temp_offset fields.
	TempSpace *addr.Space
	TempSize  int
}

// Symbol is one entry of the loaded symbol table. Which fields are
// meaningful depends on Kind.
type Symbol struct {
	ID   int
	Name string
	Kind Kind

	// Pattern is how this symbol's integer value is computed during
	// decode (spec §3: "each carries a pattern expression").
	Pattern *Expr

	// Handle is populated for symbols that materialize as operands
	// (varnode, varnode-list, operand, context-field referring to a
	// register bank, etc).
	Handle *HandleTemplate

	// VarnodeList backs KindVarnodeList: pattern value indexes this list
	// to pick one of several varnodes (e.g. a register-number field).
	VarnodeList []HandleTemplate

	// ValueMap backs KindValueMap: pattern value indexes this list to pick
	// an integer (not a storage location).
	ValueMap []int64

	// Subtable backs KindSubtable.
	Subtable *Subtable

	// UserOpID backs KindUserOp: the CALLOTHER index this symbol names.
	UserOpID int
}
