// Package engine implements the translation cache and engine (component
// C9): grouping instructions into translation blocks keyed by entry
// address, lifting on demand, and driving the evaluator.
package engine

import (
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/pcode"
)

// Block is a translation block: a linear run of instructions extending
// until — and including — the first flow-altering instruction or user-op
// (CALLOTHER) instruction, or a decode/lift failure (spec §3 "Translation
// block").
type Block struct {
	Entry               addr.Address
	InstructionOffsets  []int // byte offset of each instruction, relative to Entry
	InstructionArenaEnd []int // arena index one-past each instruction's p-code (including its delay slots)
	RawBytes            []byte
	Arena               *pcode.Arena
	PendingCommits      []ctxdb.Commit

	// FailedAt, if >= 0, is the byte offset (relative to Entry) of the
	// first instruction that failed to decode/lift; the block's p-code
	// ends at the instruction before it (spec §4.5 "Failure model": a
	// first-instruction failure yields the block-level Failed state,
	// anything after is a usable partial block).
	FailedAt int
	FailErr  error
}

// Len returns the number of successfully lifted instructions.
func (b *Block) Len() int { return len(b.InstructionOffsets) }

// CodeSource supplies the raw bytes the engine decodes from. Implementations
// typically wrap a flat buffer or a loader; out of scope for this package
// (spec §1: file loaders are an external collaborator).
type CodeSource interface {
	Bytes(a addr.Address, maxLen int) ([]byte, error)
}
