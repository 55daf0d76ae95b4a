package pcode

import (
	"fmt"
	"strings"

	"github.com/oisee/pcodevm/pkg/varnode"
)

// Insn is one p-code operation: an opcode, up to a handful of inputs, and an
// optional output. Space carries the opcode's space parameter for LOAD,
// STORE and CALLOTHER (user-op id).
type Insn struct {
	Op     Op
	Out    *varnode.Varnode // nil if the op has no output (STORE, BRANCH family, ...)
	Inputs []varnode.Varnode
	Space  int // LOAD/STORE: target space id. CALLOTHER: user-op id.
}

func (i Insn) String() string {
	var b strings.Builder
	if i.Out != nil {
		fmt.Fprintf(&b, "%s = ", i.Out)
	}
	b.WriteString(i.Op.String())
	if i.Op == LOAD || i.Op == STORE {
		fmt.Fprintf(&b, "(space=%d)", i.Space)
	}
	if i.Op == CALLOTHER {
		fmt.Fprintf(&b, "(%d)", i.Space)
	}
	for _, in := range i.Inputs {
		fmt.Fprintf(&b, " %s", in)
	}
	return b.String()
}
