package eval

import "github.com/oisee/pcodevm/pkg/addr"

// OutcomeKind classifies what a Step call determined should happen next.
type OutcomeKind int

const (
	Fall OutcomeKind = iota
	Branch
	Call
	Return
)

func (k OutcomeKind) String() string {
	switch k {
	case Fall:
		return "fall"
	case Branch:
		return "branch"
	case Call:
		return "call"
	case Return:
		return "return"
	default:
		return "unknown"
	}
}

// Target is a transfer destination: either an intra-instruction p-code
// offset (constant-space branch) or an architectural address (default-
// space branch), per spec §4.4 "Branch destinations".
type Target struct {
	PcodeRelative bool
	PcodeOffset   int
	Address       addr.Address
}

// Outcome is the result of executing exactly one p-code operation (spec
// §4.4).
type Outcome struct {
	Kind   OutcomeKind
	Target Target
}
