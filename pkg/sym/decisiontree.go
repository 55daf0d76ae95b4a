package sym

import "sort"

// DecisionNode is one node of a subtable's discrimination tree: it tests one
// bit range of the token stream and branches to a child by the extracted
// value, or falls through to Constructors at a leaf (spec §3 "Decision
// tree").
type DecisionNode struct {
	TestField Field
	Children  map[int64]*DecisionNode // keyed by extracted field value
	Default   *DecisionNode           // taken when no child matches the extracted value

	// Constructors is populated at leaves: the candidate list to try in
	// document order.
	Constructors []*Constructor
}

// Subtable owns one symbol's decision tree plus the full constructor list it
// selects from, per spec §3.
type Subtable struct {
	Root         *DecisionNode
	Constructors []*Constructor // all constructors, sorted by ID; used when Root is nil
}

// NewLinearSubtable builds a Subtable with no discrimination tree: Select
// always performs the document-order linear scan spec §4.2 describes as the
// terminal-node tie-break rule. This is sufficient for any correct decoder;
// a discrimination Root is an optional lookup-time optimization layered on
// top of the same semantics.
func NewLinearSubtable(ctors ...*Constructor) *Subtable {
	sorted := append([]*Constructor(nil), ctors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Subtable{Constructors: sorted}
}

// Select walks the decision tree (if any) down to a leaf, then tries that
// leaf's candidates in document order, returning the first whose pattern
// and context predicate matches. Returns nil if no candidate matches.
func (s *Subtable) Select(tokenWindow uint32, rawBits []byte, context uint32) *Constructor {
	candidates := s.Constructors
	if s.Root != nil {
		candidates = s.Root.leafCandidates(rawBits)
	}
	for _, c := range candidates {
		if c.Matches(tokenWindow, context) {
			return c
		}
	}
	return nil
}

func (n *DecisionNode) leafCandidates(bytes []byte) []*Constructor {
	node := n
	for node.Children != nil {
		v := extractField(bytes, node.TestField)
		next, ok := node.Children[v]
		if !ok {
			next = node.Default
		}
		if next == nil {
			break
		}
		node = next
	}
	return node.Constructors
}
