package eval

import "github.com/oisee/pcodevm/pkg/varnode"

// UserOpTable names CALLOTHER indices, mirroring the reference
// implementation's user-op string table (SPEC_FULL §6 supplement) so
// CALLOTHER isn't a bare integer with nothing attached.
type UserOpTable struct {
	names []string
	byID  map[int]string
}

// NewUserOpTable creates an empty table.
func NewUserOpTable() *UserOpTable {
	return &UserOpTable{byID: make(map[int]string)}
}

// Register assigns the next available id to name and returns it.
func (t *UserOpTable) Register(name string) int {
	id := len(t.names)
	t.names = append(t.names, name)
	t.byID[id] = name
	return id
}

// Name returns the name registered for id, or "" if unknown.
func (t *UserOpTable) Name(id int) string {
	return t.byID[id]
}

// Dispatcher executes a CALLOTHER user-op against the state a Step call is
// running over. States that support user-ops implement this; unknown
// user-ops are the caller's responsibility to surface as an evaluation
// error (spec §4.4 "unknown user-ops raise an evaluation error").
type Dispatcher interface {
	CallOther(userOpID int, inputs []varnode.Varnode, out *varnode.Varnode) error
}
