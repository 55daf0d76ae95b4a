package ctxdb

import (
	"testing"

	"github.com/oisee/pcodevm/pkg/addr"
)

func testSpace() *addr.Space {
	return addr.NewSpace(0, "ram", addr.RAM, 4, 1, false, 0)
}

func TestGetDefaultBeforeAnySplit(t *testing.T) {
	s := testSpace()
	db := New(s, 0xabcd)
	if got := db.Get(addr.New(s, 0x100)); got != 0xabcd {
		t.Fatalf("Get = %#x, want default 0xabcd", got)
	}
}

func TestSplitIsIdempotent(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	db.Split(addr.New(s, 0x10))
	before := db.Get(addr.New(s, 0x10))
	db.Split(addr.New(s, 0x10))
	after := db.Get(addr.New(s, 0x10))
	if before != after {
		t.Fatalf("splitting an existing boundary changed its word: %#x -> %#x", before, after)
	}
	if len(db.bounds) != 1 {
		t.Fatalf("duplicate split inserted a second boundary: %d bounds", len(db.bounds))
	}
}

func TestCommitFlowInsensitivePropagatesForward(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	db.Commit(addr.New(s, 0x10), 4, 0, 0xf, false)

	if got := db.Get(addr.New(s, 0x10)); got&0xf != 0xf {
		t.Fatalf("Get(0x10) low nibble = %#x, want 0xf", got&0xf)
	}
	if got := db.Get(addr.New(s, 0x1000)); got&0xf != 0xf {
		t.Fatalf("flow-insensitive commit did not propagate to a later address: %#x", got&0xf)
	}
}

func TestCommitFlowSensitiveConfinedToInterval(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	db.Split(addr.New(s, 0x20))
	db.Commit(addr.New(s, 0x10), 4, 0, 0xf, true)

	if got := db.Get(addr.New(s, 0x10)); got&0xf != 0xf {
		t.Fatalf("Get(0x10) low nibble = %#x, want 0xf", got&0xf)
	}
	if got := db.Get(addr.New(s, 0x20)); got&0xf != 0 {
		t.Fatalf("flow-sensitive commit leaked past its own interval: %#x", got&0xf)
	}
}

func TestCommitPreservesOtherBits(t *testing.T) {
	s := testSpace()
	db := New(s, 0xff00)
	db.Commit(addr.New(s, 0), 8, 0, 0x00, false)
	if got := db.Get(addr.New(s, 0)); got != 0xff00 {
		t.Fatalf("Get = %#x, want 0xff00 (high byte preserved)", got)
	}
}

func TestApplyCommitsInOrder(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	commits := []Commit{
		{Addr: addr.New(s, 0x10), NumBits: 4, StartBit: 0, Value: 0x1, FlowSensitive: false},
		{Addr: addr.New(s, 0x10), NumBits: 4, StartBit: 4, Value: 0x2, FlowSensitive: false},
	}
	db.ApplyCommits(commits)
	got := db.Get(addr.New(s, 0x10))
	if got != 0x21 {
		t.Fatalf("Get = %#x, want 0x21", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	db.Commit(addr.New(s, 0x10), 4, 0, 0xf, false)

	clone := db.Clone()
	clone.Commit(addr.New(s, 0x10), 4, 0, 0x0, false)

	if got := db.Get(addr.New(s, 0x10)); got&0xf != 0xf {
		t.Fatalf("original mutated via clone: %#x", got&0xf)
	}
	if got := clone.Get(addr.New(s, 0x10)); got&0xf != 0 {
		t.Fatalf("clone = %#x, want low nibble 0", got&0xf)
	}
}

// TestCommitFlowInsensitiveLeavesPriorIntervalsAlone pins spec §8 scenario
// 5: a flow-insensitive commit at addr must not reach back before addr.
func TestCommitFlowInsensitiveLeavesPriorIntervalsAlone(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	db.Split(addr.New(s, 0x1000))
	db.Commit(addr.New(s, 0x1000), 4, 0, 0xa, false)

	if got := db.Get(addr.New(s, 0x1000)); got&0xf != 0xa {
		t.Fatalf("Get(0x1000) low nibble = %#x, want 0xa", got&0xf)
	}
	if got := db.Get(addr.New(s, 0x0fff)); got != 0 {
		t.Fatalf("commit at 0x1000 leaked backward to 0x0fff: %#x, want default 0", got)
	}
}

func TestSetDefaultBitsLeavesSplitIntervalsAlone(t *testing.T) {
	s := testSpace()
	db := New(s, 0)
	db.Split(addr.New(s, 0x10))
	db.SetDefaultBits(0xf, 0x5)

	if got := db.Get(addr.New(s, 0x10)); got&0xf != 0 {
		t.Fatalf("SetDefaultBits touched an existing interval: %#x", got&0xf)
	}
	if got := db.Get(addr.New(s, 0x08)); got&0xf != 0x5 {
		t.Fatalf("SetDefaultBits did not update the default word: %#x", got&0xf)
	}
}
