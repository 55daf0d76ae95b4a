package engine_test

import (
	"testing"

	"github.com/oisee/pcodevm/internal/toyarch"
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/engine"
	"github.com/oisee/pcodevm/pkg/state"
	"github.com/oisee/pcodevm/pkg/varnode"
)

func newTestCache(buf []byte) (*engine.Cache, *state.ConcreteState, *ctxdb.DB) {
	lang := toyarch.New()
	cache := engine.NewCache(lang, toyarch.FlatCode{Buf: buf})
	st := state.NewConcreteState(lang.Spaces, lang.RegisterSpace, lang.UniqueSpace, 1)
	db := ctxdb.New(lang.RegisterSpace, 0)
	return cache, st, db
}

// TestLiftBlockClosesOnFlowControl confirms the block-closure rule: a run
// of non-flow-control instructions followed by a branch lifts into exactly
// one block that stops right after the branch.
func TestLiftBlockClosesOnFlowControl(t *testing.T) {
	buf := make([]byte, 0x10)
	movi0, movi1, jmp, nop := toyarch.EncodeMOVI(0, 1), toyarch.EncodeMOVI(1, 2), toyarch.EncodeJMP(2), toyarch.EncodeNOP()
	copy(buf[0:2], movi0[:])
	copy(buf[2:4], movi1[:])
	copy(buf[4:6], jmp[:])
	copy(buf[6:8], nop[:]) // must not be absorbed into the same block

	cache, _, db := newTestCache(buf)
	block, err := cache.LiftBlock(db, addr.New(cache.Lang.DefaultSpace, 0))
	if err != nil {
		t.Fatalf("LiftBlock: %v", err)
	}
	if block.Len() != 3 {
		t.Fatalf("block contains %d instructions, want 3 (two MOVI + the closing JMP)", block.Len())
	}
	if len(block.RawBytes) != 6 {
		t.Fatalf("RawBytes len = %d, want 6", len(block.RawBytes))
	}
}

// TestFetchMemoizesAndReuses confirms a second Fetch at the same entry
// returns the already-cached block rather than re-lifting.
func TestFetchMemoizesAndReuses(t *testing.T) {
	buf := make([]byte, 0x10)
	nop := toyarch.EncodeNOP()
	copy(buf[0:2], nop[:])
	cache, _, db := newTestCache(buf)

	entry := addr.New(cache.Lang.DefaultSpace, 0)
	b1, err := cache.Fetch(db, entry)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	b2, err := cache.Fetch(db, entry)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if b1 != b2 {
		t.Fatal("second Fetch at the same entry should return the cached block, not a new one")
	}
}

// TestFetchMemoizesFailure confirms a decode failure at an entry address is
// memoized and returned on every subsequent Fetch at that address.
func TestFetchMemoizesFailure(t *testing.T) {
	buf := []byte{0x01} // one byte can never satisfy a two-byte minimum length
	cache, _, db := newTestCache(buf)

	entry := addr.New(cache.Lang.DefaultSpace, 0)
	_, err1 := cache.Fetch(db, entry)
	if err1 == nil {
		t.Fatal("expected a lift failure for a truncated instruction stream")
	}
	_, err2 := cache.Fetch(db, entry)
	if err2 == nil {
		t.Fatal("expected the memoized failure to be returned again")
	}
}

// TestStepAdvancesPCAcrossBlockBoundary runs NOP;NOP;JMP and confirms the
// program counter lands exactly at the jump target after one Step call,
// having correctly tracked its own advance through two non-flow-control
// instructions sharing the block with the closing JMP.
func TestStepAdvancesPCAcrossBlockBoundary(t *testing.T) {
	buf := make([]byte, 0x10)
	nop, jmp := toyarch.EncodeNOP(), toyarch.EncodeJMP(2)
	copy(buf[0:2], nop[:])
	copy(buf[2:4], nop[:])
	copy(buf[4:6], jmp[:])

	cache, st, db := newTestCache(buf)
	outcome, err := cache.Step(db, st, nil)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if outcome.Kind.String() != "branch" {
		t.Fatalf("outcome.Kind = %v, want branch", outcome.Kind)
	}

	pc, err := st.ReadVarnode(varnode.Varnode{Space: cache.Lang.RegisterSpace, Offset: toyarch.OffsetPC, Size: 2})
	if err != nil {
		t.Fatalf("read pc: %v", err)
	}
	// pc after the JMP at offset 4 is 6; + displacement 2 = 8.
	if got := pc.Uint64(); got != 8 {
		t.Fatalf("pc = %#x, want 0x8", got)
	}
}

func TestBatchLiftsAllEntriesConcurrently(t *testing.T) {
	buf := make([]byte, 0x20)
	nop := toyarch.EncodeNOP()
	for i := 0; i < len(buf); i += 2 {
		copy(buf[i:i+2], nop[:])
	}
	cache, _, db := newTestCache(buf)

	var entries []addr.Address
	for off := uint64(0); off < 0x20; off += 2 {
		entries = append(entries, addr.New(cache.Lang.DefaultSpace, off))
	}

	results := cache.Batch(db, entries, engine.Config{NumWorkers: 4})
	if len(results) != len(entries) {
		t.Fatalf("got %d results, want %d", len(results), len(entries))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("entry %s: %v", r.Entry, r.Err)
		}
		if r.Block == nil {
			t.Fatalf("entry %s: nil block", r.Entry)
		}
	}
}

func TestForkRestoreIndependence(t *testing.T) {
	buf := make([]byte, 0x10)
	movi := toyarch.EncodeMOVI(0, 9)
	copy(buf[0:2], movi[:])
	cache, st, db := newTestCache(buf)

	checkpoint := st.Fork()
	if _, err := cache.Step(db, st, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}

	r0, err := st.ReadVarnode(varnode.Varnode{Space: cache.Lang.RegisterSpace, Offset: toyarch.OffsetR0, Size: 2})
	if err != nil {
		t.Fatalf("read r0: %v", err)
	}
	if r0.Uint64() != 9 {
		t.Fatalf("r0 = %d, want 9", r0.Uint64())
	}

	checkpointR0, err := checkpoint.ReadVarnode(varnode.Varnode{Space: cache.Lang.RegisterSpace, Offset: toyarch.OffsetR0, Size: 2})
	if err != nil {
		t.Fatalf("read checkpoint r0: %v", err)
	}
	if checkpointR0.Uint64() != 0 {
		t.Fatalf("checkpoint r0 = %d, want 0 (fork must be unaffected by the parent's later writes)", checkpointR0.Uint64())
	}

	if err := st.Restore(checkpoint); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	after, err := st.ReadVarnode(varnode.Varnode{Space: cache.Lang.RegisterSpace, Offset: toyarch.OffsetR0, Size: 2})
	if err != nil {
		t.Fatalf("read r0 after restore: %v", err)
	}
	if after.Uint64() != 0 {
		t.Fatalf("r0 after restore = %d, want 0", after.Uint64())
	}
}

