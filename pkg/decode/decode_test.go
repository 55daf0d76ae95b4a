package decode_test

import (
	"testing"

	"github.com/oisee/pcodevm/internal/toyarch"
	"github.com/oisee/pcodevm/pkg/addr"
	"github.com/oisee/pcodevm/pkg/ctxdb"
	"github.com/oisee/pcodevm/pkg/decode"
	"github.com/oisee/pcodevm/pkg/lift"
	"github.com/oisee/pcodevm/pkg/pcode"
)

func decodeAt(t *testing.T, buf []byte, offset uint64) *decode.Result {
	t.Helper()
	lang := toyarch.New()
	db := ctxdb.New(lang.RegisterSpace, 0)
	res, err := decode.Decode(lang, db, addr.New(lang.DefaultSpace, offset), buf, decode.DefaultOptions())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return res
}

func TestDecodeFixedWidthInstructionLength(t *testing.T) {
	buf := make([]byte, 8)
	insn := toyarch.EncodeADD(1, 2)
	copy(buf, insn[:])
	res := decodeAt(t, buf, 0)
	if res.Length != 2 {
		t.Fatalf("Length = %d, want 2", res.Length)
	}
}

func TestDecodeRootDispatchByOpcode(t *testing.T) {
	cases := []struct {
		name string
		buf  [2]byte
		want string
	}{
		{"NOP", toyarch.EncodeNOP(), "NOP"},
		{"RET", toyarch.EncodeRET(), "RET"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := make([]byte, 8)
			copy(buf, c.buf[:])
			res := decodeAt(t, buf, 0)
			if got := res.Disassembly(); got != c.want {
				t.Fatalf("Disassembly() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestDecodeShortStreamError(t *testing.T) {
	lang := toyarch.New()
	db := ctxdb.New(lang.RegisterSpace, 0)
	// A single byte can never satisfy a two-byte minimum-length instruction.
	_, err := decode.Decode(lang, db, addr.New(lang.DefaultSpace, 0), []byte{0x10}, decode.DefaultOptions())
	if err == nil {
		t.Fatal("expected a short-stream error decoding a truncated instruction")
	}
}

func TestDecodePendingCommitsResolvedToAbsoluteAddress(t *testing.T) {
	buf := make([]byte, 8)
	insn := toyarch.EncodeMOVI(0, 1)
	copy(buf, insn[:])
	lang := toyarch.New()
	db := ctxdb.New(lang.RegisterSpace, 0)
	a := addr.New(lang.DefaultSpace, 0x10)

	res, err := decode.Decode(lang, db, a, buf, decode.DefaultOptions())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(res.PendingCommits) != 1 {
		t.Fatalf("PendingCommits = %d, want 1", len(res.PendingCommits))
	}
	// Decode records each commit's offset within the instruction; Lift
	// resolves it against the instruction's own address.
	arena := pcode.NewArena()
	defer arena.Release()
	lifted, err := lift.Lift(lang, db, res, buf, arena, lift.Options{})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if got := lifted.PendingCommits[0].Addr; got.Offset != 0x10 {
		t.Fatalf("pending commit address = %#x, want %#x (resolved from the instruction's own address)", got.Offset, 0x10)
	}
}
