package sym

import "testing"

func TestEvalConst(t *testing.T) {
	e := &Expr{Kind: ExprConst, Const: 7}
	if got := e.Eval(Env{}); got != 7 {
		t.Fatalf("Eval(const) = %d, want 7", got)
	}
}

func TestEvalTokenFieldUnsigned(t *testing.T) {
	// 0xF0: bits [0,3] (MSB nibble) = 0b1111 = 15
	e := &Expr{Kind: ExprTokenField, Token: Field{StartBit: 0, EndBit: 3}}
	got := e.Eval(Env{Bytes: []byte{0xf0}})
	if got != 0xf {
		t.Fatalf("Eval(token field) = %d, want 15", got)
	}
}

func TestEvalTokenFieldSigned(t *testing.T) {
	// 0xf0 top nibble 0b1111, 4-bit signed = -1
	e := &Expr{Kind: ExprTokenField, Token: Field{StartBit: 0, EndBit: 3, Signed: true}}
	got := e.Eval(Env{Bytes: []byte{0xf0}})
	if got != -1 {
		t.Fatalf("Eval(signed token field) = %d, want -1", got)
	}
}

func TestEvalContextField(t *testing.T) {
	e := &Expr{Kind: ExprContextField, Context: Field{StartBit: 0, EndBit: 7}}
	got := e.Eval(Env{Context: 0xab000000})
	if got != 0xab {
		t.Fatalf("Eval(context field) = %#x, want 0xab", got)
	}
}

func TestEvalOperandRef(t *testing.T) {
	e := &Expr{Kind: ExprOperandRef, OperandIndex: 1}
	got := e.Eval(Env{OperandVals: []int64{10, 20}})
	if got != 20 {
		t.Fatalf("Eval(operand ref) = %d, want 20", got)
	}
}

func TestEvalOperandRefOutOfRange(t *testing.T) {
	e := &Expr{Kind: ExprOperandRef, OperandIndex: 5}
	if got := e.Eval(Env{OperandVals: []int64{1}}); got != 0 {
		t.Fatalf("Eval(out-of-range operand ref) = %d, want 0", got)
	}
}

func TestEvalBinOp(t *testing.T) {
	l := &Expr{Kind: ExprConst, Const: 4}
	r := &Expr{Kind: ExprConst, Const: 3}
	cases := []struct {
		op   BinOp
		want int64
	}{
		{OpAdd, 7}, {OpSub, 1}, {OpMul, 12}, {OpDiv, 1},
		{OpShl, 32}, {OpShr, 0}, {OpAnd, 0}, {OpOr, 7}, {OpXor, 7},
	}
	for _, c := range cases {
		e := &Expr{Kind: ExprBinOp, BinOp: c.op, LHS: l, RHS: r}
		if got := e.Eval(Env{}); got != c.want {
			t.Errorf("BinOp %v: got %d, want %d", c.op, got, c.want)
		}
	}
}

func TestEvalBinOpDivByZero(t *testing.T) {
	l := &Expr{Kind: ExprConst, Const: 4}
	r := &Expr{Kind: ExprConst, Const: 0}
	e := &Expr{Kind: ExprBinOp, BinOp: OpDiv, LHS: l, RHS: r}
	if got := e.Eval(Env{}); got != 0 {
		t.Fatalf("Eval(div by zero) = %d, want 0", got)
	}
}

func TestEvalUnOp(t *testing.T) {
	lhs := &Expr{Kind: ExprConst, Const: 5}
	neg := &Expr{Kind: ExprUnOp, UnOp: OpNeg, LHS: lhs}
	if got := neg.Eval(Env{}); got != -5 {
		t.Fatalf("Eval(neg) = %d, want -5", got)
	}
	not := &Expr{Kind: ExprUnOp, UnOp: OpNot, LHS: lhs}
	if got := not.Eval(Env{}); got != ^int64(5) {
		t.Fatalf("Eval(not) = %d, want %d", got, ^int64(5))
	}
}
