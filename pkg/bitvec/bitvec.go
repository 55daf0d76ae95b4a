// Package bitvec implements fixed-width modular integer arithmetic
// (component C2): the value type p-code operations compute over, plus the
// big/little-endian byte codec used at the state and decoder boundaries.
//
// Values up to 8 bytes wide are the common case (register-sized reads and
// writes) and are kept in a single uint64 with no allocation. Wider values
// (e.g. 80/128-bit float operands) fall back to math/big.
package bitvec

import (
	"math/big"
)

// Value is a fixed-width bit vector. Width is in bytes.
type Value struct {
	width int
	small uint64   // valid when width <= 8
	big   *big.Int // valid (non-nil) when width > 8; always kept masked to width
}

// Zero returns the zero value of the given width.
func Zero(width int) Value {
	return FromUint64(0, width)
}

// FromUint64 builds a Value of the given width from an unsigned integer,
// truncating high bits that don't fit.
func FromUint64(v uint64, width int) Value {
	if width <= 8 {
		return Value{width: width, small: v & mask64(width)}
	}
	bi := new(big.Int).SetUint64(v)
	return Value{width: width, big: bi}
}

// FromInt64 builds a Value from a signed integer, two's-complement encoded
// into the given width.
func FromInt64(v int64, width int) Value {
	return FromUint64(uint64(v), width)
}

// FromBigInt builds a Value from an arbitrary-precision integer, masked to
// width bytes.
func FromBigInt(v *big.Int, width int) Value {
	if width <= 8 {
		var u big.Int
		u.Mod(v, new(big.Int).Lsh(big.NewInt(1), uint(width*8)))
		return Value{width: width, small: u.Uint64()}
	}
	var masked big.Int
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width*8))
	masked.Mod(v, mod)
	if masked.Sign() < 0 {
		masked.Add(&masked, mod)
	}
	return Value{width: width, big: &masked}
}

func mask64(width int) uint64 {
	bits := width * 8
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

// Width returns the value's width in bytes.
func (v Value) Width() int { return v.width }

// Uint64 returns the unsigned interpretation, truncated to 64 bits for wide
// values.
func (v Value) Uint64() uint64 {
	if v.width <= 8 {
		return v.small
	}
	return v.big.Uint64()
}

// Int64 returns the sign-extended interpretation, truncated to 64 bits for
// wide values.
func (v Value) Int64() int64 {
	if v.width <= 8 {
		bits := v.width * 8
		x := v.small
		if bits < 64 && x&(uint64(1)<<uint(bits-1)) != 0 {
			x |= ^mask64(v.width)
		}
		return int64(x)
	}
	return v.toBig(true).Int64()
}

// BigInt returns the value as an unsigned (or, if signed is true, two's
// complement signed) arbitrary-precision integer.
func (v Value) BigInt(signed bool) *big.Int {
	return v.toBig(signed)
}

func (v Value) toBig(signed bool) *big.Int {
	var u *big.Int
	if v.width <= 8 {
		u = new(big.Int).SetUint64(v.small)
	} else {
		u = new(big.Int).Set(v.big)
	}
	if signed {
		bits := uint(v.width * 8)
		top := new(big.Int).Lsh(big.NewInt(1), bits-1)
		if u.Cmp(top) >= 0 {
			mod := new(big.Int).Lsh(big.NewInt(1), bits)
			u.Sub(u, mod)
		}
	}
	return u
}

func (v Value) norm() Value {
	if v.width <= 8 {
		v.small &= mask64(v.width)
		return v
	}
	return FromBigInt(v.big, v.width)
}

func widthOf(a, b Value) int {
	if a.width > b.width {
		return a.width
	}
	return b.width
}

// Add returns a+b mod 2^(width*8), width = max(a.width, b.width).
func Add(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small+b.small, w)
	}
	return FromBigInt(new(big.Int).Add(a.toBig(false), b.toBig(false)), w)
}

// Sub returns a-b mod 2^(width*8).
func Sub(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small-b.small, w)
	}
	return FromBigInt(new(big.Int).Sub(a.toBig(false), b.toBig(false)), w)
}

// Mul returns a*b mod 2^(width*8).
func Mul(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small*b.small, w)
	}
	return FromBigInt(new(big.Int).Mul(a.toBig(false), b.toBig(false)), w)
}

// And, Or, Xor are bitwise operations.
func And(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small&b.small, w)
	}
	return FromBigInt(new(big.Int).And(a.toBig(false), b.toBig(false)), w)
}

func Or(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small|b.small, w)
	}
	return FromBigInt(new(big.Int).Or(a.toBig(false), b.toBig(false)), w)
}

func Xor(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small^b.small, w)
	}
	return FromBigInt(new(big.Int).Xor(a.toBig(false), b.toBig(false)), w)
}

// Not returns the bitwise complement.
func Not(a Value) Value {
	if a.width <= 8 {
		return FromUint64(^a.small, a.width)
	}
	full := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(a.width*8)), big.NewInt(1))
	return FromBigInt(new(big.Int).Xor(a.big, full), a.width)
}

// Neg returns the two's-complement negation.
func Neg(a Value) Value {
	return Sub(Zero(a.width), a)
}

// Udiv, Urem are unsigned division/remainder. Callers must check for
// division by zero before calling (the p-code evaluator raises a typed
// error instead of panicking).
func Udiv(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small/b.small, w)
	}
	return FromBigInt(new(big.Int).Div(a.toBig(false), b.toBig(false)), w)
}

func Urem(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return FromUint64(a.small%b.small, w)
	}
	return FromBigInt(new(big.Int).Mod(a.toBig(false), b.toBig(false)), w)
}

// Sdiv, Srem are signed (truncating) division/remainder.
func Sdiv(a, b Value) Value {
	w := widthOf(a, b)
	q := new(big.Int).Quo(a.toBig(true), b.toBig(true))
	_ = w
	return FromBigInt(q, w)
}

func Srem(a, b Value) Value {
	w := widthOf(a, b)
	r := new(big.Int).Rem(a.toBig(true), b.toBig(true))
	return FromBigInt(r, w)
}

// Shl shifts left by an amount masked modulo the input width in bits.
func Shl(a Value, amount uint) Value {
	amount = amount % uint(a.width*8)
	if a.width <= 8 {
		return FromUint64(a.small<<amount, a.width)
	}
	return FromBigInt(new(big.Int).Lsh(a.big, amount), a.width)
}

// Shr is a logical (unsigned) right shift.
func Shr(a Value, amount uint) Value {
	amount = amount % uint(a.width*8)
	if a.width <= 8 {
		return FromUint64(a.small>>amount, a.width)
	}
	return FromBigInt(new(big.Int).Rsh(a.big, amount), a.width)
}

// Sar is an arithmetic (signed) right shift.
func Sar(a Value, amount uint) Value {
	amount = amount % uint(a.width*8)
	return FromBigInt(new(big.Int).Rsh(a.toBig(true), amount), a.width)
}

// Eq, Less, SLess and friends return 1-bit boolean Values (width 1).
func Eq(a, b Value) Value {
	return boolVal(a.Uint64() == b.Uint64() && cmpEqBig(a, b))
}

func cmpEqBig(a, b Value) bool {
	if a.width <= 8 && b.width <= 8 {
		return true
	}
	return a.toBig(false).Cmp(b.toBig(false)) == 0
}

func NotEq(a, b Value) Value { return boolVal(Eq(a, b).Uint64() == 0) }

func Less(a, b Value) Value {
	w := widthOf(a, b)
	if w <= 8 {
		return boolVal(a.small < b.small)
	}
	return boolVal(a.toBig(false).Cmp(b.toBig(false)) < 0)
}

func LessEq(a, b Value) Value {
	return boolVal(Less(a, b).Uint64() != 0 || Eq(a, b).Uint64() != 0)
}

func SLess(a, b Value) Value {
	return boolVal(a.toBig(true).Cmp(b.toBig(true)) < 0)
}

func SLessEq(a, b Value) Value {
	return boolVal(a.toBig(true).Cmp(b.toBig(true)) <= 0)
}

func boolVal(b bool) Value {
	if b {
		return FromUint64(1, 1)
	}
	return FromUint64(0, 1)
}

// Carry reports unsigned overflow of a+b at a's width.
func Carry(a, b Value) Value {
	sum := new(big.Int).Add(a.toBig(false), b.toBig(false))
	overflow := new(big.Int).Lsh(big.NewInt(1), uint(a.width*8))
	return boolVal(sum.Cmp(overflow) >= 0)
}

// SCarry reports signed overflow of a+b at a's width.
func SCarry(a, b Value) Value {
	r := Add(a, b)
	as, bs, rs := a.toBig(true).Sign() >= 0, b.toBig(true).Sign() >= 0, r.toBig(true).Sign() >= 0
	return boolVal(as == bs && as != rs)
}

// SBorrow reports signed overflow of a-b at a's width.
func SBorrow(a, b Value) Value {
	r := Sub(a, b)
	as, bs, rs := a.toBig(true).Sign() >= 0, b.toBig(true).Sign() >= 0, r.toBig(true).Sign() >= 0
	return boolVal(as != bs && as != rs)
}

// Zext zero-extends to a wider width.
func Zext(a Value, width int) Value {
	return FromBigInt(a.toBig(false), width)
}

// Sext sign-extends to a wider width.
func Sext(a Value, width int) Value {
	return FromBigInt(a.toBig(true), width)
}

// Subpiece truncates after shifting right by shiftBytes*8 bits, producing a
// value of outWidth bytes. This implements the SUBPIECE opcode.
func Subpiece(a Value, shiftBytes, outWidth int) Value {
	shifted := Shr(Zext(a, a.width+shiftBytes+1), uint(shiftBytes*8))
	return FromBigInt(shifted.toBig(false), outWidth)
}

// Popcount counts set bits.
func Popcount(a Value) Value {
	n := 0
	if a.width <= 8 {
		x := a.small
		for x != 0 {
			n += int(x & 1)
			x >>= 1
		}
	} else {
		for _, w := range a.big.Bits() {
			for w != 0 {
				n += int(w & 1)
				w >>= 1
			}
		}
	}
	return FromUint64(uint64(n), a.width)
}

// Lzcount counts leading zero bits within the value's width.
func Lzcount(a Value) Value {
	bits := a.width * 8
	for i := bits - 1; i >= 0; i-- {
		if Shr(a, uint(i)).Uint64()&1 != 0 {
			return FromUint64(uint64(bits-1-i), a.width)
		}
	}
	return FromUint64(uint64(bits), a.width)
}

// Decode reads a byte-endian-encoded integer into a Value.
func Decode(b []byte, bigEndian bool) Value {
	width := len(b)
	buf := make([]byte, width)
	copy(buf, b)
	if !bigEndian {
		reverse(buf)
	}
	bi := new(big.Int).SetBytes(buf)
	return FromBigInt(bi, width)
}

// Encode writes a Value out to width bytes in the requested endianness.
func (v Value) Encode(bigEndian bool) []byte {
	raw := v.toBig(false).Bytes()
	out := make([]byte, v.width)
	// raw is big-endian, left-padded with zeros, right-aligned into out.
	copy(out[v.width-len(raw):], raw)
	if !bigEndian {
		reverse(out)
	}
	return out
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
