package toyarch

import "github.com/oisee/pcodevm/pkg/addr"

func enc16(v uint16) [2]byte { return [2]byte{byte(v >> 8), byte(v)} }

// EncodeNOP encodes NOP.
func EncodeNOP() [2]byte { return enc16(0) }

// EncodeMOVI encodes "MOVI Rd, imm8u".
func EncodeMOVI(rd uint8, imm8 uint8) [2]byte {
	return enc16(uint16(OpMOVI)<<12 | uint16(rd&3)<<10 | uint16(imm8))
}

// EncodeMOVR encodes "MOVR Rd, Rs".
func EncodeMOVR(rd, rs uint8) [2]byte {
	return enc16(uint16(OpMOVR)<<12 | uint16(rd&3)<<10 | uint16(rs&3)<<8)
}

// EncodeADD encodes "ADD Rd, Rs".
func EncodeADD(rd, rs uint8) [2]byte {
	return enc16(uint16(OpADD)<<12 | uint16(rd&3)<<10 | uint16(rs&3)<<8)
}

// EncodeSUB encodes "SUB Rd, Rs".
func EncodeSUB(rd, rs uint8) [2]byte {
	return enc16(uint16(OpSUB)<<12 | uint16(rd&3)<<10 | uint16(rs&3)<<8)
}

// EncodeMUL encodes "MUL Rd, Rs".
func EncodeMUL(rd, rs uint8) [2]byte {
	return enc16(uint16(OpMUL)<<12 | uint16(rd&3)<<10 | uint16(rs&3)<<8)
}

// EncodeLD encodes "LD Rd, [Rs]" (direct addressing mode; the tag bit stays
// clear).
func EncodeLD(rd, rs uint8) [2]byte {
	return enc16(uint16(OpLD)<<12 | uint16(rd&3)<<10 | uint16(rs&3)<<8)
}

// EncodeST encodes "ST Rd, Rs" (mem[Rd] = Rs).
func EncodeST(rd, rs uint8) [2]byte {
	return enc16(uint16(OpST)<<12 | uint16(rd&3)<<10 | uint16(rs&3)<<8)
}

// EncodeCALL encodes "CALL imm12s", a pc-relative displacement from the
// byte immediately following this instruction.
func EncodeCALL(disp int16) [2]byte {
	return enc16(uint16(OpCALL)<<12 | uint16(disp)&0x0FFF)
}

// EncodeRET encodes RET.
func EncodeRET() [2]byte { return enc16(uint16(OpRET) << 12) }

// EncodeBEQ encodes "BEQ Rd, imm8s".
func EncodeBEQ(rd uint8, disp int8) [2]byte {
	return enc16(uint16(OpBEQ)<<12 | uint16(rd&3)<<10 | uint16(uint8(disp)))
}

// EncodeJMP encodes "JMP imm12s".
func EncodeJMP(disp int16) [2]byte {
	return enc16(uint16(OpJMP)<<12 | uint16(disp)&0x0FFF)
}

// EncodeSYS encodes "SYS imm8u".
func EncodeSYS(imm8 uint8) [2]byte {
	return enc16(uint16(OpSYS)<<12 | uint16(imm8))
}

// FlatCode is the simplest engine.CodeSource: a single byte buffer addressed
// from zero, used by tests and small demos rather than a real loader (out of
// scope per spec §1).
type FlatCode struct {
	Buf []byte
}

// Bytes returns up to maxLen bytes starting at a, truncated at the end of
// the buffer.
func (f FlatCode) Bytes(a addr.Address, maxLen int) ([]byte, error) {
	start := a.Offset
	if start >= uint64(len(f.Buf)) {
		return nil, nil
	}
	end := start + uint64(maxLen)
	if end > uint64(len(f.Buf)) {
		end = uint64(len(f.Buf))
	}
	return f.Buf[start:end], nil
}
