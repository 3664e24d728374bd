// Package cell implements the 32-bit word type that backs every stack slot
// and memory location in the VM.
package cell

// Cell is a 32-bit memory word. It carries no inherent signedness: callers
// choose a signed or unsigned interpretation at the point of use, the same
// bit pattern underlies both.
type Cell uint32

// True and False are the two values a comparison opcode may produce.
const (
	True  Cell = 0xFFFFFFFF
	False Cell = 0
)

// FromInt32 bit-reinterprets a signed 32-bit value as a Cell (two's
// complement), matching the reference VM's Cell::from(i32) conversion.
func FromInt32(v int32) Cell { return Cell(uint32(v)) }

// FromInt8 and FromInt16 sign-extend through int32 before bit-reinterpreting,
// mirroring the reference's From<i8>/From<i16> chain through From<i32>.
func FromInt8(v int8) Cell   { return FromInt32(int32(v)) }
func FromInt16(v int16) Cell { return FromInt32(int32(v)) }

// Int32 reinterprets the Cell's bit pattern as signed.
func (c Cell) Int32() int32 { return int32(uint32(c)) }

// Uint32 returns the raw unsigned bit pattern.
func (c Cell) Uint32() uint32 { return uint32(c) }

// Add, Sub, Mul, Div and Mod are all wrapping, unsigned 32-bit operations;
// the reference implementation performs Div and Mod on the raw u32 even
// when the programmer's intent is signed, and this module preserves that.
func (c Cell) Add(other Cell) Cell { return Cell(uint32(c) + uint32(other)) }
func (c Cell) Sub(other Cell) Cell { return Cell(uint32(c) - uint32(other)) }
func (c Cell) Mul(other Cell) Cell { return Cell(uint32(c) * uint32(other)) }
func (c Cell) Div(other Cell) Cell { return Cell(uint32(c) / uint32(other)) }
func (c Cell) Mod(other Cell) Cell { return Cell(uint32(c) % uint32(other)) }

// Neg computes the two's-complement negation.
func (c Cell) Neg() Cell { return Cell(uint32(-c.Int32())) }

func (c Cell) And(other Cell) Cell { return c & other }
func (c Cell) Or(other Cell) Cell  { return c | other }
func (c Cell) Xor(other Cell) Cell { return c ^ other }
func (c Cell) Not() Cell           { return ^c }

// Eq, Lt and Gt compare the unsigned bit pattern and yield the True/False
// sentinels, never a Go bool: the comparison opcodes push these directly.
func (c Cell) Eq(other Cell) Cell { return boolCell(c == other) }
func (c Cell) Lt(other Cell) Cell { return boolCell(uint32(c) < uint32(other)) }
func (c Cell) Gt(other Cell) Cell { return boolCell(uint32(c) > uint32(other)) }

func boolCell(b bool) Cell {
	if b {
		return True
	}
	return False
}

// Shift implements the sign-aware `shift` opcode: shift interprets itself
// (the amount) as signed. A negative amount shifts subject right by its
// magnitude; zero or positive shifts subject left by amount.
func Shift(amount, subject Cell) Cell {
	n := amount.Int32()
	if n < 0 {
		return Cell(uint32(subject) >> uint32(-n))
	}
	return Cell(uint32(subject) << uint32(n))
}

// SignExtend8 reinterprets the low byte of v as signed and sign-extends it
// to 32 bits, but only when v fits in an unsigned byte; values that don't
// fit are returned unchanged, matching the reference's sext.8 opcode.
func SignExtend8(v Cell) Cell {
	if uint32(v) > 0xFF {
		return v
	}
	return FromInt8(int8(byte(v)))
}

// SignExtend16 is the 16-bit analogue of SignExtend8.
func SignExtend16(v Cell) Cell {
	if uint32(v) > 0xFFFF {
		return v
	}
	return FromInt16(int16(uint16(v)))
}
