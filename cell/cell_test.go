package cell

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatal(fmt.Sprintf(format, args...))
	}
}

func TestSignExtend8(t *testing.T) {
	assert(t, SignExtend8(Cell(0xFD)) == FromInt32(-3), "sext.8 of 0xFD should be -3, got %v", SignExtend8(Cell(0xFD)))
	assert(t, SignExtend8(Cell(1)) == Cell(1), "sext.8 of 1 should be 1")
	assert(t, SignExtend8(Cell(0x100)) == Cell(0x100), "sext.8 of out-of-byte-range value is unchanged")
}

func TestSignExtend8Idempotent(t *testing.T) {
	v := Cell(0xFE)
	once := SignExtend8(v)
	twice := SignExtend8(once)
	assert(t, once == twice, "sext.8 applied twice should equal sext.8 applied once")
}

func TestSignExtend16(t *testing.T) {
	assert(t, SignExtend16(Cell(0xFFFE)) == FromInt32(-2), "sext.16 of 0xFFFE should be -2")
	assert(t, SignExtend16(Cell(257)) == Cell(257), "sext.16 of 257 should be 257")
}

func TestArithmeticWrapping(t *testing.T) {
	max := Cell(0xFFFFFFFF)
	assert(t, max.Add(Cell(1)) == Cell(0), "add should wrap at 2^32")
	assert(t, Cell(0).Sub(Cell(1)) == max, "sub should wrap below 0")
}

func TestSubOperandOrder(t *testing.T) {
	// sub computes tos - nos where tos is the right-hand receiver.
	tos, nos := Cell(2), Cell(7)
	assert(t, tos.Sub(nos) == FromInt32(-5), "tos.Sub(nos) should be tos - nos")
}

func TestCompareUnsigned(t *testing.T) {
	a := FromInt32(-1) // all ones, huge as unsigned
	b := Cell(1)
	assert(t, a.Gt(b) == True, "comparisons must be unsigned: -1 bit pattern is greater than 1")
	assert(t, a.Lt(b) == False, "unsigned -1 is not less than 1")
}

func TestEqProducesSentinels(t *testing.T) {
	assert(t, Cell(5).Eq(Cell(5)) == True, "eq of equal cells is the all-ones sentinel")
	assert(t, Cell(5).Eq(Cell(6)) == False, "eq of unequal cells is zero")
}

func TestShift(t *testing.T) {
	assert(t, Shift(Cell(2), Cell(1)) == Cell(4), "positive shift amount shifts left")
	assert(t, Shift(FromInt32(-1), Cell(4)) == Cell(2), "negative shift amount shifts right by magnitude")
}

func TestBitwise(t *testing.T) {
	assert(t, Cell(0b1100).And(Cell(0b1010)) == Cell(0b1000), "and")
	assert(t, Cell(0b1100).Or(Cell(0b1010)) == Cell(0b1110), "or")
	assert(t, Cell(0b1100).Xor(Cell(0b1010)) == Cell(0b0110), "xor")
	assert(t, Cell(0).Not() == Cell(0xFFFFFFFF), "not")
}
