package asm

import (
	"bytes"
	"testing"
)

func mustAssemble(t *testing.T, src string) []byte {
	t.Helper()
	prog, err := Parse(src)
	assert(t, err == nil, "parse error: %v", err)
	proc, err := Process(prog, nil)
	assert(t, err == nil, "process error: %v", err)
	bin, err := Assemble(proc)
	assert(t, err == nil, "assemble error: %v", err)
	return bin
}

func TestAssembleSimpleOpcodesPadsToWord(t *testing.T) {
	bin := mustAssemble(t, "nop nop nop nop")
	assert(t, bytes.Equal(bin, []byte{0, 0, 0, 0}), "expected four nop bytes, got %v", bin)
}

func TestAssembleDataClauseZeroPads(t *testing.T) {
	bin := mustAssemble(t, "d8 1")
	assert(t, bytes.Equal(bin, []byte{1, 0, 0, 0}), "expected [1,0,0,0], got %v", bin)
}

func TestAssembleD16LittleEndian(t *testing.T) {
	bin := mustAssemble(t, "d16 0x1234")
	assert(t, bytes.Equal(bin, []byte{0x34, 0x12, 0, 0}), "expected little-endian 0x1234, got %v", bin)
}

func TestAssembleD32NegativeTwosComplement(t *testing.T) {
	bin := mustAssemble(t, "d32 -1")
	assert(t, bytes.Equal(bin, []byte{0xFF, 0xFF, 0xFF, 0xFF}), "expected all-ones for -1, got %v", bin)
}

func TestAssembleRawString(t *testing.T) {
	bin := mustAssemble(t, `r"abc"`)
	assert(t, bytes.Equal(bin, []byte{'a', 'b', 'c', 0}), "expected raw bytes padded to a word, got %v", bin)
}

func TestAssembleCStringIsNullTerminated(t *testing.T) {
	bin := mustAssemble(t, `c"abc"`)
	assert(t, bytes.Equal(bin, []byte{'a', 'b', 'c', 0}), "expected null terminator to land exactly on the word boundary, got %v", bin)
}

func TestAssembleSizedStringHasLengthPrefix(t *testing.T) {
	bin := mustAssemble(t, `s"ab"`)
	want := []byte{2, 0, 0, 0, 'a', 'b', 0, 0}
	assert(t, bytes.Equal(bin, want), "expected 4-byte length prefix then content then padding, got %v", bin)
}

func TestAssembleAtDirectiveZeroPadsGap(t *testing.T) {
	bin := mustAssemble(t, "nop\n#at 8;\nnop")
	want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	assert(t, bytes.Equal(bin, want), "expected the gap between address 1 and 8 zero-padded, got %v", bin)
}

func TestAssembleDataSizeMismatchFails(t *testing.T) {
	_, err := Process(mustParse(t, "d8 300"), nil)
	assert(t, err != nil, "expected 300 to overflow a d8 clause")
}
