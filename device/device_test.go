package device

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatal(fmt.Sprintf(format, args...))
	}
}

func TestDecodeReset(t *testing.T) {
	cmd, ok := DecodeCommand(0)
	assert(t, ok, "0 must decode")
	assert(t, cmd.Kind == CmdReset, "0 must decode to Reset")
}

func TestDecodeGet(t *testing.T) {
	word := uint32(TagGet)<<24 | uint32(5)<<16
	cmd, ok := DecodeCommand(word)
	assert(t, ok, "well-formed Get must decode")
	assert(t, cmd.Kind == CmdGetRegister && cmd.Register == 5, "register index must round trip")
}

func TestDecodeGetMalformedLowBits(t *testing.T) {
	word := uint32(TagGet)<<24 | uint32(5)<<16 | 1
	_, ok := DecodeCommand(word)
	assert(t, !ok, "Get with nonzero low 16 bits is malformed")
}

func TestDecodeSet(t *testing.T) {
	word := uint32(TagSet)<<24 | uint32(3)<<16 | 0xBEEF
	cmd, ok := DecodeCommand(word)
	assert(t, ok, "well-formed Set must decode")
	assert(t, cmd.Register == 3 && cmd.Value == 0xBEEF, "Set register/value must round trip")
}

func TestDecodeExec(t *testing.T) {
	word := uint32(TagExec)<<24 | uint32(StreamRead)<<8 | 0x41
	cmd, ok := DecodeCommand(word)
	assert(t, ok, "well-formed Exec must decode")
	assert(t, cmd.Sub == StreamRead && cmd.Argument == 0x41, "Exec sub/argument must round trip")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cmds := []GenericCommand{
		{Kind: CmdReset},
		{Kind: CmdGetRegister, Register: 2},
		{Kind: CmdSetRegister, Register: 1, Value: 99},
		{Kind: CmdExec, Sub: StreamWrite, Argument: 7},
	}
	for _, c := range cmds {
		word := EncodeCommand(c)
		got, ok := DecodeCommand(word)
		assert(t, ok, "encoded command must decode: %+v", c)
		assert(t, got == c, "round trip mismatch: want %+v got %+v", c, got)
	}
}

func TestBankUnreadableUnwritable(t *testing.T) {
	bank := Bank{{Readable: false, Writable: false}}
	assert(t, bank.Get(0) == ErrorSentinel, "unreadable register must sentinel on get")
	assert(t, bank.Set(0, 5) == ErrorSentinel, "unwritable register must sentinel on set")
}

func TestBankReadWrite(t *testing.T) {
	bank := Bank{{Readable: true, Writable: true}}
	assert(t, bank.Set(0, 42) == 0, "writable register accepts set")
	assert(t, bank.Get(0) == 42, "readable register reflects prior set")
}

func TestStdinDeviceReadsBytes(t *testing.T) {
	d := NewStdinDevice(strings.NewReader("A"))
	cmd := uint32(TagExec)<<24 | uint32(StreamRead)<<8
	assert(t, d.Ioctl(cmd) == uint32('A'), "stdin device should return the next byte")
	assert(t, d.Ioctl(cmd) == ErrorSentinel, "stdin device should sentinel at EOF")
}

func TestStdinDeviceRejectsWrite(t *testing.T) {
	d := NewStdinDevice(strings.NewReader(""))
	cmd := uint32(TagExec)<<24 | uint32(StreamWrite)<<8
	assert(t, d.Ioctl(cmd) == ErrorSentinel, "stdin device must reject write")
}

func TestStdoutDeviceWritesBytes(t *testing.T) {
	var buf bytes.Buffer
	d := NewStdoutDevice(&buf)
	cmd := uint32(TagExec)<<24 | uint32(StreamWrite)<<8 | uint32('Z')
	assert(t, d.Ioctl(cmd) == 0, "stdout device write must succeed")
	assert(t, buf.String() == "Z", "stdout device should have written the low byte of argument")
}

func TestStdoutDeviceRejectsRead(t *testing.T) {
	var buf bytes.Buffer
	d := NewStdoutDevice(&buf)
	cmd := uint32(TagExec)<<24 | uint32(StreamRead)<<8
	assert(t, d.Ioctl(cmd) == ErrorSentinel, "stdout device must reject read")
}

func TestResetCommandSucceeds(t *testing.T) {
	d := NewStdoutDevice(&bytes.Buffer{})
	assert(t, d.Ioctl(0) == 0, "reset command must succeed")
}
