package asm

import "fmt"

// imageBuilder accumulates emitted bytes, mirroring the reference's
// ImageBuilder: little-endian multi-byte writes, one append at a time.
type imageBuilder struct {
	bits []byte
}

func (b *imageBuilder) u8(v uint8)   { b.bits = append(b.bits, v) }
func (b *imageBuilder) u16(v uint16) { b.bits = append(b.bits, byte(v), byte(v>>8)) }
func (b *imageBuilder) u32(v uint32) {
	b.bits = append(b.bits, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (b *imageBuilder) raw(s string) { b.bits = append(b.bits, []byte(s)...) }

// Assemble iterates processed lines in address order and emits the final
// binary image. Every directive must already have been resolved by
// Process; one reaching here is a processor bug, not a user error.
func Assemble(proc *Processor) ([]byte, error) {
	bin := &imageBuilder{}
	for _, pl := range proc.Processed {
		if len(bin.bits) < pl.Address {
			bin.bits = append(bin.bits, make([]byte, pl.Address-len(bin.bits))...)
		}
		if len(bin.bits) != pl.Address {
			return nil, fmt.Errorf("assembler stream malformed: buffer length %d, expected address %d", len(bin.bits), pl.Address)
		}
		switch body := pl.Body.(type) {
		case DataLine:
			if err := assembleData(body.Data, bin); err != nil {
				return nil, err
			}
		case SimpleLine:
			bin.u8(byte(body.Op))
		case DirectiveLine:
			return nil, fmt.Errorf("processor bug: unresolved directive reached the assembler: %s", body.Directive)
		default:
			return nil, fmt.Errorf("assembler encountered unexpected line body %T", body)
		}
	}
	for len(bin.bits)%wordSize != 0 {
		bin.u8(0)
	}
	return bin.bits, nil
}

func assembleData(data Data, bin *imageBuilder) error {
	switch d := data.(type) {
	case ValueData:
		prim, ok := AsPrimitive(d.Expr)
		if !ok {
			return &ExpressionCannotBeSimplified{Expr: d.Expr}
		}
		switch d.Size {
		case Size8:
			v, ok := prim.Assemble8()
			if !ok {
				return &DataSizeMismatch{Expected: 1, Actual: prim.MinBytes()}
			}
			bin.u8(v)
		case Size16:
			v, ok := prim.Assemble16()
			if !ok {
				return &DataSizeMismatch{Expected: 2, Actual: prim.MinBytes()}
			}
			bin.u16(v)
		case Size32:
			v, ok := prim.Assemble32()
			if !ok {
				return &DataSizeMismatch{Expected: 4, Actual: prim.MinBytes()}
			}
			bin.u32(v)
		}
	case StringData:
		switch d.Tag {
		case StringRaw:
			bin.raw(d.Content)
		case StringC:
			bin.raw(d.Content)
			bin.u8(0)
		case StringSized:
			bin.u32(uint32(len(d.Content)))
			bin.raw(d.Content)
		}
	}
	return nil
}
