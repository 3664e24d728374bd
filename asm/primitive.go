package asm

// Primitive is a constant-folded expression value. It holds 64 bits so that
// intermediate expressions (before a data clause's declared width narrows
// them) can't clip early, even though a Cell only ever holds 32.
type Primitive int64

func (p Primitive) Add(o Primitive) Primitive { return p + o }
func (p Primitive) Sub(o Primitive) Primitive { return p - o }
func (p Primitive) Mul(o Primitive) Primitive { return p * o }
func (p Primitive) Div(o Primitive) Primitive { return p / o }
func (p Primitive) And(o Primitive) Primitive { return p & o }
func (p Primitive) Or(o Primitive) Primitive  { return p | o }

// Pow matches the reference's use of integer exponentiation for `^` in
// constant-folded expressions, not bitwise xor.
func (p Primitive) Pow(o Primitive) Primitive {
	result := Primitive(1)
	for i := Primitive(0); i < o; i++ {
		result *= p
	}
	return result
}

// Sign returns -1, 0 or 1.
func (p Primitive) Sign() int {
	switch {
	case p < 0:
		return -1
	case p > 0:
		return 1
	default:
		return 0
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// MinBytes is the narrowest power-of-two byte width p's magnitude fits in.
func (p Primitive) MinBytes() int {
	x := abs64(int64(p))
	switch {
	case x <= 0xFF:
		return 1
	case x <= 0xFFFF:
		return 2
	case x <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

// Assemble8/16/32 narrow p to the given width's two's-complement bit
// pattern. ok is false when p's magnitude doesn't fit.
func (p Primitive) Assemble8() (v uint8, ok bool) {
	if p.MinBytes() > 1 {
		return 0, false
	}
	if p.Sign() < 0 {
		return uint8(int8(p)), true
	}
	return uint8(p), true
}

func (p Primitive) Assemble16() (v uint16, ok bool) {
	if p.MinBytes() > 2 {
		return 0, false
	}
	if p.Sign() < 0 {
		return uint16(int16(p)), true
	}
	return uint16(p), true
}

func (p Primitive) Assemble32() (v uint32, ok bool) {
	if p.MinBytes() > 4 {
		return 0, false
	}
	if p.Sign() < 0 {
		return uint32(int32(p)), true
	}
	return uint32(p), true
}
