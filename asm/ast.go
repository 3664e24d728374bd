// Package asm implements the bear assembly toolchain: a scanner and
// recursive-descent parser that produce a Program, a two-pass processor that
// resolves labels, marks, directives and definitions into addressed lines,
// and an assembler that emits the final little-endian binary image plus an
// optional debug sidecar.
package asm

import (
	"fmt"

	"bear/opcode"
)

// LineNumber is a 1-based source line number.
type LineNumber = int

// LineAddress is a byte address in the assembled image.
type LineAddress = int

// Program is the root AST node: every line in source order.
type Program struct {
	Body []Line
}

// StringTag distinguishes the three string data flavors.
type StringTag int

const (
	StringRaw StringTag = iota // sequence of bytes, no terminator or prefix
	StringC                    // null-terminated
	StringSized                // 4-byte little-endian length prefix
)

// Size is the declared width of a `d8`/`d16`/`d32` data clause.
type Size int

const (
	Size8 Size = iota
	Size16
	Size32
)

func (s Size) Bits() int {
	switch s {
	case Size8:
		return 8
	case Size16:
		return 16
	default:
		return 32
	}
}

func (s Size) Bytes() int {
	switch s {
	case Size8:
		return 1
	case Size16:
		return 2
	default:
		return 4
	}
}

func (s Size) String() string { return fmt.Sprintf("d%d", s.Bits()) }

// Data is program data: either a string clause or a sized value clause.
type Data interface {
	SizeInBytes() int
	fmt.Stringer
	isData()
}

// ValueData is a `d8`/`d16`/`d32` clause.
type ValueData struct {
	Size Size
	Expr Expression
}

func (d ValueData) SizeInBytes() int { return d.Size.Bytes() }
func (d ValueData) String() string   { return fmt.Sprintf("%s %s", d.Size, d.Expr) }
func (ValueData) isData()            {}

// StringData is an `r"..."`, `c"..."` or `s"..."` clause.
type StringData struct {
	Tag     StringTag
	Content string
}

func (d StringData) SizeInBytes() int {
	switch d.Tag {
	case StringC:
		return len(d.Content) + 1
	case StringSized:
		return len(d.Content) + 4
	default:
		return len(d.Content)
	}
}

func (d StringData) String() string {
	switch d.Tag {
	case StringC:
		return fmt.Sprintf("c%q", d.Content)
	case StringSized:
		return fmt.Sprintf("s%q", d.Content)
	default:
		return fmt.Sprintf("r%q", d.Content)
	}
}
func (StringData) isData() {}

// Directive is a preprocessor-time instruction: `#at`, `#align`, `#include`
// or `#define`.
type Directive interface {
	fmt.Stringer
	isDirective()
}

type AtDirective struct{ Expr Expression }

func (d AtDirective) String() string { return fmt.Sprintf("#at %s;", d.Expr) }
func (AtDirective) isDirective()     {}

type AlignToDirective struct{ Expr Expression }

func (d AlignToDirective) String() string { return fmt.Sprintf("#align %s;", d.Expr) }
func (AlignToDirective) isDirective()     {}

type IncludeDirective struct{ Path string }

func (d IncludeDirective) String() string { return fmt.Sprintf("#include %q;", d.Path) }
func (IncludeDirective) isDirective()     {}

type DefineListDirective struct {
	Name string
	Body []LineBody
}

func (d DefineListDirective) String() string { return fmt.Sprintf("#define %s [...];", d.Name) }
func (DefineListDirective) isDirective()     {}

type DefineExpressionDirective struct {
	Name string
	Expr Expression
}

func (d DefineExpressionDirective) String() string {
	return fmt.Sprintf("#define %s %s;", d.Name, d.Expr)
}
func (DefineExpressionDirective) isDirective() {}

// LineBody is the payload of a program line, independent of its labels/mark.
type LineBody interface {
	fmt.Stringer
	isLineBody()
}

type DataLine struct{ Data Data }

func (l DataLine) String() string { return l.Data.String() }
func (DataLine) isLineBody()      {}

type SimpleLine struct{ Op opcode.OpCode }

func (l SimpleLine) String() string { return l.Op.String() }
func (SimpleLine) isLineBody()      {}

type DirectiveLine struct{ Directive Directive }

func (l DirectiveLine) String() string { return l.Directive.String() }
func (DirectiveLine) isLineBody()      {}

// DefinitionRefLine is a `!name` reference to a previously `#define`d macro.
type DefinitionRefLine struct{ Name string }

func (l DefinitionRefLine) String() string { return "!" + l.Name }
func (DefinitionRefLine) isLineBody()      {}

// Line is one logical program line: an optional mark, zero or more labels,
// and a body.
type Line struct {
	Mark   bool
	Labels []string
	Body   LineBody
	Number LineNumber
}

// BinOp is a binary expression operator.
type BinOp int

const (
	BinPlus BinOp = iota
	BinMinus
	BinTimes
	BinDiv
	BinAnd
	BinOr
	BinPow
)

func (b BinOp) String() string {
	switch b {
	case BinPlus:
		return "+"
	case BinMinus:
		return "-"
	case BinTimes:
		return "*"
	case BinDiv:
		return "/"
	case BinAnd:
		return "&"
	case BinOr:
		return "|"
	case BinPow:
		return "^"
	default:
		return "?"
	}
}

// Address is an address-operator leaf: `@`, `$>`, `<$`, or a bare label name.
type Address interface {
	fmt.Stringer
	isAddress()
}

type HereAddress struct{}

func (HereAddress) String() string { return "@" }
func (HereAddress) isAddress()     {}

type NextAddress struct{}

func (NextAddress) String() string { return "$>" }
func (NextAddress) isAddress()     {}

type PrevAddress struct{}

func (PrevAddress) String() string { return "<$" }
func (PrevAddress) isAddress()     {}

type LabelRefAddress struct{ Name string }

func (a LabelRefAddress) String() string { return a.Name }
func (LabelRefAddress) isAddress()       {}

// Expression is an AST expression node. Forward references introduced while
// resolving `$>` marks and label names during pass 1 are represented as
// distinct ForwardMarkRef/ForwardLabelRef leaves, resolved (or reported as
// unresolved) during pass 2 fixup — never as closures or lazy callbacks.
type Expression interface {
	fmt.Stringer
	isExpression()
}

type TreeExpr struct {
	Op       BinOp
	LHS, RHS Expression
}

func (e TreeExpr) String() string { return fmt.Sprintf("(%s %s %s)", e.LHS, e.Op, e.RHS) }
func (TreeExpr) isExpression()    {}

type AddressExpr struct{ Addr Address }

func (e AddressExpr) String() string { return e.Addr.String() }
func (AddressExpr) isExpression()    {}

type PrimitiveExpr struct{ Value Primitive }

func (e PrimitiveExpr) String() string { return fmt.Sprintf("%d", int64(e.Value)) }
func (PrimitiveExpr) isExpression()    {}

type QuotedExpr struct{ Op opcode.OpCode }

func (e QuotedExpr) String() string { return e.Op.String() }
func (QuotedExpr) isExpression()    {}

type DefinitionRefExpr struct{ Name string }

func (e DefinitionRefExpr) String() string { return "!" + e.Name }
func (DefinitionRefExpr) isExpression()    {}

// ForwardMarkRef is an unresolved `$>` reference, keyed by the byte address
// it was used from (the position pass 2 must resolve "next mark at or after
// this address" against).
type ForwardMarkRef struct{ Position LineAddress }

func (e ForwardMarkRef) String() string { return "$>" }
func (ForwardMarkRef) isExpression()    {}

// ForwardLabelRef is an unresolved bare-identifier label reference.
type ForwardLabelRef struct{ Name string }

func (e ForwardLabelRef) String() string { return e.Name }
func (ForwardLabelRef) isExpression()    {}

// AsPrimitive recursively folds an expression tree into a Primitive, when
// every leaf is already reducible. It returns false when any leaf is a
// forward reference, a definition reference, or otherwise unresolved.
func AsPrimitive(e Expression) (Primitive, bool) {
	switch e := e.(type) {
	case PrimitiveExpr:
		return e.Value, true
	case TreeExpr:
		lhs, ok := AsPrimitive(e.LHS)
		if !ok {
			return 0, false
		}
		rhs, ok := AsPrimitive(e.RHS)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case BinPlus:
			return lhs.Add(rhs), true
		case BinMinus:
			return lhs.Sub(rhs), true
		case BinTimes:
			return lhs.Mul(rhs), true
		case BinDiv:
			return lhs.Div(rhs), true
		case BinAnd:
			return lhs.And(rhs), true
		case BinOr:
			return lhs.Or(rhs), true
		case BinPow:
			return lhs.Pow(rhs), true
		}
	}
	return 0, false
}
