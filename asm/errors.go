package asm

import (
	"errors"
	"fmt"
)

// ParseError carries the source position a scan or parse failure occurred
// at, alongside a human-readable message.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Sentinel processor error tags, matched with errors.Is/errors.As. Several
// carry payload fields (name, expected/actual sizes); those are compared by
// type via errors.As, not by identity.
var (
	ErrNextMarkNotSet               = errors.New("no mark follows this position")
	ErrPreviousMarkNotSet           = errors.New("no mark precedes this position")
	ErrExpectedList                 = errors.New("definition is a macro block, not an expression")
	ErrExpectedExpression           = errors.New("definition is an expression, not a macro block")
	ErrCannotAtToBeforeCurrentPosition = errors.New("#at target is behind the current position")
)

// UnknownLabel reports a label reference that never resolves, even after
// pass 2 fixup.
type UnknownLabel struct{ Name string }

func (e *UnknownLabel) Error() string { return fmt.Sprintf("unknown label %q", e.Name) }

// LabelAlreadyDefined reports a duplicate label binding.
type LabelAlreadyDefined struct{ Name string }

func (e *LabelAlreadyDefined) Error() string { return fmt.Sprintf("label %q already defined", e.Name) }

// UnknownDefinition reports a `!name` reference to an undeclared macro.
type UnknownDefinition struct{ Name string }

func (e *UnknownDefinition) Error() string { return fmt.Sprintf("unknown definition %q", e.Name) }

// DefinitionAlreadyDefined reports a duplicate `#define`.
type DefinitionAlreadyDefined struct{ Name string }

func (e *DefinitionAlreadyDefined) Error() string {
	return fmt.Sprintf("definition %q already defined", e.Name)
}

// ExpressionCannotBeSimplified reports a data clause whose expression still
// contains an unresolved leaf after pass 2.
type ExpressionCannotBeSimplified struct{ Expr Expression }

func (e *ExpressionCannotBeSimplified) Error() string {
	return fmt.Sprintf("expression cannot be simplified: %s", e.Expr)
}

// DataSizeMismatch reports a constant-folded value that doesn't fit in its
// data clause's declared width.
type DataSizeMismatch struct{ Expected, Actual int }

func (e *DataSizeMismatch) Error() string {
	return fmt.Sprintf("value needs %d bytes but clause declares %d", e.Actual, e.Expected)
}

// ProcessingErrors aggregates every line-level failure pass 1 (or pass 2)
// collected, rather than collapsing to a single opaque failure: a caller
// fixing a source file wants to see every bad line at once.
type ProcessingErrors struct {
	Errors []error
}

func (e *ProcessingErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %s", len(e.Errors), e.Errors[0])
}

func (e *ProcessingErrors) Unwrap() []error { return e.Errors }
