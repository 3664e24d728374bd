package vm

import (
	"errors"
	"fmt"
)

// Sentinel runtime faults. Callers match these with errors.Is against the
// Err field of a *RuntimeError (or the error Step/Run returns directly,
// since RuntimeError forwards Unwrap).
var (
	ErrDataUnderflow    = errors.New("data stack underflow")
	ErrAddressUnderflow = errors.New("address stack underflow")
	ErrIPOutOfBounds    = errors.New("ip went out of bounds")
	ErrInvalidOpcode    = errors.New("invalid opcode")
	ErrCellOverflow     = errors.New("value does not fit in a cell")
)

// RuntimeError is a fault raised while stepping the VM. IP is the byte
// instruction pointer active when the fault occurred, when known.
type RuntimeError struct {
	IP    uint32
	HasIP bool
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.HasIP {
		return fmt.Sprintf("%s (ip=%d)", e.Err, e.IP)
	}
	return e.Err.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func faultAt(ip uint32, err error) *RuntimeError {
	return &RuntimeError{IP: ip, HasIP: true, Err: err}
}

func fault(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}
