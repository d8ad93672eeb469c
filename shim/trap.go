package shim

import "fmt"

// Trap is an unrecoverable call failure: a validation error with no
// declared error type to carry it, a noreturn function's return, or a
// host-side logic error. A trap aborts the call and, by contract, the
// enclosing guest execution; the guest never observes a payload.
type Trap struct {
	Msg   string
	Cause error
}

func (t *Trap) Error() string {
	if t.Cause != nil {
		return fmt.Sprintf("trap: %s: %v", t.Msg, t.Cause)
	}
	return "trap: " + t.Msg
}

// Unwrap returns the underlying cause, if any.
func (t *Trap) Unwrap() error {
	return t.Cause
}

func trapf(cause error, format string, args ...any) *Trap {
	return &Trap{Msg: fmt.Sprintf(format, args...), Cause: cause}
}
