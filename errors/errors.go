package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseClassify  Phase = "classify"  // type-shape classification
	PhaseSynth     Phase = "synth"     // shim synthesis
	PhaseMarshal   Phase = "marshal"   // ABI word to typed argument
	PhaseWriteback Phase = "writeback" // result write through output pointer
	PhaseMemory    Phase = "memory"    // guest memory access
	PhaseDispatch  Phase = "dispatch"  // call routing
	PhaseEmit      Phase = "emit"      // source text emission
	PhaseRuntime   Phase = "runtime"   // call-time operations
)

// Kind categorizes the error
type Kind string

const (
	KindOverflow       Kind = "overflow"
	KindInvalidEnum    Kind = "invalid_enum"
	KindInvalidFlags   Kind = "invalid_flags"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindMisaligned     Kind = "misaligned"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindArity          Kind = "arity"
	KindUnsupported    Kind = "unsupported"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindRegistration   Kind = "registration"
	KindNotInitialized Kind = "not_initialized"
	KindTypeMismatch   Kind = "type_mismatch"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Func     string
	Location string
	Shape    string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Func != "" {
		b.WriteString(" in ")
		b.WriteString(e.Func)
		if e.Location != "" {
			b.WriteByte(':')
			b.WriteString(e.Location)
		}
	} else if e.Location != "" {
		b.WriteString(" at ")
		b.WriteString(e.Location)
	}

	if e.Shape != "" {
		b.WriteString(": shape ")
		b.WriteString(e.Shape)
	}

	if e.Detail != "" {
		if e.Shape != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Func sets the interface function name
func (b *Builder) Func(name string) *Builder {
	b.err.Func = name
	return b
}

// Location sets the failing argument or result tag
func (b *Builder) Location(loc string) *Builder {
	b.err.Location = loc
	return b
}

// Shape sets the type-shape name involved
func (b *Builder) Shape(name string) *Builder {
	b.err.Shape = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InFunc tags a validation failure with the interface function and the
// argument or result location that produced it. Every marshal or writeback
// failure funnels through here before reaching the guest-error conversion.
func InFunc(funcName, location string, cause error) *Error {
	e := &Error{
		Func:     funcName,
		Location: location,
		Cause:    cause,
		Phase:    PhaseRuntime,
		Kind:     KindInvalidInput,
	}
	if c, ok := cause.(*Error); ok {
		e.Phase = c.Phase
		e.Kind = c.Kind
	}
	return e
}

// Overflow creates an overflow error for a checked narrowing conversion
func Overflow(phase Phase, value any, shape string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Shape:  shape,
		Detail: fmt.Sprintf("value %v does not fit", value),
		Value:  value,
	}
}

// InvalidEnum creates an invalid enum discriminant error
func InvalidEnum(phase Phase, value uint64, shape string, max uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Shape:  shape,
		Detail: fmt.Sprintf("discriminant %d out of range (max %d)", value, max),
		Value:  value,
	}
}

// InvalidFlags creates an error for flag bits outside the valid mask
func InvalidFlags(phase Phase, value uint64, shape string, mask uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidFlags,
		Shape:  shape,
		Detail: fmt.Sprintf("bits %#x outside valid mask %#x", value, mask),
		Value:  value,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at offset %d length %d exceeds memory size %d", offset, length, size),
		Value:  offset,
	}
}

// Misaligned creates an alignment error for a guest pointer
func Misaligned(phase Phase, offset, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisaligned,
		Detail: fmt.Sprintf("offset %d is not %d-byte aligned", offset, align),
		Value:  offset,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a lookup failure error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Registration creates a registration failure error
func Registration(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("registering %q", name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
