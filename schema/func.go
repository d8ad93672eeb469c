package schema

import (
	"strings"

	"github.com/wippyai/hostshim/errors"
)

// Func describes one resolved interface function. The first result, when
// present, is the function's declared error/status slot; every other result
// is an extra output value returned through a guest output pointer.
type Func struct {
	Name     string
	Params   []Param
	Results  []Result
	NoReturn bool
}

// Param is one declared parameter.
type Param struct {
	Name  string
	Shape *Shape
}

// Result is one declared result. ErrType names the registered error spec and
// may be set only on the first result.
type Result struct {
	Name    string
	Shape   *Shape
	ErrType string
}

// Validate checks the descriptor's structural invariants.
func Validate(f *Func) error {
	if f == nil {
		return errors.InvalidInput(errors.PhaseSynth, "nil function descriptor")
	}
	if f.Name == "" {
		return errors.InvalidInput(errors.PhaseSynth, "function name cannot be empty")
	}
	if f.NoReturn && len(f.Results) > 0 {
		return errors.New(errors.PhaseSynth, errors.KindInvalidInput).
			Func(f.Name).
			Detail("noreturn function cannot declare results").
			Build()
	}
	for i, p := range f.Params {
		if p.Name == "" {
			return errors.New(errors.PhaseSynth, errors.KindInvalidInput).
				Func(f.Name).
				Detail("parameter %d has no name", i).
				Build()
		}
		if p.Shape == nil {
			return errors.New(errors.PhaseSynth, errors.KindInvalidInput).
				Func(f.Name).Location(p.Name).
				Detail("parameter has no shape").
				Build()
		}
	}
	for i, r := range f.Results {
		if r.Name == "" {
			return errors.New(errors.PhaseSynth, errors.KindInvalidInput).
				Func(f.Name).
				Detail("result %d has no name", i).
				Build()
		}
		if r.Shape == nil {
			return errors.New(errors.PhaseSynth, errors.KindInvalidInput).
				Func(f.Name).Location(r.Name).
				Detail("result has no shape").
				Build()
		}
		if r.ErrType != "" && i != 0 {
			return errors.New(errors.PhaseSynth, errors.KindInvalidInput).
				Func(f.Name).Location(r.Name).
				Detail("declared error type is only valid on the first result").
				Build()
		}
	}
	return nil
}

// ErrType returns the declared error type name, or "" when the function has
// no recoverable error channel.
func (f *Func) ErrType() string {
	if len(f.Results) == 0 {
		return ""
	}
	return f.Results[0].ErrType
}

// Extras returns the results beyond the first, which travel through output
// pointers.
func (f *Func) Extras() []Result {
	if len(f.Results) < 2 {
		return nil
	}
	return f.Results[1:]
}

// FlatArgCount returns the number of core ABI words the flattened call
// takes: every parameter's flat count plus one output-pointer word per
// extra result.
func (f *Func) FlatArgCount() int {
	n := 0
	for _, p := range f.Params {
		n += p.Shape.FlatCount()
	}
	return n + len(f.Extras())
}

// HasReturn reports whether the flattened call produces an ABI return word.
func (f *Func) HasReturn() bool {
	return len(f.Results) > 0
}

// Signature renders the function in interface notation for listings and
// diagnostics.
func (f *Func) Signature() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Shape.String())
	}
	b.WriteByte(')')
	if f.NoReturn {
		b.WriteString(" -> noreturn")
		return b.String()
	}
	if len(f.Results) == 0 {
		return b.String()
	}
	b.WriteString(" -> ")
	b.WriteString(f.Results[0].Shape.String())
	if extras := f.Extras(); len(extras) > 0 {
		b.WriteString(" (")
		for i, r := range extras {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.Name)
			b.WriteString(": ")
			b.WriteString(r.Shape.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}
