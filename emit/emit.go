package emit

import (
	"strings"
	"unicode"

	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/schema"
)

// Emitter renders an interface of function descriptors into source text.
type Emitter interface {
	// Language names the backend's target, e.g. "go".
	Language() string

	// Emit renders bindings for every function in the interface.
	Emit(iface string, fns []*schema.Func) ([]byte, error)
}

// validate runs the same descriptor checks the runtime synthesizer
// applies, so a descriptor that emits is a descriptor that synthesizes.
func validate(iface string, fns []*schema.Func) error {
	if iface == "" {
		return errors.InvalidInput(errors.PhaseEmit, "interface name cannot be empty")
	}
	if len(fns) == 0 {
		return errors.InvalidInput(errors.PhaseEmit, "interface has no functions")
	}
	seen := make(map[string]bool, len(fns))
	for _, fn := range fns {
		if err := schema.Validate(fn); err != nil {
			return err
		}
		if seen[fn.Name] {
			return errors.New(errors.PhaseEmit, errors.KindRegistration).
				Func(fn.Name).
				Detail("duplicate function name").
				Build()
		}
		seen[fn.Name] = true
		for _, r := range fn.Extras() {
			switch r.Shape.Kind {
			case schema.KindString, schema.KindArray, schema.KindPointer, schema.KindConstPointer:
				return errors.New(errors.PhaseEmit, errors.KindUnsupported).
					Func(fn.Name).Location(r.Name).
					Shape(r.Shape.String()).
					Detail("%s result types are not supported", r.Shape.Kind).
					Build()
			}
		}
	}
	return nil
}

// exported converts a snake_case or kebab-case wire name into an exported
// Go identifier: "fd_read" becomes "FdRead".
func exported(name string) string {
	var b strings.Builder
	up := true
	for _, r := range name {
		if r == '_' || r == '-' || r == '.' || r == ':' || r == '/' || r == '@' {
			up = true
			continue
		}
		if up {
			b.WriteRune(unicode.ToUpper(r))
			up = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
