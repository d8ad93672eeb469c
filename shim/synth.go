package shim

import (
	"go.uber.org/zap"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/guest"
	"github.com/wippyai/hostshim/handle"
	"github.com/wippyai/hostshim/schema"
)

// Handler implements one interface function on the host side. args holds
// one typed value per declared parameter, in order. On success the returned
// slice holds one value per extra result, in order. A returned error is a
// domain error and travels through the user-error conversion; it never
// reaches the guest raw.
//
// For noreturn functions the handler must diverge; whatever it returns is
// surfaced as a trap.
type Handler func(ctx *Ctx, args []any) ([]any, error)

type argPlan struct {
	param schema.Param
	slot  int
}

type retPlan struct {
	result schema.Result
	slot   int
}

// Shim is the synthesized trampoline for one interface function.
type Shim struct {
	iface   string
	fn      *schema.Func
	handler Handler
	args    []argPlan
	rets    []retPlan
	errType string
	nwords  int
}

// Synthesize builds the shim for fn. It validates the descriptor, lays out
// the flat argument words, and rejects result shapes the writeback protocol
// cannot carry. Synthesis is pure: it performs no I/O and the same
// descriptor always yields the same plan.
func Synthesize(iface string, fn *schema.Func, h Handler) (*Shim, error) {
	if err := schema.Validate(fn); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.New(errors.PhaseSynth, errors.KindInvalidInput).
			Func(fn.Name).
			Detail("nil handler").
			Build()
	}

	s := &Shim{
		iface:   iface,
		fn:      fn,
		handler: h,
		errType: fn.ErrType(),
	}

	slot := 0
	for _, p := range fn.Params {
		s.args = append(s.args, argPlan{param: p, slot: slot})
		slot += p.Shape.FlatCount()
	}
	for _, r := range fn.Extras() {
		switch r.Shape.Kind {
		case schema.KindString, schema.KindArray,
			schema.KindPointer, schema.KindConstPointer:
			// The writeback protocol only supports shapes with a fixed,
			// statically known write size.
			return nil, errors.New(errors.PhaseSynth, errors.KindUnsupported).
				Func(fn.Name).Location(r.Name).
				Detail("%s result types are not supported", r.Shape.Kind).
				Build()
		}
		s.rets = append(s.rets, retPlan{result: r, slot: slot})
		slot++
	}
	s.nwords = slot
	return s, nil
}

// Name returns the interface function name.
func (s *Shim) Name() string { return s.fn.Name }

// Func returns the descriptor the shim was synthesized from.
func (s *Shim) Func() *schema.Func { return s.fn }

// NumWords returns how many flat ABI words a call takes.
func (s *Shim) NumWords() int { return s.nwords }

// HasReturn reports whether a call produces an ABI return word.
func (s *Shim) HasReturn() bool { return s.fn.HasReturn() }

// Call runs the shim against one set of flat ABI words. The return is
// either the encoded result word (ok true), nothing (ok false, for
// functions with no results), or a trap. Guest memory is borrowed for the
// duration of the call.
func (s *Shim) Call(ctx *Ctx, mem hostshim.Memory, words ...hostshim.Raw) (ret hostshim.Raw, ok bool, trap *Trap) {
	log := ctx.logger.With(
		zap.String("interface", s.iface),
		zap.String("function", s.fn.Name),
	)
	log.Debug("call")
	defer func() {
		if trap != nil {
			log.Debug("trap", zap.Error(trap))
		} else {
			log.Debug("return")
		}
	}()

	if len(words) != s.nwords {
		return 0, false, trapf(
			errors.New(errors.PhaseRuntime, errors.KindArity).
				Func(s.fn.Name).
				Detail("got %d ABI words, want %d", len(words), s.nwords).
				Build(),
			"flat argument count mismatch")
	}

	var spec *ErrorSpec
	if s.errType != "" {
		if spec = ctx.errorSpec(s.errType); spec == nil {
			return 0, false, trapf(nil,
				"error type %q is not registered on the call context", s.errType)
		}
	}

	// fail funnels a validation failure into the declared error type, or
	// traps when there is no way to signal the guest.
	fail := func(location string, cause error) (hostshim.Raw, bool, *Trap) {
		tagged := errors.InFunc(s.fn.Name, location, cause)
		if spec == nil {
			return 0, false, trapf(tagged, "validation failure with no declared error type")
		}
		log.Debug("guest error", zap.String("location", location), zap.Error(tagged))
		return spec.FromGuest(tagged), true, nil
	}

	hargs := make([]any, len(s.args))
	for i, ap := range s.args {
		v, err := marshalArg(mem, ap.param.Shape, words[ap.slot:])
		if err != nil {
			return fail(ap.param.Name, err)
		}
		hargs[i] = v
	}

	if s.fn.NoReturn {
		s.traceArgs(log, hargs)
		_, err := s.handler(ctx, hargs)
		return 0, false, trapf(err, "noreturn function %q returned", s.fn.Name)
	}

	// Output pointers are constructed before the handler runs; their
	// writability is checked by the write itself.
	outs := make([]*guest.Ptr, len(s.rets))
	for i, rp := range s.rets {
		outs[i] = guest.NewPtr(mem, rp.result.Shape, words[rp.slot].U32())
	}

	s.traceArgs(log, hargs)

	rets, herr := s.handler(ctx, hargs)
	if herr != nil {
		return s.userError(log, spec, herr)
	}

	if len(rets) != len(s.rets) {
		return 0, false, trapf(nil,
			"handler for %q returned %d values, declared %d extra results",
			s.fn.Name, len(rets), len(s.rets))
	}

	if len(s.rets) > 0 {
		fields := make([]zap.Field, len(s.rets))
		for i, rp := range s.rets {
			fields[i] = traceField(rp.result.Name, rets[i])
		}
		log.Debug("results", fields...)
	}

	for i, rp := range s.rets {
		v := rets[i]
		if h, isHandle := v.(handle.Handle); isHandle {
			v = uint32(h)
		}
		if err := outs[i].Write(v); err != nil {
			return fail(rp.result.Name+":result_ptr_mut", err)
		}
	}

	if spec != nil {
		success := spec.Success()
		log.Debug("success", zap.Uint64("encoded", uint64(success)))
		return success, true, nil
	}
	return 0, false, nil
}

// traceArgs emits the single argument trace event: once per call, after
// every argument marshaled, never after a failure. Nullary functions
// still get the event, just without fields.
func (s *Shim) traceArgs(log *zap.Logger, hargs []any) {
	fields := make([]zap.Field, len(hargs))
	for i, ap := range s.args {
		fields[i] = traceField(ap.param.Name, hargs[i])
	}
	log.Debug("args", fields...)
}

// userError runs the handler domain error through the registered
// conversion, or the identity tier when none is registered.
func (s *Shim) userError(log *zap.Logger, spec *ErrorSpec, herr error) (hostshim.Raw, bool, *Trap) {
	if spec == nil {
		return 0, false, trapf(herr,
			"handler for %q failed but the function declares no error type", s.fn.Name)
	}
	var encoded hostshim.Raw
	if spec.FromUser != nil {
		raw, err := spec.FromUser(herr)
		if err != nil {
			return 0, false, trapf(err, "user-error conversion for %q failed", spec.Name)
		}
		encoded = raw
	} else if en, isErrno := herr.(Errno); isErrno {
		encoded = en.Errno()
	} else {
		return 0, false, trapf(herr,
			"domain error %T is not convertible to %q", herr, spec.Name)
	}
	log.Debug("handler error", zap.Error(herr), zap.Uint64("encoded", uint64(encoded)))
	return encoded, true, nil
}
