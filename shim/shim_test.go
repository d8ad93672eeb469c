package shim

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	hostshim "github.com/wippyai/hostshim"
	hserrors "github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/guest"
	"github.com/wippyai/hostshim/handle"
	"github.com/wippyai/hostshim/schema"
)

// Errno encodings used by the test interface.
const (
	errnoSuccess = 0
	errnoFault   = 21 // bad address
	errnoInval   = 28 // invalid argument
)

// testErrno is a domain error that already is the declared error type.
type testErrno uint32

func (e testErrno) Error() string       { return fmt.Sprintf("errno(%d)", uint32(e)) }
func (e testErrno) Errno() hostshim.Raw { return hostshim.Raw(e) }

func errnoSpec() *ErrorSpec {
	return &ErrorSpec{
		Name:    "errno",
		Success: func() hostshim.Raw { return errnoSuccess },
		FromGuest: func(e *hserrors.Error) hostshim.Raw {
			switch e.Kind {
			case hserrors.KindOutOfBounds, hserrors.KindMisaligned:
				return errnoFault
			default:
				return errnoInval
			}
		},
	}
}

func newTestCtx(t *testing.T) (*Ctx, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := NewCtx(WithLogger(zap.New(core)))
	if err := ctx.RegisterError(errnoSpec()); err != nil {
		t.Fatal(err)
	}
	return ctx, logs
}

func errnoResult() schema.Result {
	return schema.Result{Name: "errno", Shape: schema.EnumShape("errno", 76), ErrType: "errno"}
}

// Scenario: get(idx: u32) -> result<u8, errno> with the byte returned
// through an output pointer.
func getFunc() *schema.Func {
	return &schema.Func{
		Name: "get",
		Params: []schema.Param{
			{Name: "idx", Shape: schema.ScalarShape(schema.KindU32)},
		},
		Results: []schema.Result{
			errnoResult(),
			{Name: "value", Shape: schema.ScalarShape(schema.KindU8)},
		},
	}
}

func TestCall_SuccessPath(t *testing.T) {
	ctx, logs := newTestCtx(t)
	mem := guest.NewRegion(64)

	store := []byte{10, 20, 30}
	invoked := 0
	s, err := Synthesize("store", getFunc(), func(_ *Ctx, args []any) ([]any, error) {
		invoked++
		// The args trace event must be emitted before the handler runs.
		if logs.FilterMessage("args").Len() != 1 {
			t.Error("args trace event not emitted before handler invocation")
		}
		idx := args[0].(uint32)
		if int(idx) >= len(store) {
			return nil, testErrno(errnoInval)
		}
		return []any{store[idx]}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	const outPtr = 16
	ret, ok, trap := s.Call(ctx, mem, hostshim.Raw(1), hostshim.Raw(outPtr))
	if trap != nil {
		t.Fatalf("trap: %v", trap)
	}
	if !ok || ret != errnoSuccess {
		t.Errorf("ret = %d ok = %v, want canonical success", ret, ok)
	}
	if invoked != 1 {
		t.Errorf("handler invoked %d times", invoked)
	}
	if v, _ := mem.ReadU8(outPtr); v != 20 {
		t.Errorf("output pointer holds %d, want 20", v)
	}
	if n := logs.FilterMessage("args").Len(); n != 1 {
		t.Errorf("args trace emitted %d times, want exactly 1", n)
	}
}

func TestCall_NullaryTracesArgs(t *testing.T) {
	ctx, logs := newTestCtx(t)
	mem := guest.NewRegion(16)

	fn := &schema.Func{Name: "sync", Results: []schema.Result{errnoResult()}}
	s, err := Synthesize("store", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ret, ok, trap := s.Call(ctx, mem)
	if trap != nil {
		t.Fatalf("trap: %v", trap)
	}
	if !ok || ret != errnoSuccess {
		t.Errorf("ret = %d ok = %v, want canonical success", ret, ok)
	}
	// The trace event fires once per call even with nothing to record.
	if n := logs.FilterMessage("args").Len(); n != 1 {
		t.Errorf("args trace emitted %d times for nullary call, want 1", n)
	}
}

func TestCall_DomainError(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(64)

	s, err := Synthesize("store", getFunc(), func(_ *Ctx, args []any) ([]any, error) {
		return nil, testErrno(errnoInval)
	})
	if err != nil {
		t.Fatal(err)
	}

	ret, ok, trap := s.Call(ctx, mem, hostshim.Raw(99), hostshim.Raw(16))
	if trap != nil {
		t.Fatalf("trap: %v", trap)
	}
	if !ok || ret != errnoInval {
		t.Errorf("ret = %d, want errno %d", ret, errnoInval)
	}
}

func TestCall_ValidationFailureSkipsHandler(t *testing.T) {
	ctx, logs := newTestCtx(t)
	mem := guest.NewRegion(32)

	// A struct-shaped argument forces an eager read; an offset past the
	// region is a validation failure before the handler ever runs.
	fn := &schema.Func{
		Name: "stat_set",
		Params: []schema.Param{
			{Name: "stat", Shape: schema.StructShape("stat", 16, 8)},
		},
		Results: []schema.Result{errnoResult()},
	}

	invoked := false
	s, err := Synthesize("store", fn, func(_ *Ctx, _ []any) ([]any, error) {
		invoked = true
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ret, ok, trap := s.Call(ctx, mem, hostshim.Raw(1024))
	if trap != nil {
		t.Fatalf("trap: %v", trap)
	}
	if !ok || ret != errnoFault {
		t.Errorf("ret = %d, want errno %d for out-of-bounds read", ret, errnoFault)
	}
	if invoked {
		t.Error("handler must not run after a marshal failure")
	}
	if n := logs.FilterMessage("args").Len(); n != 0 {
		t.Errorf("args trace emitted %d times after marshal failure, want 0", n)
	}
}

func TestCall_NarrowInts(t *testing.T) {
	fn := func(name string, shape *schema.Shape) *schema.Func {
		return &schema.Func{
			Name:    name,
			Params:  []schema.Param{{Name: "v", Shape: shape}},
			Results: []schema.Result{errnoResult()},
		}
	}

	tests := []struct {
		name    string
		shape   *schema.Shape
		in      hostshim.Raw
		want    any
		invalid hostshim.Raw
	}{
		{"u8", schema.ScalarShape(schema.KindU8), 255, uint8(255), 256},
		{"u16", schema.ScalarShape(schema.KindU16), 65535, uint16(65535), 65536},
		{"s8", schema.ScalarShape(schema.KindS8), hostshim.RawI32(-128), int8(-128), hostshim.RawI32(128)},
		{"s16", schema.ScalarShape(schema.KindS16), hostshim.RawI32(-32768), int16(-32768), hostshim.RawI32(32768)},
		{"char8", schema.ScalarShape(schema.KindChar8), 'x', uint8('x'), 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestCtx(t)
			mem := guest.NewRegion(16)

			var got any
			s, err := Synthesize("narrow", fn(tt.name, tt.shape), func(_ *Ctx, args []any) ([]any, error) {
				got = args[0]
				return nil, nil
			})
			if err != nil {
				t.Fatal(err)
			}

			// In-range words round-trip exactly.
			ret, _, trap := s.Call(ctx, mem, tt.in)
			if trap != nil {
				t.Fatalf("trap: %v", trap)
			}
			if ret != errnoSuccess {
				t.Errorf("in-range word: ret = %d", ret)
			}
			if got != tt.want {
				t.Errorf("handler saw %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}

			// Out-of-range words are validation errors, not truncation.
			got = nil
			ret, _, trap = s.Call(ctx, mem, tt.invalid)
			if trap != nil {
				t.Fatalf("trap: %v", trap)
			}
			if ret != errnoInval {
				t.Errorf("out-of-range word: ret = %d, want errno %d", ret, errnoInval)
			}
			if got != nil {
				t.Error("handler must not see a truncated value")
			}
		})
	}
}

func TestCall_EnumAndFlagsValidation(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(16)

	fn := &schema.Func{
		Name: "advise",
		Params: []schema.Param{
			{Name: "advice", Shape: schema.EnumShape("advice", 5)},
			{Name: "flags", Shape: schema.FlagsShape("fdflags", 0b11111)},
		},
		Results: []schema.Result{errnoResult()},
	}
	var seen []any
	s, err := Synthesize("fd", fn, func(_ *Ctx, args []any) ([]any, error) {
		seen = append([]any{}, args...)
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if ret, _, _ := s.Call(ctx, mem, 3, 0b101); ret != errnoSuccess {
		t.Errorf("valid enum/flags: ret = %d", ret)
	}
	if seen[0] != uint64(3) || seen[1] != uint64(0b101) {
		t.Errorf("handler saw %v", seen)
	}

	if ret, _, _ := s.Call(ctx, mem, 6, 0); ret != errnoInval {
		t.Errorf("bad discriminant: ret = %d", ret)
	}
	if ret, _, _ := s.Call(ctx, mem, 0, 0b100000); ret != errnoInval {
		t.Errorf("bad flag bits: ret = %d", ret)
	}
}

// Scenario: read(buf: array<u8>) -> result<(), errno> where the buffer
// range exceeds guest memory. The lazy reference marshals fine; the
// handler's own read fails and surfaces as its domain error.
func TestCall_LazyArrayMarshal(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(64)

	invoked := false
	fn := &schema.Func{
		Name: "read",
		Params: []schema.Param{
			{Name: "buf", Shape: schema.ArrayShape(schema.ScalarShape(schema.KindU8))},
		},
		Results: []schema.Result{errnoResult()},
	}
	s, err := Synthesize("fd", fn, func(_ *Ctx, args []any) ([]any, error) {
		invoked = true
		buf := args[0].(*guest.Slice)
		if _, err := buf.Bytes(); err != nil {
			return nil, testErrno(errnoFault)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ret, _, trap := s.Call(ctx, mem, hostshim.Raw(32), hostshim.Raw(1000))
	if trap != nil {
		t.Fatalf("trap: %v", trap)
	}
	if !invoked {
		t.Error("lazy array reference must marshal without validation")
	}
	if ret != errnoFault {
		t.Errorf("ret = %d, want handler's domain error", ret)
	}
}

func TestCall_StringLazyMarshal(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(64)
	copy(mem.Bytes()[8:], "path")

	fn := &schema.Func{
		Name: "open",
		Params: []schema.Param{
			{Name: "path", Shape: schema.StringShape()},
		},
		Results: []schema.Result{errnoResult()},
	}
	var got string
	s, err := Synthesize("fs", fn, func(_ *Ctx, args []any) ([]any, error) {
		v, err := args[0].(*guest.String).Load()
		if err != nil {
			return nil, testErrno(errnoFault)
		}
		got = v
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if ret, _, _ := s.Call(ctx, mem, 8, 4); ret != errnoSuccess {
		t.Errorf("ret = %d", ret)
	}
	if got != "path" {
		t.Errorf("handler loaded %q", got)
	}
}

// Scenario: two extra results. a is written before b; a failed write of b
// reports the validation error while a's memory stays mutated.
func TestCall_ResultWritebackOrdering(t *testing.T) {
	fn := &schema.Func{
		Name: "pair",
		Results: []schema.Result{
			errnoResult(),
			{Name: "a", Shape: schema.ScalarShape(schema.KindU32)},
			{Name: "b", Shape: schema.ScalarShape(schema.KindU32)},
		},
	}

	t.Run("both written in order", func(t *testing.T) {
		ctx, _ := newTestCtx(t)
		mem := guest.NewRegion(64)
		s, err := Synthesize("pair", fn, func(_ *Ctx, _ []any) ([]any, error) {
			return []any{uint32(111), uint32(222)}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		ret, _, trap := s.Call(ctx, mem, hostshim.Raw(8), hostshim.Raw(12))
		if trap != nil {
			t.Fatalf("trap: %v", trap)
		}
		if ret != errnoSuccess {
			t.Errorf("ret = %d", ret)
		}
		if a, _ := mem.ReadU32(8); a != 111 {
			t.Errorf("a = %d", a)
		}
		if b, _ := mem.ReadU32(12); b != 222 {
			t.Errorf("b = %d", b)
		}
	})

	t.Run("b write fails after a written", func(t *testing.T) {
		ctx, _ := newTestCtx(t)
		mem := guest.NewRegion(64)
		s, err := Synthesize("pair", fn, func(_ *Ctx, _ []any) ([]any, error) {
			return []any{uint32(111), uint32(222)}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		// b's output pointer is out of bounds.
		ret, ok, trap := s.Call(ctx, mem, hostshim.Raw(8), hostshim.Raw(4096))
		if trap != nil {
			t.Fatalf("trap: %v", trap)
		}
		if !ok || ret != errnoFault {
			t.Errorf("ret = %d, want errno %d for b's bad pointer", ret, errnoFault)
		}
		// a was already written despite the overall failure.
		if a, _ := mem.ReadU32(8); a != 111 {
			t.Errorf("a = %d, want 111 written before b failed", a)
		}
	})

	t.Run("handler failure skips all writebacks", func(t *testing.T) {
		ctx, _ := newTestCtx(t)
		mem := guest.NewRegion(64)
		s, err := Synthesize("pair", fn, func(_ *Ctx, _ []any) ([]any, error) {
			return nil, testErrno(errnoInval)
		})
		if err != nil {
			t.Fatal(err)
		}
		ret, _, trap := s.Call(ctx, mem, hostshim.Raw(8), hostshim.Raw(12))
		if trap != nil {
			t.Fatalf("trap: %v", trap)
		}
		if ret != errnoInval {
			t.Errorf("ret = %d", ret)
		}
		if a, _ := mem.ReadU32(8); a != 0 {
			t.Error("post-call writes must not run on the handler error path")
		}
	})
}

func TestCall_NoReturnAlwaysTraps(t *testing.T) {
	ctx, logs := newTestCtx(t)
	mem := guest.NewRegion(16)

	fn := &schema.Func{
		Name:     "proc_exit",
		Params:   []schema.Param{{Name: "code", Shape: schema.ScalarShape(schema.KindU32)}},
		NoReturn: true,
	}

	for _, herr := range []error{nil, fmt.Errorf("exit requested")} {
		s, err := Synthesize("proc", fn, func(_ *Ctx, _ []any) ([]any, error) {
			return nil, herr
		})
		if err != nil {
			t.Fatal(err)
		}
		_, ok, trap := s.Call(ctx, mem, hostshim.Raw(1))
		if trap == nil || ok {
			t.Errorf("noreturn call with handler error %v must trap", herr)
		}
	}

	// The argument trace still fires before the diverging handler.
	if logs.FilterMessage("args").Len() == 0 {
		t.Error("noreturn path should trace marshaled args")
	}
}

func TestCall_NoErrorTypeFailuresTrap(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	ctx := NewCtx(WithLogger(zap.New(core)))
	mem := guest.NewRegion(16)

	// No results at all: marshal failures have nowhere to go.
	fn := &schema.Func{
		Name:   "poke",
		Params: []schema.Param{{Name: "v", Shape: schema.ScalarShape(schema.KindU8)}},
	}
	s, err := Synthesize("raw", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	_, ok, trap := s.Call(ctx, mem, hostshim.Raw(300))
	if trap == nil || ok {
		t.Error("marshal failure without a declared error type must trap")
	}

	// Handler failure without a declared error type also traps.
	s2, err := Synthesize("raw", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, fmt.Errorf("boom")
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, trap = s2.Call(ctx, mem, hostshim.Raw(1))
	if trap == nil {
		t.Error("handler failure without a declared error type must trap")
	}

	// Success is a bare void return.
	ret, ok, trap := s.Call(ctx, mem, hostshim.Raw(1))
	if trap != nil || ok || ret != 0 {
		t.Errorf("void success = (%d, %v, %v)", ret, ok, trap)
	}
}

func TestCall_UserErrorConversion(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	ctx := NewCtx(WithLogger(zap.New(core)))

	spec := errnoSpec()
	spec.FromUser = func(err error) (hostshim.Raw, error) {
		if err.Error() == "not found" {
			return 44, nil
		}
		return 0, fmt.Errorf("unmapped: %w", err)
	}
	if err := ctx.RegisterError(spec); err != nil {
		t.Fatal(err)
	}
	mem := guest.NewRegion(16)

	fn := &schema.Func{
		Name:    "lookup",
		Results: []schema.Result{errnoResult()},
	}

	s, err := Synthesize("db", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, fmt.Errorf("not found")
	})
	if err != nil {
		t.Fatal(err)
	}
	ret, _, trap := s.Call(ctx, mem)
	if trap != nil || ret != 44 {
		t.Errorf("registered conversion: ret = %d trap = %v", ret, trap)
	}

	// A failing conversion is a trap.
	s2, err := Synthesize("db", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, fmt.Errorf("mystery")
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, trap := s2.Call(ctx, mem); trap == nil {
		t.Error("failing user-error conversion must trap")
	}
}

func TestCall_UnconvertibleDomainErrorTraps(t *testing.T) {
	ctx, _ := newTestCtx(t) // no FromUser registered
	mem := guest.NewRegion(16)

	fn := &schema.Func{Name: "f", Results: []schema.Result{errnoResult()}}
	s, err := Synthesize("x", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, fmt.Errorf("plain error, not an Errno")
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, trap := s.Call(ctx, mem); trap == nil {
		t.Error("domain error without identity or registered conversion must trap")
	}
}

func TestCall_UnregisteredErrorTypeTraps(t *testing.T) {
	ctx := NewCtx() // nothing registered
	mem := guest.NewRegion(16)

	fn := &schema.Func{Name: "f", Results: []schema.Result{errnoResult()}}
	s, err := Synthesize("x", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, trap := s.Call(ctx, mem); trap == nil {
		t.Error("calling with an unregistered error type must trap")
	}
}

func TestCall_ArityMismatchTraps(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(16)

	s, err := Synthesize("store", getFunc(), func(_ *Ctx, _ []any) ([]any, error) {
		return []any{uint8(0)}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, trap := s.Call(ctx, mem, hostshim.Raw(1)); trap == nil {
		t.Error("wrong flat word count must trap")
	}

	// Handler returning the wrong number of extras traps too.
	bad, err := Synthesize("store", getFunc(), func(_ *Ctx, _ []any) ([]any, error) {
		return []any{uint8(1), uint8(2)}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, trap := bad.Call(ctx, mem, hostshim.Raw(0), hostshim.Raw(8)); trap == nil {
		t.Error("handler arity mismatch must trap")
	}
}

func TestCall_HandleArgs(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(16)

	h := ctx.Handles().Insert(1, "resource-value")

	fn := &schema.Func{
		Name:    "close",
		Params:  []schema.Param{{Name: "fd", Shape: schema.HandleShape("fd", 1)}},
		Results: []schema.Result{errnoResult()},
	}
	var resolved any
	s, err := Synthesize("fd", fn, func(c *Ctx, args []any) ([]any, error) {
		v, ok := c.Handles().GetTyped(args[0].(handle.Handle), 1)
		if !ok {
			return nil, testErrno(errnoInval)
		}
		resolved = v
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if ret, _, _ := s.Call(ctx, mem, hostshim.Raw(uint32(h))); ret != errnoSuccess {
		t.Errorf("ret = %d", ret)
	}
	if resolved != "resource-value" {
		t.Errorf("resolved = %v", resolved)
	}
}

func TestSynthesize_Rejections(t *testing.T) {
	noop := func(_ *Ctx, _ []any) ([]any, error) { return nil, nil }

	tests := []struct {
		name string
		fn   *schema.Func
	}{
		{"string result", &schema.Func{
			Name: "f",
			Results: []schema.Result{
				errnoResult(),
				{Name: "s", Shape: schema.StringShape()},
			},
		}},
		{"array result", &schema.Func{
			Name: "f",
			Results: []schema.Result{
				errnoResult(),
				{Name: "a", Shape: schema.ArrayShape(schema.ScalarShape(schema.KindU8))},
			},
		}},
		{"pointer result", &schema.Func{
			Name: "f",
			Results: []schema.Result{
				errnoResult(),
				{Name: "p", Shape: schema.PointerShape(schema.ScalarShape(schema.KindU32))},
			},
		}},
		{"noreturn with results", &schema.Func{
			Name:     "f",
			NoReturn: true,
			Results:  []schema.Result{errnoResult()},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Synthesize("x", tt.fn, noop); err == nil {
				t.Error("expected synthesis error")
			}
		})
	}

	if _, err := Synthesize("x", &schema.Func{Name: "f"}, nil); err == nil {
		t.Error("nil handler should be rejected")
	}
}

func TestSynthesize_EnumResultWritebackWidth(t *testing.T) {
	ctx, _ := newTestCtx(t)
	mem := guest.NewRegion(32)

	// Enum extras use their discriminant width, not a full word.
	fn := &schema.Func{
		Name: "kind_of",
		Results: []schema.Result{
			errnoResult(),
			{Name: "kind", Shape: schema.EnumShape("kind", 4)},
		},
	}
	s, err := Synthesize("meta", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return []any{uint64(3)}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteU8(9, 0xaa); err != nil {
		t.Fatal(err)
	}
	if ret, _, trap := s.Call(ctx, mem, hostshim.Raw(8)); trap != nil || ret != errnoSuccess {
		t.Fatalf("ret = %d trap = %v", ret, trap)
	}
	if v, _ := mem.ReadU8(8); v != 3 {
		t.Errorf("kind byte = %d", v)
	}
	if v, _ := mem.ReadU8(9); v != 0xaa {
		t.Error("enum writeback touched the neighboring byte")
	}
}

func TestRegisterError_Validation(t *testing.T) {
	ctx := NewCtx()

	if err := ctx.RegisterError(nil); err == nil {
		t.Error("nil spec should be rejected")
	}
	if err := ctx.RegisterError(&ErrorSpec{Name: "e"}); err == nil {
		t.Error("spec without success value should be rejected")
	}
	if err := ctx.RegisterError(&ErrorSpec{
		Name:    "e",
		Success: func() hostshim.Raw { return 0 },
	}); err == nil {
		t.Error("spec without guest-error conversion should be rejected")
	}

	ok := errnoSpec()
	if err := ctx.RegisterError(ok); err != nil {
		t.Fatal(err)
	}
	if err := ctx.RegisterError(errnoSpec()); err == nil {
		t.Error("duplicate registration should be rejected")
	}
}

func TestCall_GuestErrorTagging(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	ctx := NewCtx(WithLogger(zap.New(core)))

	var tagged *hserrors.Error
	spec := errnoSpec()
	spec.FromGuest = func(e *hserrors.Error) hostshim.Raw {
		tagged = e
		return errnoInval
	}
	if err := ctx.RegisterError(spec); err != nil {
		t.Fatal(err)
	}
	mem := guest.NewRegion(16)

	fn := &schema.Func{
		Name: "seek",
		Params: []schema.Param{
			{Name: "fd", Shape: schema.ScalarShape(schema.KindU32)},
			{Name: "whence", Shape: schema.EnumShape("whence", 2)},
		},
		Results: []schema.Result{errnoResult()},
	}
	s, err := Synthesize("fd", fn, func(_ *Ctx, _ []any) ([]any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	s.Call(ctx, mem, hostshim.Raw(1), hostshim.Raw(9))
	if tagged == nil {
		t.Fatal("guest-error conversion not invoked")
	}
	if tagged.Func != "seek" || tagged.Location != "whence" {
		t.Errorf("tag = %s:%s, want seek:whence", tagged.Func, tagged.Location)
	}

	// Writeback failures carry the result marker.
	fn2 := &schema.Func{
		Name: "tell",
		Results: []schema.Result{
			errnoResult(),
			{Name: "pos", Shape: schema.ScalarShape(schema.KindU64)},
		},
	}
	s2, err := Synthesize("fd", fn2, func(_ *Ctx, _ []any) ([]any, error) {
		return []any{uint64(0)}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	tagged = nil
	s2.Call(ctx, mem, hostshim.Raw(4096))
	if tagged == nil || tagged.Location != "pos:result_ptr_mut" {
		t.Errorf("writeback tag = %+v, want pos:result_ptr_mut", tagged)
	}
}
