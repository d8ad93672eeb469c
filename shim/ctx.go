package shim

import (
	"sync"

	"go.uber.org/zap"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/handle"
)

// ErrorSpec is the capability bundle for one declared error type: the
// canonical success encoding, the always-present guest-error conversion,
// and the optional user-error conversion for handler domain errors.
type ErrorSpec struct {
	Name string

	// Success returns the canonical "no error" encoding. The shim returns
	// it on every fully successful call.
	Success func() hostshim.Raw

	// FromGuest converts a tagged validation failure into the declared
	// error type's encoding. Required.
	FromGuest func(*errors.Error) hostshim.Raw

	// FromUser converts a handler domain error. Optional; when nil the
	// domain error must already encode itself (see Errno). A non-nil second
	// return means the conversion itself failed and the call traps.
	FromUser func(error) (hostshim.Raw, error)
}

// Errno is implemented by handler errors that already are the declared
// error type. It is the identity tier of the user-error conversion: when a
// function's ErrorSpec registers no FromUser transform, returned domain
// errors must implement Errno or the call traps.
type Errno interface {
	error
	Errno() hostshim.Raw
}

// Ctx is the per-interface call context handed to every shim and handler.
// It owns the error conversion tables, the handle table, and the logger
// used for call instrumentation. Registration is not safe to race with
// calls; register everything before dispatching.
type Ctx struct {
	logger  *zap.Logger
	handles *handle.Table
	mu      sync.RWMutex
	specs   map[string]*ErrorSpec
}

// CtxOption configures a Ctx.
type CtxOption func(*Ctx)

// WithLogger sets the instrumentation logger for calls through this
// context.
func WithLogger(l *zap.Logger) CtxOption {
	return func(c *Ctx) { c.logger = l }
}

// WithHandles sets the handle table handlers resolve handles against.
func WithHandles(t *handle.Table) CtxOption {
	return func(c *Ctx) { c.handles = t }
}

// NewCtx creates a call context. Without options it logs through the
// package logger and owns a fresh handle table.
func NewCtx(opts ...CtxOption) *Ctx {
	c := &Ctx{
		specs: make(map[string]*ErrorSpec),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	if c.handles == nil {
		c.handles = handle.NewTable()
	}
	return c
}

// RegisterError installs the conversion capabilities for a declared error
// type. Success and FromGuest are mandatory; the language binding cannot
// encode outcomes without them.
func (c *Ctx) RegisterError(spec *ErrorSpec) error {
	if spec == nil || spec.Name == "" {
		return errors.InvalidInput(errors.PhaseSynth, "error spec needs a name")
	}
	if spec.Success == nil {
		return errors.New(errors.PhaseSynth, errors.KindRegistration).
			Detail("error type %q has no success value", spec.Name).
			Build()
	}
	if spec.FromGuest == nil {
		return errors.New(errors.PhaseSynth, errors.KindRegistration).
			Detail("error type %q has no guest-error conversion", spec.Name).
			Build()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.specs[spec.Name]; dup {
		return errors.Registration(errors.PhaseSynth, spec.Name,
			errors.InvalidInput(errors.PhaseSynth, "error type already registered"))
	}
	c.specs[spec.Name] = spec
	return nil
}

// Handles returns the context's handle table.
func (c *Ctx) Handles() *handle.Table { return c.handles }

func (c *Ctx) errorSpec(name string) *ErrorSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.specs[name]
}
