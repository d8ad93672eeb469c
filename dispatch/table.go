package dispatch

import (
	"sort"
	"sync"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/schema"
	"github.com/wippyai/hostshim/shim"
)

// Table is a name-keyed registry of synthesized shims for one interface.
// Registration happens during setup; lookups and invocations are safe for
// concurrent use afterwards.
type Table struct {
	iface string
	ctx   *shim.Ctx

	mu    sync.RWMutex
	shims map[string]*shim.Shim
}

// NewTable creates an empty table for the named interface. Every shim
// registered on it dispatches against ctx.
func NewTable(iface string, ctx *shim.Ctx) *Table {
	return &Table{
		iface: iface,
		ctx:   ctx,
		shims: make(map[string]*shim.Shim),
	}
}

// Interface returns the name the table was created with. BindModule uses
// it as the host module name.
func (t *Table) Interface() string { return t.iface }

// Ctx returns the dispatch context shims on this table run against.
func (t *Table) Ctx() *shim.Ctx { return t.ctx }

// Register synthesizes a shim for fn bound to h and stores it under the
// function's name. Registering the same name twice is an error.
func (t *Table) Register(fn *schema.Func, h shim.Handler) error {
	s, err := shim.Synthesize(t.iface, fn, h)
	if err != nil {
		return errors.Registration(errors.PhaseDispatch, fn.Name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.shims[fn.Name]; dup {
		return errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Func(fn.Name).
			Detail("function already registered on %q", t.iface).
			Build()
	}
	t.shims[fn.Name] = s
	return nil
}

// Lookup returns the shim registered under name.
func (t *Table) Lookup(name string) (*shim.Shim, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.shims[name]
	return s, ok
}

// Names returns the registered function names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.shims))
	for name := range t.shims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke calls the named shim against mem. An unknown name is a trap, the
// same way a missing import would be.
func (t *Table) Invoke(name string, mem hostshim.Memory, words ...hostshim.Raw) (hostshim.Raw, bool, *shim.Trap) {
	s, ok := t.Lookup(name)
	if !ok {
		return 0, false, &shim.Trap{
			Msg:   "unknown function " + t.iface + "." + name,
			Cause: errors.NotFound(errors.PhaseDispatch, "function", name),
		}
	}
	return s.Call(t.ctx, mem, words...)
}
