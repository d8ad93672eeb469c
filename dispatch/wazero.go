package dispatch

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/shim"
)

// WazeroMemory adapts a wazero module memory to the Memory interface.
// wazero reports bounds violations as a false ok value; the adapter turns
// those into out-of-bounds errors so shims can encode them.
func WazeroMemory(mem api.Memory) hostshim.Memory {
	return wazeroMemory{mem}
}

type wazeroMemory struct {
	mem api.Memory
}

func (w wazeroMemory) oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseMemory, offset, length, w.mem.Size())
}

func (w wazeroMemory) Read(offset, length uint32) ([]byte, error) {
	b, ok := w.mem.Read(offset, length)
	if !ok {
		return nil, w.oob(offset, length)
	}
	return b, nil
}

func (w wazeroMemory) Write(offset uint32, data []byte) error {
	if !w.mem.Write(offset, data) {
		return w.oob(offset, uint32(len(data)))
	}
	return nil
}

func (w wazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := w.mem.ReadByte(offset)
	if !ok {
		return 0, w.oob(offset, 1)
	}
	return v, nil
}

func (w wazeroMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := w.mem.ReadUint16Le(offset)
	if !ok {
		return 0, w.oob(offset, 2)
	}
	return v, nil
}

func (w wazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := w.mem.ReadUint32Le(offset)
	if !ok {
		return 0, w.oob(offset, 4)
	}
	return v, nil
}

func (w wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := w.mem.ReadUint64Le(offset)
	if !ok {
		return 0, w.oob(offset, 8)
	}
	return v, nil
}

func (w wazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !w.mem.WriteByte(offset, value) {
		return w.oob(offset, 1)
	}
	return nil
}

func (w wazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !w.mem.WriteUint16Le(offset, value) {
		return w.oob(offset, 2)
	}
	return nil
}

func (w wazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !w.mem.WriteUint32Le(offset, value) {
		return w.oob(offset, 4)
	}
	return nil
}

func (w wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !w.mem.WriteUint64Le(offset, value) {
		return w.oob(offset, 8)
	}
	return nil
}

// BindModule instantiates every shim on t as a host function exported from
// a module named after the table's interface. Flat values cross the
// boundary as i64 in both directions. A trap panics out of the host
// function; wazero converts the panic into a wasm trap for the guest.
func BindModule(ctx context.Context, r wazero.Runtime, t *Table) (api.Module, error) {
	builder := r.NewHostModuleBuilder(t.Interface())
	for _, name := range t.Names() {
		s, _ := t.Lookup(name)

		params := make([]api.ValueType, s.NumWords())
		for i := range params {
			params[i] = api.ValueTypeI64
		}
		var results []api.ValueType
		if s.HasReturn() {
			results = []api.ValueType{api.ValueTypeI64}
		}

		builder.NewFunctionBuilder().
			WithGoModuleFunction(hostFunc(t.Ctx(), s), params, results).
			Export(name)
	}
	return builder.Instantiate(ctx)
}

func hostFunc(sctx *shim.Ctx, s *shim.Shim) api.GoModuleFunc {
	return func(_ context.Context, mod api.Module, stack []uint64) {
		// The stack is sized max(params, results), so a nullary function
		// with a return slot still hands us one word. Copy only the
		// declared parameter words.
		words := make([]hostshim.Raw, s.NumWords())
		for i := range words {
			words[i] = hostshim.Raw(stack[i])
		}
		ret, ok, trap := s.Call(sctx, WazeroMemory(mod.Memory()), words...)
		if trap != nil {
			panic(trap)
		}
		if ok {
			stack[0] = uint64(ret)
		}
	}
}
