package main

import (
	"encoding/binary"
	"fmt"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/dispatch"
	hserrors "github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/guest"
	"github.com/wippyai/hostshim/handle"
	"github.com/wippyai/hostshim/schema"
	"github.com/wippyai/hostshim/shim"
)

// The built-in kvstore interface. It exists so the tool has something real
// to list, emit, and call: its functions cover every shape family the
// marshaler supports, including a diverging one.

const (
	errnoSuccess uint32 = 0
	errnoBadf    uint32 = 8
	errnoFault   uint32 = 21
	errnoInval   uint32 = 28
	errnoNoent   uint32 = 44
)

const storeTypeID = 1

// kvErrno is the sample interface's domain error.
type kvErrno uint32

func (e kvErrno) Error() string       { return fmt.Sprintf("errno(%d)", uint32(e)) }
func (e kvErrno) Errno() hostshim.Raw { return hostshim.Raw(e) }

func errnoSpec() *shim.ErrorSpec {
	return &shim.ErrorSpec{
		Name:    "errno",
		Success: func() hostshim.Raw { return hostshim.Raw(errnoSuccess) },
		FromGuest: func(e *hserrors.Error) hostshim.Raw {
			switch e.Kind {
			case hserrors.KindOutOfBounds, hserrors.KindMisaligned:
				return hostshim.Raw(errnoFault)
			default:
				return hostshim.Raw(errnoInval)
			}
		},
	}
}

func errnoResult() schema.Result {
	return schema.Result{Name: "errno", Shape: schema.EnumShape("errno", 76), ErrType: "errno"}
}

var fdShape = schema.HandleShape("fd", storeTypeID)

// kvstatShape describes the stat record: size u64 followed by entries u32
// and padding to the u64 alignment.
var kvstatShape = schema.StructShape("kvstat", 16, 8)

func sampleFuncs() []*schema.Func {
	return []*schema.Func{
		{
			Name: "open",
			Params: []schema.Param{
				{Name: "name", Shape: schema.StringShape()},
				{Name: "oflags", Shape: schema.FlagsShape("oflags", 0b11)},
			},
			Results: []schema.Result{
				errnoResult(),
				{Name: "fd", Shape: fdShape},
			},
		},
		{
			Name: "get",
			Params: []schema.Param{
				{Name: "fd", Shape: fdShape},
				{Name: "key", Shape: schema.StringShape()},
			},
			Results: []schema.Result{
				errnoResult(),
				{Name: "size", Shape: schema.ScalarShape(schema.KindU64)},
			},
		},
		{
			Name: "put",
			Params: []schema.Param{
				{Name: "fd", Shape: fdShape},
				{Name: "key", Shape: schema.StringShape()},
				{Name: "value", Shape: schema.ArrayShape(schema.ScalarShape(schema.KindU8))},
			},
			Results: []schema.Result{errnoResult()},
		},
		{
			Name: "stat",
			Params: []schema.Param{
				{Name: "fd", Shape: fdShape},
				{Name: "buf", Shape: schema.PointerShape(kvstatShape)},
			},
			Results: []schema.Result{errnoResult()},
		},
		{
			Name: "close",
			Params: []schema.Param{
				{Name: "fd", Shape: fdShape},
			},
			Results: []schema.Result{errnoResult()},
		},
		{
			Name:     "abort",
			Params:   []schema.Param{{Name: "code", Shape: schema.ScalarShape(schema.KindU32)}},
			NoReturn: true,
		},
	}
}

// kvStore backs the sample interface with plain maps keyed by handle.
type kvStore struct{}

type storeState struct {
	data map[string][]byte
}

func (storeState) Drop() {}

func newSampleTable() (*dispatch.Table, error) {
	ctx := shim.NewCtx()
	if err := ctx.RegisterError(errnoSpec()); err != nil {
		return nil, err
	}

	kv := kvStore{}
	tbl := dispatch.NewTable("kvstore", ctx)
	handlers := map[string]shim.Handler{
		"open":  kv.open,
		"get":   kv.get,
		"put":   kv.put,
		"stat":  kv.stat,
		"close": kv.close,
		"abort": kv.abort,
	}
	for _, fn := range sampleFuncs() {
		if err := tbl.Register(fn, handlers[fn.Name]); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func (kvStore) open(ctx *shim.Ctx, args []any) ([]any, error) {
	name := args[0].(*guest.String)
	if _, err := name.Load(); err != nil {
		return nil, kvErrno(errnoFault)
	}
	st := storeState{data: make(map[string][]byte)}
	fd := ctx.Handles().Insert(storeTypeID, st)
	return []any{fd}, nil
}

func (kvStore) state(ctx *shim.Ctx, v any) (storeState, error) {
	fd, ok := v.(handle.Handle)
	if !ok {
		return storeState{}, kvErrno(errnoBadf)
	}
	raw, ok := ctx.Handles().GetTyped(fd, storeTypeID)
	if !ok {
		return storeState{}, kvErrno(errnoBadf)
	}
	return raw.(storeState), nil
}

func (kv kvStore) get(ctx *shim.Ctx, args []any) ([]any, error) {
	st, err := kv.state(ctx, args[0])
	if err != nil {
		return nil, err
	}
	key, err := args[1].(*guest.String).Load()
	if err != nil {
		return nil, kvErrno(errnoFault)
	}
	value, ok := st.data[key]
	if !ok {
		return nil, kvErrno(errnoNoent)
	}
	return []any{uint64(len(value))}, nil
}

func (kv kvStore) put(ctx *shim.Ctx, args []any) ([]any, error) {
	st, err := kv.state(ctx, args[0])
	if err != nil {
		return nil, err
	}
	key, err := args[1].(*guest.String).Load()
	if err != nil {
		return nil, kvErrno(errnoFault)
	}
	value, err := args[2].(*guest.Slice).Bytes()
	if err != nil {
		return nil, kvErrno(errnoFault)
	}
	st.data[key] = append([]byte(nil), value...)
	return nil, nil
}

func (kv kvStore) stat(ctx *shim.Ctx, args []any) ([]any, error) {
	st, err := kv.state(ctx, args[0])
	if err != nil {
		return nil, err
	}
	total := uint64(0)
	for _, v := range st.data {
		total += uint64(len(v))
	}
	buf := args[1].(*guest.Ptr)
	raw := make([]byte, kvstatShape.Size)
	binary.LittleEndian.PutUint64(raw[0:], total)
	binary.LittleEndian.PutUint32(raw[8:], uint32(len(st.data)))
	if err := buf.Write(raw); err != nil {
		return nil, kvErrno(errnoFault)
	}
	return nil, nil
}

func (kv kvStore) close(ctx *shim.Ctx, args []any) ([]any, error) {
	fd := args[0].(handle.Handle)
	if _, ok := ctx.Handles().Remove(fd); !ok {
		return nil, kvErrno(errnoBadf)
	}
	return nil, nil
}

func (kvStore) abort(_ *shim.Ctx, args []any) ([]any, error) {
	return nil, fmt.Errorf("guest abort with code %d", args[0].(uint32))
}
