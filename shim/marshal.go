package shim

import (
	"fmt"

	"go.uber.org/zap"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/guest"
	"github.com/wippyai/hostshim/handle"
	"github.com/wippyai/hostshim/schema"
)

// marshalArg converts one parameter's ABI word(s) into the interface-typed
// value the handler sees. words starts at the parameter's first slot and
// holds at least Shape.FlatCount() entries.
//
// Narrow unsigned values arrive zero-extended and narrow signed values
// sign-extended; the checked conversions below reject anything else so a
// producer bug surfaces as a validation error instead of silent truncation.
func marshalArg(mem hostshim.Memory, shape *schema.Shape, words []hostshim.Raw) (any, error) {
	raw := words[0]
	switch shape.Kind {
	case schema.KindU8, schema.KindChar8:
		if raw > 0xff {
			return nil, errors.Overflow(errors.PhaseMarshal, uint64(raw), shape.Kind.String())
		}
		return uint8(raw), nil
	case schema.KindU16:
		if raw > 0xffff {
			return nil, errors.Overflow(errors.PhaseMarshal, uint64(raw), "u16")
		}
		return uint16(raw), nil
	case schema.KindS8:
		v := int64(raw.I32())
		if v < -0x80 || v > 0x7f {
			return nil, errors.Overflow(errors.PhaseMarshal, v, "s8")
		}
		return int8(v), nil
	case schema.KindS16:
		v := int64(raw.I32())
		if v < -0x8000 || v > 0x7fff {
			return nil, errors.Overflow(errors.PhaseMarshal, v, "s16")
		}
		return int16(v), nil
	case schema.KindU32:
		return raw.U32(), nil
	case schema.KindS32:
		return raw.I32(), nil
	case schema.KindU64:
		return uint64(raw), nil
	case schema.KindS64:
		return raw.I64(), nil
	case schema.KindUSize:
		return raw.U32(), nil
	case schema.KindF32:
		return raw.F32(), nil
	case schema.KindF64:
		return raw.F64(), nil
	case schema.KindEnum, schema.KindFlags:
		v, err := shape.Check(uint64(raw))
		if err != nil {
			return nil, err
		}
		return v, nil
	case schema.KindInt:
		v, err := shape.Check(uint64(raw))
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case schema.KindString:
		return guest.NewString(mem, raw.U32(), words[1].U32()), nil
	case schema.KindArray:
		return guest.NewSlice(mem, shape.Elem, raw.U32(), words[1].U32()), nil
	case schema.KindStruct, schema.KindUnion:
		// Eager read: the value's shape is not expressible as ABI scalars.
		return guest.NewPtr(mem, shape, raw.U32()).Read()
	case schema.KindPointer, schema.KindConstPointer:
		return guest.NewPtr(mem, shape.Elem, raw.U32()), nil
	case schema.KindHandle:
		return handle.Handle(raw.U32()), nil
	default:
		return nil, errors.Unsupported(errors.PhaseMarshal,
			fmt.Sprintf("no marshaling for shape %s", shape))
	}
}

// traceField renders one marshaled value for the argument trace event.
// Values with a display form (string and slice views, pointers, handles)
// use it; everything else is logged in debug form.
func traceField(name string, v any) zap.Field {
	if s, ok := v.(fmt.Stringer); ok {
		return zap.Stringer(name, s)
	}
	if b, ok := v.([]byte); ok {
		return zap.Binary(name, b)
	}
	return zap.Any(name, v)
}
