package schema

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostshim/errors"
)

// Classify maps a resolved WIT type onto its marshaling shape. It is total
// over every type the resolver can produce that is expressible in the closed
// shape set; anything else returns a structured classification error rather
// than panicking.
func Classify(t wit.Type) (*Shape, error) {
	return classify(t, "")
}

func classify(t wit.Type, name string) (*Shape, error) {
	switch v := t.(type) {
	case wit.U8:
		return ScalarShape(KindU8), nil
	case wit.S8:
		return ScalarShape(KindS8), nil
	case wit.U16:
		return ScalarShape(KindU16), nil
	case wit.S16:
		return ScalarShape(KindS16), nil
	case wit.U32:
		return ScalarShape(KindU32), nil
	case wit.S32:
		return ScalarShape(KindS32), nil
	case wit.U64:
		return ScalarShape(KindU64), nil
	case wit.S64:
		return ScalarShape(KindS64), nil
	case wit.F32:
		return ScalarShape(KindF32), nil
	case wit.F64:
		return ScalarShape(KindF64), nil
	case wit.Bool:
		// Bounded int so a malformed word is a validation error, not a
		// silent truncation.
		return IntShape("bool", 0, 1), nil
	case wit.Char:
		return IntShape("char", 0, 0x10ffff), nil
	case wit.String:
		return StringShape(), nil
	case *wit.TypeDef:
		return classifyTypeDef(v, name)
	default:
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Shape(name).
			Detail("no shape for %T", t).
			Build()
	}
}

func classifyTypeDef(t *wit.TypeDef, name string) (*Shape, error) {
	if t.Name != nil {
		name = *t.Name
	}
	switch k := t.Kind.(type) {
	case *wit.Enum:
		return EnumShape(name, int64(len(k.Cases))-1), nil
	case *wit.Flags:
		n := len(k.Flags)
		if n > 64 {
			return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
				Shape(name).
				Detail("flags type exceeds maximum 64 flags, got %d", n).
				Build()
		}
		var mask uint64
		if n == 64 {
			mask = ^uint64(0)
		} else {
			mask = (uint64(1) << n) - 1
		}
		return FlagsShape(name, mask), nil
	case *wit.Record:
		size, align := layoutOf(t)
		return StructShape(name, size, align), nil
	case *wit.Tuple:
		size, align := layoutOf(t)
		return StructShape(name, size, align), nil
	case *wit.Variant:
		size, align := layoutOf(t)
		return UnionShape(name, size, align), nil
	case *wit.Option:
		size, align := layoutOf(t)
		return UnionShape(name, size, align), nil
	case *wit.Result:
		size, align := layoutOf(t)
		return UnionShape(name, size, align), nil
	case *wit.List:
		elem, err := classify(k.Type, "")
		if err != nil {
			return nil, err
		}
		return ArrayShape(elem), nil
	case *wit.Own:
		return HandleShape(name, 0), nil
	case *wit.Borrow:
		return HandleShape(name, 0), nil
	case wit.Type:
		// Type alias: classify through.
		return classify(k, name)
	default:
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupported).
			Shape(name).
			Detail("no shape for type definition kind %T", t.Kind).
			Build()
	}
}

// layoutOf computes the guest-memory size and alignment of a WIT type,
// following canonical layout: fields aligned in order, variants as
// discriminant plus max payload.
func layoutOf(t wit.Type) (size, align uint32) {
	switch v := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return 1, 1
	case wit.U16, wit.S16:
		return 2, 2
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return 4, 4
	case wit.U64, wit.S64, wit.F64:
		return 8, 8
	case wit.String:
		return 8, 4 // offset + length pair
	case *wit.TypeDef:
		return layoutOfTypeDef(v)
	default:
		return 0, 1
	}
}

func layoutOfTypeDef(t *wit.TypeDef) (size, align uint32) {
	switch k := t.Kind.(type) {
	case *wit.Record:
		return layoutOfFields(recordTypes(k))
	case *wit.Tuple:
		return layoutOfFields(k.Types)
	case *wit.Variant:
		types := make([]wit.Type, 0, len(k.Cases))
		for _, c := range k.Cases {
			if c.Type != nil {
				types = append(types, c.Type)
			}
		}
		return layoutOfVariant(len(k.Cases), types)
	case *wit.Option:
		return layoutOfVariant(2, []wit.Type{k.Type})
	case *wit.Result:
		var types []wit.Type
		if k.OK != nil {
			types = append(types, k.OK)
		}
		if k.Err != nil {
			types = append(types, k.Err)
		}
		return layoutOfVariant(2, types)
	case *wit.Enum:
		s, _ := discLayout(uint64(len(k.Cases)) - 1)
		return s, s
	case *wit.Flags:
		n := len(k.Flags)
		var max uint64
		if n >= 64 {
			max = ^uint64(0)
		} else {
			max = (uint64(1) << n) - 1
		}
		s, _ := discLayout(max)
		return s, s
	case *wit.List:
		return 8, 4
	case *wit.Own, *wit.Borrow:
		return 4, 4
	case wit.Type:
		return layoutOf(k)
	default:
		return 0, 1
	}
}

func recordTypes(r *wit.Record) []wit.Type {
	types := make([]wit.Type, len(r.Fields))
	for i, f := range r.Fields {
		types[i] = f.Type
	}
	return types
}

func layoutOfFields(types []wit.Type) (size, align uint32) {
	if len(types) == 0 {
		return 0, 1
	}
	offset := uint32(0)
	maxAlign := uint32(1)
	for _, ft := range types {
		fs, fa := layoutOf(ft)
		offset = alignTo(offset, fa)
		offset += fs
		if fa > maxAlign {
			maxAlign = fa
		}
	}
	return alignTo(offset, maxAlign), maxAlign
}

func layoutOfVariant(cases int, payloads []wit.Type) (size, align uint32) {
	if cases == 0 {
		return 0, 1
	}
	discSize, _ := discLayout(uint64(cases) - 1)
	maxAlign := discSize
	maxSize := uint32(0)
	for _, pt := range payloads {
		ps, pa := layoutOf(pt)
		if pa > maxAlign {
			maxAlign = pa
		}
		if ps > maxSize {
			maxSize = ps
		}
	}
	payloadOffset := alignTo(discSize, maxAlign)
	return alignTo(payloadOffset+maxSize, maxAlign), maxAlign
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
