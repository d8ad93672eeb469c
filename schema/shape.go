package schema

import (
	"fmt"

	"github.com/wippyai/hostshim/errors"
)

// Kind identifies one marshaling shape in the closed set.
type Kind uint8

const (
	KindU8 Kind = iota
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindUSize
	KindF32
	KindF64
	KindChar8
	KindEnum
	KindFlags
	KindInt
	KindString
	KindArray
	KindStruct
	KindUnion
	KindPointer
	KindConstPointer
	KindHandle
)

var kindNames = [...]string{
	KindU8:           "u8",
	KindS8:           "s8",
	KindU16:          "u16",
	KindS16:          "s16",
	KindU32:          "u32",
	KindS32:          "s32",
	KindU64:          "u64",
	KindS64:          "s64",
	KindUSize:        "usize",
	KindF32:          "f32",
	KindF64:          "f64",
	KindChar8:        "char8",
	KindEnum:         "enum",
	KindFlags:        "flags",
	KindInt:          "int",
	KindString:       "string",
	KindArray:        "array",
	KindStruct:       "struct",
	KindUnion:        "union",
	KindPointer:      "pointer",
	KindConstPointer: "const-pointer",
	KindHandle:       "handle",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether the kind is a by-value scalar needing no
// guest-memory step and no checked conversion payload.
func (k Kind) IsScalar() bool {
	return k <= KindChar8
}

// FlatCount returns how many core ABI words the kind occupies:
// 2 for length-delimited shapes, 1 for everything else.
func (k Kind) FlatCount() int {
	switch k {
	case KindString, KindArray:
		return 2
	default:
		return 1
	}
}

// Shape is the resolved marshaling shape of one interface type.
// Payload fields apply only to specific kinds; constructors below set them.
type Shape struct {
	Kind Kind

	// Name of the named interface type (enum, flags, struct, union, bounded
	// int, handle) for diagnostics. Empty for anonymous shapes.
	Name string

	// Max is the upper bound: the largest valid enum discriminant, or the
	// inclusive upper bound of a bounded int.
	Max int64

	// Min is the inclusive lower bound of a bounded int.
	Min int64

	// Mask holds the valid bits of a flags shape.
	Mask uint64

	// Size and ByteAlign describe the in-memory layout of struct and union
	// shapes. Derived from the kind for everything else.
	Size      uint32
	ByteAlign uint32

	// Elem is the element shape of an array, or the pointee shape of a
	// pointer.
	Elem *Shape

	// Type is the handle table type id for handle shapes.
	Type uint32
}

// Constructors for each shape family.

func ScalarShape(k Kind) *Shape {
	if !k.IsScalar() {
		panic(fmt.Sprintf("schema: %s is not a scalar kind", k))
	}
	return &Shape{Kind: k}
}

func EnumShape(name string, max int64) *Shape {
	return &Shape{Kind: KindEnum, Name: name, Max: max}
}

func FlagsShape(name string, mask uint64) *Shape {
	return &Shape{Kind: KindFlags, Name: name, Mask: mask}
}

func IntShape(name string, min, max int64) *Shape {
	return &Shape{Kind: KindInt, Name: name, Min: min, Max: max}
}

func StringShape() *Shape {
	return &Shape{Kind: KindString}
}

func ArrayShape(elem *Shape) *Shape {
	return &Shape{Kind: KindArray, Elem: elem}
}

func StructShape(name string, size, align uint32) *Shape {
	return &Shape{Kind: KindStruct, Name: name, Size: size, ByteAlign: align}
}

func UnionShape(name string, size, align uint32) *Shape {
	return &Shape{Kind: KindUnion, Name: name, Size: size, ByteAlign: align}
}

func PointerShape(pointee *Shape) *Shape {
	return &Shape{Kind: KindPointer, Elem: pointee}
}

func ConstPointerShape(pointee *Shape) *Shape {
	return &Shape{Kind: KindConstPointer, Elem: pointee}
}

func HandleShape(name string, typeID uint32) *Shape {
	return &Shape{Kind: KindHandle, Name: name, Type: typeID}
}

// FlatCount returns the number of core ABI words the shape occupies.
func (s *Shape) FlatCount() int { return s.Kind.FlatCount() }

// NeedsMemory reports whether a guest-memory step is required before the
// value is usable: either a validated view (string, array, pointer) or an
// eager read (struct, union).
func (s *Shape) NeedsMemory() bool {
	switch s.Kind {
	case KindString, KindArray, KindStruct, KindUnion, KindPointer, KindConstPointer:
		return true
	default:
		return false
	}
}

// Layout returns the byte size and alignment of the shape's in-memory
// representation. For enum, flags and bounded ints this is the width the
// writeback protocol uses.
func (s *Shape) Layout() (size, align uint32) {
	switch s.Kind {
	case KindU8, KindS8, KindChar8:
		return 1, 1
	case KindU16, KindS16:
		return 2, 2
	case KindU32, KindS32, KindUSize, KindF32, KindHandle:
		return 4, 4
	case KindU64, KindS64, KindF64:
		return 8, 8
	case KindEnum:
		return discLayout(uint64(s.Max))
	case KindFlags:
		return discLayout(s.Mask)
	case KindInt:
		if s.Min < 0 || uint64(s.Max) > 0xffffffff {
			return 8, 8
		}
		return discLayout(uint64(s.Max))
	case KindString, KindArray:
		return 8, 4 // offset + length pair
	case KindPointer, KindConstPointer:
		return 4, 4
	case KindStruct, KindUnion:
		return s.Size, s.ByteAlign
	default:
		return 0, 1
	}
}

func discLayout(max uint64) (size, align uint32) {
	switch {
	case max <= 0xff:
		return 1, 1
	case max <= 0xffff:
		return 2, 2
	case max <= 0xffffffff:
		return 4, 4
	default:
		return 8, 8
	}
}

// String renders the shape in interface notation for diagnostics.
func (s *Shape) String() string {
	switch s.Kind {
	case KindArray:
		return "array<" + s.Elem.String() + ">"
	case KindPointer:
		return "ptr<" + s.Elem.String() + ">"
	case KindConstPointer:
		return "const-ptr<" + s.Elem.String() + ">"
	case KindEnum, KindFlags, KindInt, KindStruct, KindUnion, KindHandle:
		if s.Name != "" {
			return s.Name
		}
		return s.Kind.String()
	default:
		return s.Kind.String()
	}
}

// Check validates a raw ABI word against a checked shape (enum, flags or
// bounded int) and returns the value with its wire extension stripped.
// Scalar and memory shapes have no word-level check and pass through.
func (s *Shape) Check(raw uint64) (uint64, error) {
	switch s.Kind {
	case KindEnum:
		if raw > uint64(s.Max) {
			return 0, errors.InvalidEnum(errors.PhaseMarshal, raw, s.String(), uint64(s.Max))
		}
		return raw, nil
	case KindFlags:
		if raw&^s.Mask != 0 {
			return 0, errors.InvalidFlags(errors.PhaseMarshal, raw, s.String(), s.Mask)
		}
		return raw, nil
	case KindInt:
		v := int64(raw)
		if v < s.Min || v > s.Max {
			return 0, errors.Overflow(errors.PhaseMarshal, v, s.String())
		}
		return raw, nil
	default:
		return raw, nil
	}
}
