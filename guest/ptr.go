package guest

import (
	"fmt"
	"math"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/schema"
)

// Ptr is a transient typed reference into guest memory: an offset plus the
// shape stored there. It performs no I/O until Read or Write, and must not
// outlive the call that produced it.
type Ptr struct {
	mem   hostshim.Memory
	shape *schema.Shape
	off   uint32
}

// NewPtr builds a typed pointer at a byte offset. The offset is not
// validated here; validation happens on first access.
func NewPtr(mem hostshim.Memory, shape *schema.Shape, off uint32) *Ptr {
	return &Ptr{mem: mem, shape: shape, off: off}
}

// Offset returns the byte offset the pointer addresses.
func (p *Ptr) Offset() uint32 { return p.off }

// Shape returns the pointee shape.
func (p *Ptr) Shape() *schema.Shape { return p.shape }

// String renders a display form without touching memory.
func (p *Ptr) String() string {
	return fmt.Sprintf("%s@%#x", p.shape, p.off)
}

func (p *Ptr) checkAlign() error {
	_, align := p.shape.Layout()
	if align > 1 && p.off%align != 0 {
		return errors.Misaligned(errors.PhaseMemory, p.off, align)
	}
	return nil
}

// Read loads the pointee from guest memory. Scalars come back as their
// exact Go type, enums and flags as uint64, bounded ints as int64, structs
// and unions as a detached byte copy of their full representation, and
// nested pointers as another Ptr.
func (p *Ptr) Read() (any, error) {
	if err := p.checkAlign(); err != nil {
		return nil, err
	}
	switch p.shape.Kind {
	case schema.KindU8, schema.KindChar8:
		return p.mem.ReadU8(p.off)
	case schema.KindS8:
		v, err := p.mem.ReadU8(p.off)
		return int8(v), err
	case schema.KindU16:
		return p.mem.ReadU16(p.off)
	case schema.KindS16:
		v, err := p.mem.ReadU16(p.off)
		return int16(v), err
	case schema.KindU32, schema.KindUSize:
		return p.mem.ReadU32(p.off)
	case schema.KindS32:
		v, err := p.mem.ReadU32(p.off)
		return int32(v), err
	case schema.KindU64:
		return p.mem.ReadU64(p.off)
	case schema.KindS64:
		v, err := p.mem.ReadU64(p.off)
		return int64(v), err
	case schema.KindF32:
		v, err := p.mem.ReadU32(p.off)
		return math.Float32frombits(v), err
	case schema.KindF64:
		v, err := p.mem.ReadU64(p.off)
		return math.Float64frombits(v), err
	case schema.KindEnum, schema.KindFlags, schema.KindInt:
		raw, err := p.readWidth()
		if err != nil {
			return nil, err
		}
		checked, err := p.shape.Check(raw)
		if err != nil {
			return nil, err
		}
		if p.shape.Kind == schema.KindInt {
			return int64(checked), nil
		}
		return checked, nil
	case schema.KindStruct, schema.KindUnion:
		view, err := p.mem.Read(p.off, p.shape.Size)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(view))
		copy(out, view)
		return out, nil
	case schema.KindPointer, schema.KindConstPointer:
		v, err := p.mem.ReadU32(p.off)
		if err != nil {
			return nil, err
		}
		return NewPtr(p.mem, p.shape.Elem, v), nil
	case schema.KindHandle:
		return p.mem.ReadU32(p.off)
	default:
		return nil, errors.Unsupported(errors.PhaseMemory,
			fmt.Sprintf("cannot read %s through a pointer", p.shape))
	}
}

// Write stores a value through the pointer. Only shapes with a fixed,
// statically known write size are supported; the shim layer relies on this
// for the result writeback protocol.
func (p *Ptr) Write(v any) error {
	if err := p.checkAlign(); err != nil {
		return err
	}
	switch p.shape.Kind {
	case schema.KindU8, schema.KindChar8, schema.KindU16, schema.KindU32,
		schema.KindUSize, schema.KindU64, schema.KindHandle:
		u, ok := coerceToUint64(v)
		size, _ := p.shape.Layout()
		if !ok || !fitsUnsigned(u, uint(size)*8) {
			return p.mismatch(v)
		}
		return p.writeWidth(u)
	case schema.KindS8, schema.KindS16, schema.KindS32, schema.KindS64:
		i, ok := coerceToInt64(v)
		size, _ := p.shape.Layout()
		if !ok || !fitsSigned(i, uint(size)*8) {
			return p.mismatch(v)
		}
		return p.writeWidth(uint64(i))
	case schema.KindF32:
		f, ok := v.(float32)
		if !ok {
			return p.mismatch(v)
		}
		return p.mem.WriteU32(p.off, math.Float32bits(f))
	case schema.KindF64:
		f, ok := v.(float64)
		if !ok {
			return p.mismatch(v)
		}
		return p.mem.WriteU64(p.off, math.Float64bits(f))
	case schema.KindEnum, schema.KindFlags, schema.KindInt:
		var raw uint64
		if i, ok := coerceToInt64(v); ok && i < 0 {
			raw = uint64(i)
		} else if u, ok := coerceToUint64(v); ok {
			raw = u
		} else {
			return p.mismatch(v)
		}
		if _, err := p.shape.Check(raw); err != nil {
			return err
		}
		return p.writeWidth(raw)
	case schema.KindStruct, schema.KindUnion:
		b, ok := v.([]byte)
		if !ok {
			return p.mismatch(v)
		}
		if uint32(len(b)) != p.shape.Size {
			return errors.New(errors.PhaseMemory, errors.KindTypeMismatch).
				Shape(p.shape.String()).
				Detail("value is %d bytes, shape is %d", len(b), p.shape.Size).
				Build()
		}
		return p.mem.Write(p.off, b)
	default:
		return errors.Unsupported(errors.PhaseMemory,
			fmt.Sprintf("cannot write %s through a pointer", p.shape))
	}
}

func (p *Ptr) mismatch(v any) error {
	return errors.New(errors.PhaseMemory, errors.KindTypeMismatch).
		Shape(p.shape.String()).
		Value(v).
		Detail("value %v (%T) does not fit", v, v).
		Build()
}

func (p *Ptr) readWidth() (uint64, error) {
	size, _ := p.shape.Layout()
	switch size {
	case 1:
		v, err := p.mem.ReadU8(p.off)
		return uint64(v), err
	case 2:
		v, err := p.mem.ReadU16(p.off)
		return uint64(v), err
	case 4:
		v, err := p.mem.ReadU32(p.off)
		return uint64(v), err
	default:
		return p.mem.ReadU64(p.off)
	}
}

func (p *Ptr) writeWidth(v uint64) error {
	size, _ := p.shape.Layout()
	switch size {
	case 1:
		return p.mem.WriteU8(p.off, uint8(v))
	case 2:
		return p.mem.WriteU16(p.off, uint16(v))
	case 4:
		return p.mem.WriteU32(p.off, uint32(v))
	default:
		return p.mem.WriteU64(p.off, v)
	}
}
