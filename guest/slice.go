package guest

import (
	"fmt"
	"math"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/schema"
)

// Slice is a lazy reference to a contiguous run of elements in guest
// memory, built from the (offset, count) ABI pair. Nothing is read at
// construction; an oversized run only fails when accessed.
type Slice struct {
	mem   hostshim.Memory
	elem  *schema.Shape
	off   uint32
	count uint32
}

// NewSlice builds the reference. No validation happens here.
func NewSlice(mem hostshim.Memory, elem *schema.Shape, off, count uint32) *Slice {
	return &Slice{mem: mem, elem: elem, off: off, count: count}
}

// Offset returns the byte offset of the first element.
func (s *Slice) Offset() uint32 { return s.off }

// Len returns the element count.
func (s *Slice) Len() uint32 { return s.count }

// Elem returns the element shape.
func (s *Slice) Elem() *schema.Shape { return s.elem }

// ByteLen returns the total byte length of the run. The product is
// computed in 64 bits so a guest-supplied count cannot wrap it back
// into the address space.
func (s *Slice) ByteLen() (uint32, error) {
	size, _ := s.elem.Layout()
	total := uint64(size) * uint64(s.count)
	if total > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseMemory, total, "array byte length")
	}
	return uint32(total), nil
}

// Bytes returns the full run, bounds-checked.
func (s *Slice) Bytes() ([]byte, error) {
	n, err := s.ByteLen()
	if err != nil {
		return nil, err
	}
	return s.mem.Read(s.off, n)
}

// Index returns a typed pointer to element i.
func (s *Slice) Index(i uint32) (*Ptr, error) {
	if i >= s.count {
		return nil, errors.OutOfBounds(errors.PhaseMemory, i, 1, s.count)
	}
	size, _ := s.elem.Layout()
	off := uint64(s.off) + uint64(i)*uint64(size)
	if off > math.MaxUint32 {
		return nil, errors.Overflow(errors.PhaseMemory, off, "array element offset")
	}
	return NewPtr(s.mem, s.elem, uint32(off)), nil
}

// String renders a display form without touching memory.
func (s *Slice) String() string {
	return fmt.Sprintf("array<%s>(off=%#x, len=%d)", s.elem, s.off, s.count)
}
