package guest

import (
	"fmt"
	"unicode/utf8"

	hostshim "github.com/wippyai/hostshim"
	"github.com/wippyai/hostshim/errors"
)

// String is a lazy reference to a UTF-8 byte range in guest memory. It is
// constructed from the (offset, length) ABI pair without copying or
// validating; bounds and encoding are checked on first use.
type String struct {
	mem    hostshim.Memory
	off    uint32
	length uint32
}

// NewString builds the reference. No validation happens here.
func NewString(mem hostshim.Memory, off, length uint32) *String {
	return &String{mem: mem, off: off, length: length}
}

// Offset returns the byte offset of the range.
func (s *String) Offset() uint32 { return s.off }

// Len returns the byte length of the range.
func (s *String) Len() uint32 { return s.length }

// Bytes returns the raw byte range, bounds-checked but not
// encoding-checked.
func (s *String) Bytes() ([]byte, error) {
	return s.mem.Read(s.off, s.length)
}

// Load copies the range out as a Go string, validating bounds and UTF-8.
func (s *String) Load() (string, error) {
	b, err := s.mem.Read(s.off, s.length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseMemory, b)
	}
	return string(b), nil
}

// String renders a display form without touching memory. The trace layer
// relies on this being side-effect free.
func (s *String) String() string {
	return fmt.Sprintf("str(off=%#x, len=%d)", s.off, s.length)
}
