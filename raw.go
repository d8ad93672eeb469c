package hostshim

import "math"

// Raw is one core ABI value: a machine word crossing the sandbox boundary.
// Narrow integers arrive zero- or sign-extended to the full word; floats
// arrive as their IEEE 754 bit pattern.
type Raw uint64

// RawU32 builds a word from a 32-bit value.
func RawU32(v uint32) Raw { return Raw(v) }

// RawI32 builds a word from a signed 32-bit value, sign-extended.
func RawI32(v int32) Raw { return Raw(uint64(int64(v))) }

// RawI64 builds a word from a signed 64-bit value.
func RawI64(v int64) Raw { return Raw(v) }

// RawF32 builds a word from a float's bit pattern.
func RawF32(v float32) Raw { return Raw(math.Float32bits(v)) }

// RawF64 builds a word from a double's bit pattern.
func RawF64(v float64) Raw { return Raw(math.Float64bits(v)) }

// U32 truncates the word to its low 32 bits.
func (r Raw) U32() uint32 { return uint32(r) }

// I32 reinterprets the low 32 bits as signed.
func (r Raw) I32() int32 { return int32(uint32(r)) }

// I64 reinterprets the full word as signed.
func (r Raw) I64() int64 { return int64(r) }

// F32 reinterprets the low 32 bits as a float.
func (r Raw) F32() float32 { return math.Float32frombits(uint32(r)) }

// F64 reinterprets the full word as a double.
func (r Raw) F64() float64 { return math.Float64frombits(uint64(r)) }
