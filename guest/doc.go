// Package guest provides bounds-checked views into guest linear memory.
//
// A Region is a concrete little-endian memory implementation; any
// hostshim.Memory works equally. Ptr, String and Slice are transient typed
// references built from raw ABI offsets. They perform no I/O at
// construction: a view over a bad offset is legal to hold and fails only
// when read or written, which keeps validation errors on the same path as
// every other marshaling failure.
package guest
