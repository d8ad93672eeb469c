// Package emit renders function descriptors into source code for a target
// language. Each backend implements Emitter over the same descriptor model
// the runtime synthesizer consumes, so a generated binding and a
// synthesized closure always agree on marshaling semantics.
//
// The Go backend produces a typed handler interface, the descriptor
// literals, and a registration function that adapts the interface onto the
// dispatch table.
package emit
