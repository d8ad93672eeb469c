// Package shim synthesizes trampoline functions between the guest's flat
// calling convention and typed host handlers.
//
// Synthesize consumes a resolved schema.Func and a Handler and produces a
// Shim: one callable that unflattens and validates the raw ABI words,
// invokes the handler, writes extra results back through guest output
// pointers, and encodes the outcome as the function's declared error type.
//
// Every failure converges on one of two sinks. If the function declares an
// error type, validation failures and handler domain errors are converted
// to that type's canonical encoding and returned to the guest. Everything
// else is a Trap, which aborts the call and carries no guest-visible
// payload.
//
// Each call is synchronous, runs to completion on the calling goroutine,
// and borrows guest memory exclusively for its duration.
package shim
