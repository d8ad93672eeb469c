// Package dispatch maps imported function names to synthesized shims and
// binds them onto a wazero runtime as a host module. A Table owns one
// interface's worth of registrations; BindModule exports every entry with
// an all-i64 flat signature and lets traps surface as wasm traps.
package dispatch
