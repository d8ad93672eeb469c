// Package schema models resolved interface function descriptors and the
// closed set of marshaling shapes the shim layer understands.
//
// Schema ingestion (WIT or witx parsing) happens upstream; this package
// receives fully resolved types. Classify maps a WIT type onto a Shape, and
// Validate checks a Func descriptor's structural invariants before shim
// synthesis.
//
// A Shape answers three questions about an interface type: how many flat ABI
// words it occupies, whether using it requires a guest-memory step, and how
// a raw word is checked before it becomes a typed value.
package schema
