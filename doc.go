// Package hostshim synthesizes the trampoline layer between a sandboxed
// guest's flat calling convention and host handlers that operate on richly
// typed values.
//
// A guest crosses the sandbox boundary with primitive machine words only.
// Host handlers want enums, structs, strings, slices and handles. hostshim
// consumes a resolved interface descriptor and produces, per function, a
// shim that unflattens and validates arguments, invokes the handler, writes
// extra results back through guest output pointers, and funnels every
// failure into the function's declared error type.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	hostshim/        Root package with the Memory interface and the Raw ABI word
//	├── schema/      Interface descriptor model and type-shape classification
//	├── guest/       Bounds-checked views into guest linear memory
//	├── shim/        Shim synthesis: marshaling, error translation, tracing
//	├── emit/        Textual emitters rendering a descriptor to source code
//	├── dispatch/    Name-keyed shim table and wazero host-module binding
//	├── handle/      Handle table backing the handle shape
//	└── errors/      Structured error types for diagnostics
//
// # Quick Start
//
// Describe a function, synthesize its shim, and call it:
//
//	fn := &schema.Func{
//	    Name: "get",
//	    Params: []schema.Param{
//	        {Name: "idx", Shape: schema.ScalarShape(schema.KindU32)},
//	    },
//	    Results: []schema.Result{
//	        {Name: "errno", Shape: schema.EnumShape("errno", 76), ErrType: "errno"},
//	        {Name: "value", Shape: schema.ScalarShape(schema.KindU8)},
//	    },
//	}
//
//	s, err := shim.Synthesize("store", fn, handler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ret, ok, trap := s.Call(ctx, mem, hostshim.Raw(3), hostshim.Raw(outPtr))
//
// # Error Model
//
// Failures fall into three tiers. Validation errors (malformed guest data)
// convert through the declared error type's guest-error conversion. Handler
// domain errors convert through an optional registered user-error
// conversion, or must already encode themselves as the declared error type.
// Anything that cannot reach a declared error type is a trap, which aborts
// the call and, by contract, the enclosing guest execution.
//
// # Memory Model
//
// The shim borrows guest memory for the duration of exactly one call and
// assumes no concurrent mutation of the bytes it touches. Enforcing that
// exclusivity belongs to the Memory implementation, not to this layer.
package hostshim
