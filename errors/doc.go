// Package errors provides structured error types for the hostshim library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the function and location tags the shim
// layer uses for diagnostics, plus the shape name and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindOverflow).
//		Shape("u8").
//		Detail("word 256 does not fit").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Overflow(errors.PhaseMarshal, 256, "u8")
//	err := errors.OutOfBounds(errors.PhaseWriteback, 4096, 8, 1024)
//
// Marshaling failures are wrapped with InFunc, which records the interface
// function and the argument or result position that failed. All errors
// implement the standard error interface and support errors.Is/As.
package errors
