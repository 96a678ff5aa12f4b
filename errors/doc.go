// Package errors provides structured error types for the interpstate module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes the offending context identity, the
// resolved name when relevant, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInit, errors.KindResolution).
//		Context(uint64(id)).
//		Name("datetime-type").
//		Cause(lookupErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotInitialized(errors.PhaseResolve, uint64(id))
//	err := errors.CrossContext(errors.PhaseAlloc, uint64(owner), uint64(got))
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
