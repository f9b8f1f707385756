// Package errors provides structured error types for the protocol compiler and codec.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, protocol type name, source line
// and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnknownMember).
//		Path("DisplayBase", "clip").
//		Line(42).
//		Detail("no member %q", "rects").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownType(12, "Rect")
//	err := errors.OutOfBounds(path, offset, 4, len(buf))
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors compare equal under errors.Is when phase and kind match.
package errors
