package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // protocol source parsing
	PhaseResolve  Phase = "resolve"  // type registration and name resolution
	PhaseCompile  Phase = "compile"  // size analysis and plan construction
	PhaseGenerate Phase = "generate" // artifact rendering
	PhaseDecode   Phase = "decode"   // wire to memory
	PhaseEncode   Phase = "encode"   // memory to wire
	PhaseDispatch Phase = "dispatch" // channel/message lookup
	PhaseConfig   Phase = "config"   // driver configuration
)

// Kind categorizes the error
type Kind string

const (
	KindSyntax              Kind = "syntax"
	KindUnknownType         Kind = "unknown_type"
	KindDuplicateType       Kind = "duplicate_type"
	KindUnknownMember       Kind = "unknown_member"
	KindUnknownAttribute    Kind = "unknown_attribute"
	KindDuplicateID         Kind = "duplicate_id"
	KindUnimplemented       Kind = "unimplemented"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindNullPointer         Kind = "null_pointer"
	KindAllocation          Kind = "allocation"
	KindMalformed           Kind = "malformed"
	KindInvalidDiscriminant Kind = "invalid_discriminant"
	KindNoSuchMessage       Kind = "no_such_message"
	KindFieldMissing        Kind = "field_missing"
	KindTypeMismatch        Kind = "type_mismatch"
	KindOverflow            Kind = "overflow"
	KindInvalidInput        Kind = "invalid_input"
)

// Error is the structured error type used throughout the compiler and codec
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
	Line   int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the protocol type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Line sets the source line
func (b *Builder) Line(line int) *Builder {
	b.err.Line = line
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Syntax creates a source syntax error
func Syntax(line int, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindSyntax,
		Line:   line,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// UnknownType creates an unresolvable type reference error
func UnknownType(line int, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnknownType,
		Line:   line,
		Type:   name,
		Detail: "unknown type",
	}
}

// DuplicateType creates a duplicate registration error
func DuplicateType(line int, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindDuplicateType,
		Line:   line,
		Type:   name,
		Detail: "type already defined",
	}
}

// UnknownMember creates a failed member lookup error
func UnknownMember(container, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnknownMember,
		Path:   []string{container},
		Detail: fmt.Sprintf("no member %q", name),
	}
}

// Unimplemented creates an unsupported type combination error
func Unimplemented(path []string, what string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindUnimplemented,
		Path:   path,
		Detail: what,
	}
}

// OutOfBounds creates a wire bounds violation error
func OutOfBounds(path []string, offset, size uint64, length int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("%d bytes at offset %d exceed buffer of %d bytes", size, offset, length),
		Value:  offset,
	}
}

// NullPointer creates a nonnull violation error
func NullPointer(phase Phase, path []string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullPointer,
		Path:   path,
		Detail: "null pointer for nonnull member",
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, limit uint64) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("cannot allocate %d bytes (limit %d)", size, limit),
		Value:  size,
	}
}

// Malformed creates a malformed wire data error
func Malformed(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformed,
		Path:   path,
		Detail: detail,
	}
}

// InvalidDiscriminant creates an error for a switch value no case accepts
func InvalidDiscriminant(phase Phase, path []string, disc uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidDiscriminant,
		Path:   path,
		Detail: fmt.Sprintf("no case matches discriminant %d", disc),
		Value:  disc,
	}
}

// NoSuchMessage creates a dispatch miss error
func NoSuchMessage(channel uint32, msgType uint16) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNoSuchMessage,
		Detail: fmt.Sprintf("no message %d on channel %d", msgType, channel),
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// TypeMismatch creates a value/type mismatch error
func TypeMismatch(phase Phase, path []string, want string, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   want,
		Detail: fmt.Sprintf("cannot use %T", got),
		Value:  got,
	}
}

// Overflow creates an arithmetic or range overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Type:   target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsKind reports whether err is a structured error of the given kind
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsPhase reports whether err is a structured error raised in the given phase
func IsPhase(err error, phase Phase) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Phase == phase {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// WithPath returns a copy of err with prefix prepended to its path.
// Non-structured errors are returned unchanged.
func WithPath(err error, prefix ...string) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	c := *e
	c.Path = append(append([]string(nil), prefix...), e.Path...)
	return &c
}
