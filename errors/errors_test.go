package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseResolve,
				Kind:   KindUnknownMember,
				Path:   []string{"DisplayBase", "clip", "rects"},
				Type:   "ClipRects",
				Line:   12,
				Detail: "no member",
			},
			contains: []string{"[resolve]", "unknown_member", "line 12", "DisplayBase.clip.rects", "ClipRects", "no member"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseGenerate,
				Kind:   KindInvalidInput,
				Detail: "format source",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[generate]", "invalid_input", "format source", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindFieldMissing,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindOutOfBounds,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseDecode, Kind: KindOutOfBounds}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindMalformed}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDecode, Kind: KindOutOfBounds}
	if !errors.Is(fmt.Errorf("wrapped: %w", err), target) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseResolve, KindUnknownType).
		Path("Msg", "field").
		Type("Point").
		Line(7).
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "struct", "enum").
		Build()

	if err.Phase != PhaseResolve {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseResolve)
	}
	if err.Kind != KindUnknownType {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnknownType)
	}
	if len(err.Path) != 2 || err.Path[0] != "Msg" || err.Path[1] != "field" {
		t.Errorf("Path = %v, want [Msg field]", err.Path)
	}
	if err.Type != "Point" {
		t.Errorf("Type = %v, want 'Point'", err.Type)
	}
	if err.Line != 7 {
		t.Errorf("Line = %d, want 7", err.Line)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected struct, got enum" {
		t.Errorf("Detail = %v, want 'expected struct, got enum'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"Syntax", Syntax(3, "expected %q", ";"), PhaseParse, KindSyntax},
		{"UnknownType", UnknownType(4, "Rect"), PhaseResolve, KindUnknownType},
		{"DuplicateType", DuplicateType(5, "Rect"), PhaseResolve, KindDuplicateType},
		{"UnknownMember", UnknownMember("Rect", "w"), PhaseResolve, KindUnknownMember},
		{"Unimplemented", Unimplemented([]string{"m"}, "pointer to pointer"), PhaseCompile, KindUnimplemented},
		{"OutOfBounds", OutOfBounds([]string{"a"}, 10, 4, 12), PhaseDecode, KindOutOfBounds},
		{"NullPointer", NullPointer(PhaseDecode, []string{"p"}), PhaseDecode, KindNullPointer},
		{"AllocationFailed", AllocationFailed(1<<40, 1<<30), PhaseDecode, KindAllocation},
		{"Malformed", Malformed(nil, "missing terminator"), PhaseDecode, KindMalformed},
		{"InvalidDiscriminant", InvalidDiscriminant(PhaseDecode, nil, 9), PhaseDecode, KindInvalidDiscriminant},
		{"NoSuchMessage", NoSuchMessage(1, 200), PhaseDispatch, KindNoSuchMessage},
		{"FieldMissing", FieldMissing(PhaseEncode, nil, "len"), PhaseEncode, KindFieldMissing},
		{"TypeMismatch", TypeMismatch(PhaseEncode, nil, "uint32", "x"), PhaseEncode, KindTypeMismatch},
		{"Overflow", Overflow(PhaseEncode, nil, 300, "uint8"), PhaseEncode, KindOverflow},
		{"InvalidInput", InvalidInput(PhaseConfig, "bad"), PhaseConfig, KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}

	if d := OutOfBounds(nil, 10, 4, 12).Detail; !strings.Contains(d, "offset 10") {
		t.Errorf("OutOfBounds detail = %q, want offset", d)
	}
}

func TestIsKindAndPhase(t *testing.T) {
	base := NoSuchMessage(2, 7)
	wrapped := fmt.Errorf("dispatch: %w", base)

	if !IsKind(wrapped, KindNoSuchMessage) {
		t.Error("IsKind should see through wrapping")
	}
	if IsKind(wrapped, KindOutOfBounds) {
		t.Error("IsKind matched wrong kind")
	}
	if !IsPhase(wrapped, PhaseDispatch) {
		t.Error("IsPhase should see through wrapping")
	}
	if IsKind(errors.New("plain"), KindNoSuchMessage) {
		t.Error("plain error has no kind")
	}
	if IsKind(nil, KindSyntax) {
		t.Error("nil has no kind")
	}
}

func TestWithPath(t *testing.T) {
	orig := OutOfBounds([]string{"len"}, 0, 4, 2)
	got := WithPath(orig, "MsgFoo", "inner").(*Error)

	if want := "MsgFoo.inner.len"; strings.Join(got.Path, ".") != want {
		t.Errorf("Path = %v, want %s", got.Path, want)
	}
	if len(orig.Path) != 1 {
		t.Errorf("original path modified: %v", orig.Path)
	}

	plain := errors.New("plain")
	if WithPath(plain, "x") != plain {
		t.Error("plain errors should pass through unchanged")
	}
}
