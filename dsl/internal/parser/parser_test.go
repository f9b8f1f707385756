package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/dsl/internal/token"
	"github.com/wippyai/protogen/errors"
)

func parse(t *testing.T, src string) *ast.File {
	t.Helper()
	tokens, err := token.Tokenize(src)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	f, err := New(tokens).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

func parseErr(src string) error {
	tokens, err := token.Tokenize(src)
	if err != nil {
		return err
	}
	_, err = New(tokens).Parse()
	return err
}

const minimalProtocol = "protocol P { };"

func TestParseStruct(t *testing.T) {
	f := parse(t, `
struct Point {
    int32 x;
    uint16 y @minor(2);
} @ctype(SpicePoint);
`+minimalProtocol)

	want := []ast.Def{
		&ast.StructDef{
			Name: "Point",
			Line: 2,
			Fields: []ast.Field{
				&ast.Member{Type: &ast.Int{Bits: 32, Signed: true}, Name: "x", Line: 3},
				&ast.Member{
					Type:  &ast.Int{Bits: 16},
					Name:  "y",
					Line:  4,
					Attrs: []ast.Attr{{Name: "minor", Line: 4, Args: []ast.AttrArg{{Int: 2, IsInt: true}}}},
				},
			},
			Attrs: []ast.Attr{{Name: "ctype", Line: 5, Args: []ast.AttrArg{{Ident: "SpicePoint"}}}},
		},
	}
	if diff := cmp.Diff(want, f.Defs); diff != "" {
		t.Errorf("defs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArraySizes(t *testing.T) {
	f := parse(t, `
message M {
    uint32 n;
    uint8 a[4];
    uint8 b[];
    uint8 c[n];
    uint8 d[image_size(8, w, h)];
    uint8 e[bytes(len, count)];
    uint8 g[cstring()];
    Point *p[n] @ptr_array;
};
`+minimalProtocol)

	msg := f.Defs[0].(*ast.MessageDef)
	want := []*ast.ArraySize{
		nil,
		{Kind: ast.SizeConst, N: 4},
		{Kind: ast.SizeRemaining},
		{Kind: ast.SizeIdent, Name: "n"},
		{Kind: ast.SizeImage, BPP: 8, Width: "w", Height: "h"},
		{Kind: ast.SizeBytes, Length: "len", Count: "count"},
		{Kind: ast.SizeCString},
		{Kind: ast.SizeIdent, Name: "n"},
	}
	if len(msg.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(msg.Fields), len(want))
	}
	for i, fld := range msg.Fields {
		m := fld.(*ast.Member)
		if diff := cmp.Diff(want[i], m.Array); diff != "" {
			t.Errorf("field %s size mismatch (-want +got):\n%s", m.Name, diff)
		}
	}
	if last := msg.Fields[7].(*ast.Member); !last.Pointer {
		t.Error("p should be a pointer")
	}
}

func TestParseSwitch(t *testing.T) {
	f := parse(t, `
struct S {
    Kind kind;
    switch (kind) {
    case A:
    case B:
        uint32 ab;
    case !C:
        uint8 notc;
    default:
        uint16 other;
    } u @anon @fixedsize;
};
`+minimalProtocol)

	s := f.Defs[0].(*ast.StructDef)
	sw, ok := s.Fields[1].(*ast.Switch)
	if !ok {
		t.Fatalf("field 1 is %T, want *ast.Switch", s.Fields[1])
	}
	if sw.Var != "kind" || sw.Name != "u" {
		t.Errorf("switch var=%q name=%q", sw.Var, sw.Name)
	}
	if len(sw.Cases) != 3 {
		t.Fatalf("got %d cases, want 3", len(sw.Cases))
	}
	wantGuards := [][]ast.Guard{
		{{Label: "A"}, {Label: "B"}},
		{{Label: "C", Not: true}},
		{{Default: true}},
	}
	for i, c := range sw.Cases {
		if diff := cmp.Diff(wantGuards[i], c.Guards); diff != "" {
			t.Errorf("case %d guards (-want +got):\n%s", i, diff)
		}
	}
	if len(sw.Attrs) != 2 || sw.Attrs[0].Name != "anon" || sw.Attrs[1].Name != "fixedsize" {
		t.Errorf("switch attrs = %+v", sw.Attrs)
	}
}

func TestParseDottedSwitchPath(t *testing.T) {
	f := parse(t, `
struct S {
    Inner in;
    switch (in.kind) { case A: uint8 a; } u;
};
`+minimalProtocol)
	sw := f.Defs[0].(*ast.StructDef).Fields[1].(*ast.Switch)
	if sw.Var != "in.kind" {
		t.Errorf("Var = %q, want in.kind", sw.Var)
	}
}

func TestParseEnums(t *testing.T) {
	f := parse(t, `
enum16 Kind { NONE, POINT = 5, RECT, };
flags8 Caps { 16BPP, ALPHA };
`+minimalProtocol)

	want := []ast.Def{
		&ast.EnumDef{Name: "Kind", Bits: 16, Line: 2, Values: []ast.EnumValue{
			{Name: "NONE"}, {Name: "POINT", Value: 5, HasValue: true}, {Name: "RECT"},
		}},
		&ast.EnumDef{Name: "Caps", Bits: 8, Flags: true, Line: 3, Values: []ast.EnumValue{
			{Name: "16BPP"}, {Name: "ALPHA"},
		}},
	}
	if diff := cmp.Diff(want, f.Defs); diff != "" {
		t.Errorf("defs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseChannelAndProtocol(t *testing.T) {
	f := parse(t, `
message Empty {};
channel BaseChannel {
    Empty ping = 4;
  client:
    message {
        uint32 x;
    } pong;
};
channel MainChannel : BaseChannel {
  server:
    Empty init;
};
protocol Demo {
    MainChannel main = 1;
    BaseChannel base;
};
`)

	base := f.Defs[1].(*ast.ChannelDef)
	if len(base.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(base.Members))
	}
	if m := base.Members[0]; m.Client || m.Ref != "Empty" || !m.HasID || m.ID != 4 || m.Name != "ping" {
		t.Errorf("ping = %+v", m)
	}
	if m := base.Members[1]; !m.Client || m.Message == nil || m.Message.Name != "" || m.Name != "pong" {
		t.Errorf("pong = %+v", m)
	}

	main := f.Defs[2].(*ast.ChannelDef)
	if main.Base != "BaseChannel" {
		t.Errorf("Base = %q", main.Base)
	}

	want := &ast.Protocol{Name: "Demo", Line: 14, Members: []*ast.ProtocolMember{
		{Channel: "MainChannel", Name: "main", ID: 1, HasID: true, Line: 15},
		{Channel: "BaseChannel", Name: "base", Line: 16},
	}}
	if diff := cmp.Diff(want, f.Protocol); diff != "" {
		t.Errorf("protocol mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTypedefAndInlineStruct(t *testing.T) {
	f := parse(t, `
typedef fixed28_4 int32 @ctype(SPICE_FIXED28_4);
struct Outer {
    struct Inner { uint8 a; } inner;
    channel_type ct;
};
`+minimalProtocol)

	td := f.Defs[0].(*ast.Typedef)
	if td.Name != "fixed28_4" {
		t.Errorf("typedef name = %q", td.Name)
	}
	if diff := cmp.Diff(&ast.Int{Bits: 32, Signed: true}, td.Type); diff != "" {
		t.Errorf("typedef type (-want +got):\n%s", diff)
	}

	outer := f.Defs[1].(*ast.StructDef)
	inner := outer.Fields[0].(*ast.Member)
	if s, ok := inner.Type.(*ast.StructDef); !ok || s.Name != "Inner" {
		t.Errorf("inner type = %#v", inner.Type)
	}
	ct := outer.Fields[1].(*ast.Member)
	if diff := cmp.Diff(&ast.Named{Name: "channel_type", Line: 5}, ct.Type); diff != "" {
		t.Errorf("channel_type member (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing_semicolon", "struct S { uint8 a } " + minimalProtocol, `expected ";"`},
		{"bad_definition", "foo bar;", "expected definition"},
		{"missing_protocol", "struct S { uint8 a; };", "missing protocol"},
		{"def_after_protocol", minimalProtocol + " struct S {};", "after protocol"},
		{"empty_switch_case", "struct S { switch (k) { uint8 a; } u; };" + minimalProtocol, "expected case"},
		{"bad_array_size", "struct S { uint8 a[@]; };" + minimalProtocol, "invalid array size"},
		{"unterminated", "struct S { uint8 a;", "unexpected end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErr(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
			if !errors.IsKind(err, errors.KindSyntax) {
				t.Errorf("error %v is not a syntax error", err)
			}
		})
	}
}
