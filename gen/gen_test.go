package gen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/errors"
)

const genSource = `
enum8 Kind { NONE, POINT, RECT = 5 };
flags8 Caps { X, Y, Z = 4 };
struct Point { int16 x; int16 y; };
message Empty {};

channel BaseChannel {
  server:
    message { uint32 serial; } ping;
  client:
    message { uint32 serial; } pong;
};

channel MainChannel : BaseChannel {
  server:
    message {
        Kind kind;
        switch (kind) {
        case POINT:
            Point pt;
        default:
            uint8 none;
        } u;
        Caps caps;
        Point *origin;
        uint8 name[cstring()] @ifdef(USE_NAME);
    } moved = 10;
    Empty bye;
  client:
    Empty ack = 101;
};

protocol Demo { MainChannel main = 1; };
`

func compileSource(t *testing.T, source string) *protogen.Result {
	t.Helper()
	res, err := protogen.Compile(context.Background(), "gen.proto", source, protogen.DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

// declared parses src and returns its package-level identifiers.
func declared(t *testing.T, src []byte) []string {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	var names []string
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			names = append(names, d.Name.Name)
		case *ast.GenDecl:
			for _, s := range d.Specs {
				switch s := s.(type) {
				case *ast.TypeSpec:
					names = append(names, s.Name.Name)
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names = append(names, n.Name)
					}
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func TestGenerateEnums(t *testing.T) {
	g := New(compileSource(t, genSource), Options{Prefix: "demo"})
	src, err := g.Generate(Artifacts{Enums: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{
		"DemoCaps", "DemoCapsMask", "DemoCapsX", "DemoCapsY", "DemoCapsZ",
		"DemoChannelMain", "DemoEndChannel",
		"DemoKind", "DemoKindEnumEnd", "DemoKindNone", "DemoKindPoint", "DemoKindRect",
		"DemoMsgEndMain", "DemoMsgMainBye", "DemoMsgMainMoved", "DemoMsgPing",
		"DemoMsgcEndMain", "DemoMsgcMainAck", "DemoMsgcPong",
	}
	if diff := cmp.Diff(want, declared(t, src)); diff != "" {
		t.Errorf("declared identifiers mismatch (-want +got):\n%s", diff)
	}

	values := []string{
		`package protocol`,
		`type DemoKind uint8`,
		`DemoKindRect\s+DemoKind = 5`,
		`DemoKindEnumEnd\s+DemoKind = 6`,
		`type DemoCaps uint8`,
		`DemoCapsZ\s+DemoCaps = 1 << 4`,
		`DemoCapsMask\s+DemoCaps = 0x13`,
		`DemoChannelMain = 1`,
		`DemoEndChannel\s+= 2`,
		`DemoMsgMainMoved\s+= 10`,
		`DemoMsgMainBye\s+= 11`,
		`DemoMsgEndMain\s+= 12`,
		`DemoMsgcMainAck = 101`,
		`DemoMsgcEndMain\s+= 102`,
	}
	for _, v := range values {
		if !regexp.MustCompile(v).Match(src) {
			t.Errorf("generated source lacks %q:\n%s", v, src)
		}
	}
	if !strings.HasPrefix(string(src), "// Code generated by protogen from gen.proto. DO NOT EDIT.") {
		t.Errorf("missing generated-code header:\n%s", src)
	}
}

func TestGenerateEnumPrefixAttr(t *testing.T) {
	res := compileSource(t, `enum16 Mode { ON, OFF } @prefix(MODE_); protocol P { };`)
	src, err := New(res, Options{}).Generate(Artifacts{Enums: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"EndChannel", "Mode", "ModeEnumEnd", "ModeOff", "ModeOn"}
	if diff := cmp.Diff(want, declared(t, src)); diff != "" {
		t.Errorf("declared identifiers mismatch (-want +got):\n%s", diff)
	}
	if !regexp.MustCompile(`type Mode uint16`).Match(src) {
		t.Errorf("enum16 should render as uint16:\n%s", src)
	}
}

func TestGenerateWrappers(t *testing.T) {
	g := New(compileSource(t, genSource), Options{Package: "demo"})
	src, err := g.Generate(Artifacts{
		Demarshallers: true,
		Marshallers:   true,
		Server:        true,
		Structs:       []string{"Point"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{
		"MarshalMsgMainBye", "MarshalMsgMainMoved", "MarshalMsgMainPing", "MarshalPoint",
		"ParseMsgcMainAck", "ParseMsgcMainPong",
		"ServerParser",
		"channelMessage", "compiledProtocol",
		"protocolErr", "protocolOnce", "protocolResult", "protocolSource",
	}
	if diff := cmp.Diff(want, declared(t, src)); diff != "" {
		t.Errorf("declared identifiers mismatch (-want +got):\n%s", diff)
	}

	snippets := []string{
		"package demo",
		`"github.com/wippyai/protogen/codec"`,
		`return res.Dispatcher(codec.Server)`,
		`p, err := channelMessage("MainChannel", "ack", true)`,
		`p, err := channelMessage("MainChannel", "ping", false)`,
		"// MarshalPoint marshals a Point struct into m.",
		"// ParseMsgcMainPong decodes msgc_pong, client message 1 of the main channel.",
		"// Wire size: 4\n",
		"// Requires USE_NAME for member name.",
		`protogen.Compile(context.Background(), "gen.proto", protocolSource`,
		"enum8 Kind { NONE, POINT, RECT = 5 };",
	}
	for _, s := range snippets {
		if !strings.Contains(string(src), s) {
			t.Errorf("generated source lacks %q:\n%s", s, src)
		}
	}
}

func TestGenerateClientPrivate(t *testing.T) {
	g := New(compileSource(t, genSource), Options{Private: true})
	src, err := g.Generate(Artifacts{Demarshallers: true, Marshallers: true, Client: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	names := declared(t, src)
	for _, want := range []string{"ClientParser", "ParseMsgMainMoved", "marshalMsgcMainAck", "marshalMsgcMainPong"} {
		if !contains(names, want) {
			t.Errorf("missing %s in %v", want, names)
		}
	}
	if contains(names, "ServerParser") {
		t.Errorf("client-only output declares ServerParser")
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		a      Artifacts
		kind   errors.Kind
	}{
		{"no_side", genSource, Artifacts{Demarshallers: true}, errors.KindInvalidInput},
		{"unknown_struct", genSource, Artifacts{Structs: []string{"Nope"}}, errors.KindUnknownType},
		{"not_struct", genSource, Artifacts{Structs: []string{"Kind"}}, errors.KindTypeMismatch},
		{"clash", "enum8 A_B { X }; enum8 a_b { Y }; protocol P { };", Artifacts{Enums: true}, errors.KindDuplicateType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(compileSource(t, tt.source), Options{}).Generate(tt.a)
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("error = %v, want kind %s", err, tt.kind)
			}
			if !errors.IsPhase(err, errors.PhaseGenerate) && tt.kind != errors.KindUnknownType {
				t.Errorf("error = %v, want generate phase", err)
			}
		})
	}
}

func TestGoString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain\ntext", "`plain\ntext`"},
		{"a `quoted` b", `"a ` + "`quoted`" + ` b"`},
		{"cr\r\n", `"cr\r\n"`},
	}
	for _, tt := range tests {
		if got := goString(tt.in); got != tt.want {
			t.Errorf("goString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
