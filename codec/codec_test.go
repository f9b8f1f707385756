package codec

import (
	"strings"
	"testing"

	"github.com/wippyai/protogen/dsl"
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

const emptyProtocol = "\nprotocol P { };"

func resolveSource(t *testing.T, src string) (*model.Context, *model.Protocol) {
	t.Helper()
	if !strings.Contains(src, "protocol ") {
		src += emptyProtocol
	}
	f, err := dsl.Parse("test.proto", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := model.NewContext()
	proto, err := model.Resolve(ctx, f)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return ctx, proto
}

func compile(t *testing.T, src, name string) *Plan {
	t.Helper()
	return compileWith(t, src, name, DefaultOptions())
}

func compileWith(t *testing.T, src, name string, opts Options) *Plan {
	t.Helper()
	ctx, _ := resolveSource(t, src)
	typ, ok := ctx.Lookup(name)
	if !ok {
		t.Fatalf("type %s not registered", name)
	}
	c := NewCompiler(layout.NewCalculator(layout.DefaultOptions()), opts)
	p, err := c.Compile(typ)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return p
}

func decode(t *testing.T, p *Plan, wire []byte, minor int) *Message {
	t.Helper()
	msg, err := p.Decode(wire, minor)
	if err != nil {
		t.Fatalf("decode %s: %v", p.Name, err)
	}
	return msg
}

func encode(t *testing.T, p *Plan, rec Record, minor int) []byte {
	t.Helper()
	wire, err := p.Encode(rec, minor)
	if err != nil {
		t.Fatalf("encode %s: %v", p.Name, err)
	}
	return wire
}

const shapeSource = `
enum8 Kind { NONE, POINT, RECT };
struct Point { int16 x; int16 y; };
struct Rect { Point tl; Point br; };
message Shape {
    Kind kind;
    switch (kind) {
    case POINT:
        Point pt;
    case RECT:
        Rect *rect;
    default:
        uint8 none;
    } u;
    uint16 n;
    Point pts[n];
    uint8 name[cstring()];
};
`

var shapeWire = []byte{
	0x02,                   // kind = RECT
	0x0e, 0x00, 0x00, 0x00, // rect -> 14
	0x01, 0x00, // n
	0x05, 0x00, 0xfa, 0xff, // pts[0]
	'h', 'i', 0x00, // name
	0xff, 0xff, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00, // *rect
}

func shapeRecord() Record {
	return Record{
		"kind": uint64(2),
		"u": Record{
			"rect": Record{
				"tl": Record{"x": int64(-1), "y": int64(2)},
				"br": Record{"x": int64(3), "y": int64(4)},
			},
		},
		"n":    uint64(1),
		"pts":  []any{Record{"x": int64(5), "y": int64(-6)}},
		"name": []byte("hi"),
	}
}
