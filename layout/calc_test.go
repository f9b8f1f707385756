package layout

import (
	"testing"

	"github.com/wippyai/protogen/dsl"
	"github.com/wippyai/protogen/model"
)

func resolve(t *testing.T, src string) *model.Context {
	t.Helper()
	f, err := dsl.Parse("test.proto", src+"protocol P { };")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := model.NewContext()
	if _, err := model.Resolve(ctx, f); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return ctx
}

func container(t *testing.T, ctx *model.Context, name string) *model.Container {
	t.Helper()
	typ, ok := ctx.Lookup(name)
	if !ok {
		t.Fatalf("type %s not registered", name)
	}
	c, ok := model.AsContainer(typ)
	if !ok {
		t.Fatalf("%s is not a container", name)
	}
	return c
}

func member(t *testing.T, c *model.Container, name string) *model.Member {
	t.Helper()
	chain, err := c.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return chain[len(chain)-1]
}

const sampleSource = `
enum8 Kind { A, B };
struct Point { int32 x; int32 y; };
message Sample {
    uint8 tag;
    uint32 n;
    Point origin;
    uint16 extra @minor(2);
    Point pts[n];
    Point *p;
    uint8 raw[4];
    Kind k;
    switch (k) {
    case A:
        uint32 a;
    case B:
        uint16 b;
    } u;
};
`

func TestLayoutOffsets(t *testing.T) {
	ctx := resolve(t, sampleSource)
	calc := NewCalculator(Options{})
	c := container(t, ctx, "Sample")
	l := calc.Layout(c)

	if l.Size != 64 || l.Align != 8 {
		t.Errorf("size/align: got %d/%d, want 64/8", l.Size, l.Align)
	}

	tests := []struct {
		name   string
		offset uint64
		size   uint64
		kind   SlotKind
	}{
		{"tag", 0, 1, SlotValue},
		{"n", 4, 4, SlotValue},
		{"origin", 8, 8, SlotInline},
		{"extra", 16, 2, SlotValue},
		{"pts", 24, HeaderSize, SlotArray},
		{"p", 40, RefSize, SlotRef},
		{"raw", 48, 4, SlotInline},
		{"k", 52, 1, SlotValue},
		{"a", 56, 4, SlotValue},
		{"b", 56, 2, SlotValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := l.Slot(member(t, c, tt.name))
			if s.Offset != tt.offset || s.Size != tt.size || s.Kind != tt.kind {
				t.Errorf("got offset=%d size=%d kind=%v, want %d/%d/%v",
					s.Offset, s.Size, s.Kind, tt.offset, tt.size, tt.kind)
			}
		})
	}

	u := l.Union(c.Members[8].(*model.Switch))
	if u.Offset != 56 || u.Size != 4 {
		t.Errorf("union: offset=%d size=%d", u.Offset, u.Size)
	}
	if calc.Layout(c) != l {
		t.Error("layout not cached")
	}
}

func TestContainerFormulas(t *testing.T) {
	ctx := resolve(t, sampleSource)
	calc := NewCalculator(Options{})
	f := calc.Formulas(container(t, ctx, "Sample"))

	if got, want := f.Nw.String(), "22 + (minor >= 2 ? 2 : 0) + n * 8 + u__nw_size"; got != want {
		t.Errorf("Nw = %q, want %q", got, want)
	}
	if got, want := f.Extra.String(), "3 + n * 8 + p__extra_size"; got != want {
		t.Errorf("Extra = %q, want %q", got, want)
	}
	if got, want := f.Mem.String(), "67 + n * 8 + p__extra_size"; got != want {
		t.Errorf("Mem = %q, want %q", got, want)
	}

	env := NewEnv(1)
	env.Fields["n"] = 3
	env.Terms["u__nw_size"] = 4
	nw, err := f.Nw.Eval(env)
	if err != nil || nw != 50 {
		t.Errorf("Nw at minor 1 = %d (%v), want 50", nw, err)
	}
	env.Minor = 2
	if nw, _ := f.Nw.Eval(env); nw != 52 {
		t.Errorf("Nw at minor 2 = %d, want 52", nw)
	}
}

func TestFixedNw(t *testing.T) {
	ctx := resolve(t, `
enum8 Kind { A, B };
struct Point { int32 x; int32 y; };
struct Cov { Kind k; switch (k) { case A: uint16 a; case B: uint16 b; } u; };
struct Def { Kind k; switch (k) { case A: uint16 a; default: uint16 b; } u; };
struct Partial { Kind k; switch (k) { case A: uint16 a; } u; };
struct Uneven { Kind k; switch (k) { case A: uint32 a; case B: uint8 b; } u; };
struct Padded { Kind k; switch (k) { case A: uint32 a; case B: uint8 b; } u @fixedsize; };
struct Gated { uint32 a; uint32 b @minor(1); };
struct Ptr { Point *p; Point *q @ptr32; };
struct Virt { uint32 a; uint8 v @virtual(7); };
struct Var { uint8 n; uint8 d[n]; };
`)
	calc := NewCalculator(Options{PointerWidth: 8})

	tests := []struct {
		name  string
		size  FixedSize
		fixed bool
	}{
		{"Point", Fixed(8), true},
		{"Cov", Fixed(3), true},
		{"Def", Fixed(3), true},
		{"Partial", FixedSize{}, false},
		{"Uneven", FixedSize{}, false},
		{"Padded", Fixed(5), true},
		{"Gated", FixedSize{Base: 4, Minor: []MinorTerm{{Minor: 1, Size: 4}}}, true},
		{"Ptr", Fixed(12), true},
		{"Virt", Fixed(4), true},
		{"Var", FixedSize{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, _ := ctx.Lookup(tt.name)
			got, ok := calc.FixedNw(typ)
			if ok != tt.fixed {
				t.Fatalf("fixed = %v, want %v", ok, tt.fixed)
			}
			if ok && !got.Equal(tt.size) {
				t.Errorf("size = %v, want %v", got, tt.size)
			}
		})
	}
}

func TestMemberSlots(t *testing.T) {
	ctx := resolve(t, `
struct Point { int32 x; int32 y; };
struct Slots {
    uint32 n;
    uint8 *chunked[n] @chunk;
    uint8 *aliased[n] @nocopy;
    uint8 asptr[n] @as_ptr;
    uint16 z @zero;
    Point q @to_ptr;
    uint8 tail[] @end;
    Point fixed[2];
};
`)
	calc := NewCalculator(Options{})
	c := container(t, ctx, "Slots")

	tests := []struct {
		name  string
		kind  SlotKind
		wire  bool
		chunk bool
		extra bool
	}{
		{"chunked", SlotRef, false, true, true},
		{"aliased", SlotArray, true, false, false},
		{"asptr", SlotArray, true, false, false},
		{"z", SlotNone, false, false, false},
		{"q", SlotRef, false, false, true},
		{"tail", SlotArray, false, false, true},
		{"fixed", SlotInline, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := member(t, c, tt.name)
			s := calc.MemberSlot(m)
			if s.Kind != tt.kind || s.Wire != tt.wire || s.Chunk != tt.chunk {
				t.Errorf("slot = %+v", s)
			}
			if got := calc.IsExtraSize(m); got != tt.extra {
				t.Errorf("IsExtraSize = %v, want %v", got, tt.extra)
			}
		})
	}

	typ, _ := ctx.Lookup("Slots")
	if !calc.ContainsExtraSize(typ) {
		t.Error("Slots should contain extra size")
	}
	pt, _ := ctx.Lookup("Point")
	if calc.ContainsExtraSize(pt) {
		t.Error("Point should not contain extra size")
	}
	if got := calc.Sizeof(pt); got != 8 {
		t.Errorf("Sizeof(Point) = %d", got)
	}
}

func TestMemberFormulas(t *testing.T) {
	ctx := resolve(t, `
struct Arrays {
    uint16 w;
    uint16 h;
    uint32 len;
    uint8 img[image_size(1, w, h)];
    uint8 name[cstring()];
    uint16 words[bytes(len)];
    uint8 rest[];
};
`)
	calc := NewCalculator(Options{})
	c := container(t, ctx, "Arrays")

	tests := []struct {
		name  string
		nw    string
		extra string
	}{
		{"img", "(7 + w) / 8 * h", "3 + (7 + w) / 8 * h"},
		{"name", "1 + name__nelements", "name__extra_size"},
		{"words", "len / 2 * 2", "3 + len / 2 * 2"},
		{"rest", "rest__nelements", "rest__extra_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := calc.MemberFormulas(member(t, c, tt.name))
			if got := f.Nw.String(); got != tt.nw {
				t.Errorf("Nw = %q, want %q", got, tt.nw)
			}
			if got := f.Extra.String(); got != tt.extra {
				t.Errorf("Extra = %q, want %q", got, tt.extra)
			}
			if got := f.Mem.String(); got != "16" {
				t.Errorf("Mem = %q, want 16", got)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("default options: %v", err)
	}
	bad := []Options{
		{PointerWidth: 2, ExtraAlign: 4, ChunkOverhead: 16},
		{PointerWidth: 4, ExtraAlign: 3, ChunkOverhead: 16},
		{PointerWidth: 4, ExtraAlign: 4, ChunkOverhead: 8},
	}
	for _, o := range bad {
		if err := o.Validate(); err == nil {
			t.Errorf("%+v: expected error", o)
		}
	}
	if pad := (Options{ExtraAlign: 8}).Pad(); pad != 7 {
		t.Errorf("Pad = %d", pad)
	}
}
