package gen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/protogen/errors"
)

const wantWIT = `// Generated by protogen from gen.proto. DO NOT EDIT.

package demo:demo;

interface messages {
  enum kind {
    none,
    point,
    rect,
  }

  flags caps {
    x,
    y,
    z,
  }

  record point {
    x: s16,
    y: s16,
  }

  record msg-ping {
    serial: u32,
  }

  variant msg-main-moved-u {
    pt(point),
    none(u8),
  }

  record msg-main-moved {
    kind: kind,
    u: msg-main-moved-u,
    caps: caps,
    origin: option<point>,
    name: string,
  }

  variant main-server {
    ping(msg-ping),
    moved(msg-main-moved),
    bye,
  }

  record msgc-pong {
    serial: u32,
  }

  variant main-client {
    pong(msgc-pong),
    ack,
  }
}
`

func TestWIT(t *testing.T) {
	g := New(compileSource(t, genSource), Options{Prefix: "demo"})
	got, err := g.WIT()
	if err != nil {
		t.Fatalf("WIT: %v", err)
	}
	if diff := cmp.Diff(wantWIT, got); diff != "" {
		t.Errorf("WIT mismatch (-want +got):\n%s", diff)
	}
}

func TestWITTypes(t *testing.T) {
	g := New(compileSource(t, genSource), Options{})
	defs, err := g.WITTypes()
	if err != nil {
		t.Fatalf("WITTypes: %v", err)
	}
	byName := make(map[string]*wit.TypeDef)
	for _, td := range defs {
		byName[*td.Name] = td
	}
	if len(byName) != len(defs) {
		t.Errorf("duplicate type names in %d definitions", len(defs))
	}
	if _, ok := byName["empty"]; ok {
		t.Error("empty message rendered as a record")
	}

	rec, ok := byName["msg-main-moved"].Kind.(*wit.Record)
	if !ok {
		t.Fatalf("msg-main-moved kind = %T, want record", byName["msg-main-moved"].Kind)
	}
	origin := rec.Fields[3]
	opt, ok := origin.Type.(*wit.TypeDef)
	if !ok {
		t.Fatalf("origin type = %T", origin.Type)
	}
	inner, ok := opt.Kind.(*wit.Option)
	if !ok || inner.Type != byName["point"] {
		t.Errorf("origin should be option<point>, got %s", typeString(origin.Type))
	}

	server, ok := byName["main-server"].Kind.(*wit.Variant)
	if !ok {
		t.Fatalf("main-server kind = %T, want variant", byName["main-server"].Kind)
	}
	if bye := server.Cases[2]; bye.Name != "bye" || bye.Type != nil {
		t.Errorf("bye case = %+v, want payload-less", bye)
	}
}

func TestWITShapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   map[string]string
	}{
		{
			name: "lists",
			source: `message M { uint16 n; int32 vals[n]; uint8 raw[]; };
channel C { server: M m; };
protocol P { C c; };`,
			want: map[string]string{"n": "u16", "vals": "list<s32>", "raw": "list<u8>"},
		},
		{
			name: "zero_and_keywords",
			source: `typedef Handle uint64;
struct S { uint8 v; };
message M { uint8 pad @zero; Handle type; S *list; };
channel C { server: M m; };
protocol P { C c; };`,
			want: map[string]string{"%type": "u64", "%list": "option<s>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := New(compileSource(t, tt.source), Options{}).WITTypes()
			if err != nil {
				t.Fatalf("WITTypes: %v", err)
			}
			var rec *wit.Record
			for _, td := range defs {
				if *td.Name == "m" {
					rec = td.Kind.(*wit.Record)
				}
			}
			if rec == nil {
				t.Fatal("record m not rendered")
			}
			got := make(map[string]string)
			for _, f := range rec.Fields {
				got[escape(f.Name)] = typeString(f.Type)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWITNameClash(t *testing.T) {
	source := `struct foo_bar { uint8 a; }; struct FooBar { uint8 b; }; protocol P { };`
	_, err := New(compileSource(t, source), Options{}).WITTypes()
	if !errors.IsKind(err, errors.KindDuplicateType) {
		t.Fatalf("error = %v, want duplicate type", err)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Point", "point"},
		{"msg_main_moved", "msg-main-moved"},
		{"main_server", "main-server"},
		{"NONE", "none"},
	}
	for _, tt := range tests {
		if got := label(tt.in); got != tt.want {
			t.Errorf("label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
