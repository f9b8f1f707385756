package protogen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/protogen/codec"
	"github.com/wippyai/protogen/errors"
)

const demoSource = `
enum8 Kind { PING, PONG };

struct Point {
	int16 x;
	int16 y;
};

message Empty {
};

channel BaseChannel {
server:
	message {
		uint32 serial;
	} ping;
client:
	message {
		uint32 serial;
	} pong;
};

channel MainChannel : BaseChannel {
server:
	message {
		Point at;
		Kind kind;
	} moved = 10;
	Empty bye;
client:
	Empty ack = 101;
};

protocol Demo {
	MainChannel main = 1;
};
`

func TestCompile(t *testing.T) {
	res, err := Compile(context.Background(), "demo.proto", demoSource, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Protocol.Name != "Demo" {
		t.Errorf("protocol = %q, want Demo", res.Protocol.Name)
	}
	if got, want := res.Plans.Len(), 4; got != want {
		t.Errorf("plans = %d, want %d", got, want)
	}

	p, err := res.ChannelMessage("MainChannel", "moved", false)
	if err != nil {
		t.Fatalf("ChannelMessage: %v", err)
	}
	if p.Name != "msg_main_moved" {
		t.Errorf("plan name = %q, want msg_main_moved", p.Name)
	}

	wire := []byte{0x01, 0x00, 0xff, 0xff, 0x01}
	d, err := res.Dispatcher(codec.Client)
	if err != nil {
		t.Fatalf("Dispatcher: %v", err)
	}
	msg, err := d.Parse(1, 10, 0, wire)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := codec.Record{
		"at":   codec.Record{"x": int64(1), "y": int64(-1)},
		"kind": uint64(1),
	}
	if diff := cmp.Diff(want, msg.Value()); diff != "" {
		t.Errorf("decoded value mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileLookups(t *testing.T) {
	res, err := Compile(context.Background(), "demo.proto", demoSource, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		kind errors.Kind
	}{
		{"struct", func() error { _, err := res.Type("Point"); return err }, ""},
		{"unknown_type", func() error { _, err := res.Type("Nope"); return err }, errors.KindUnknownType},
		{"enum_type", func() error { _, err := res.Type("Kind"); return err }, errors.KindTypeMismatch},
		{"inherited", func() error { _, err := res.ChannelMessage("MainChannel", "ping", false); return err }, ""},
		{"client", func() error { _, err := res.ChannelMessage("MainChannel", "ack", true); return err }, ""},
		{"wrong_side", func() error { _, err := res.ChannelMessage("MainChannel", "ack", false); return err }, errors.KindUnknownMember},
		{"not_channel", func() error { _, err := res.ChannelMessage("Point", "x", false); return err }, errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestCompileOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.BigEndian = true
	res, err := Compile(context.Background(), "demo.proto", demoSource, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, err := res.ChannelMessage("BaseChannel", "ping", false)
	if err != nil {
		t.Fatalf("ChannelMessage: %v", err)
	}
	msg, err := p.Decode([]byte{0, 0, 1, 2}, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := msg.Value()["serial"]; got != uint64(0x0102) {
		t.Errorf("serial = %v, want 0x102", got)
	}

	bad := DefaultOptions()
	bad.PointerWidth = 3
	if _, err := Compile(context.Background(), "demo.proto", demoSource, bad); !errors.IsPhase(err, errors.PhaseConfig) {
		t.Errorf("pointer width 3: error = %v, want config error", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		phase  errors.Phase
	}{
		{"syntax", "struct {", errors.PhaseParse},
		{"no_protocol", "struct A { uint8 a; };", errors.PhaseResolve},
		{"unknown_type", "struct A { Missing m; }; protocol P { };", errors.PhaseResolve},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(context.Background(), "bad.proto", tt.source, DefaultOptions())
			if !errors.IsPhase(err, tt.phase) {
				t.Fatalf("error = %v, want phase %s", err, tt.phase)
			}
		})
	}
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.proto")
	if err := os.WriteFile(path, []byte(demoSource), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := CompileFile(context.Background(), path, DefaultOptions())
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	if res.File.Name != path {
		t.Errorf("file name = %q, want %q", res.File.Name, path)
	}

	if _, err := CompileFile(context.Background(), filepath.Join(t.TempDir(), "missing"), DefaultOptions()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
