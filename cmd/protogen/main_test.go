package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/maruel/subcommands"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/gen"
)

const demoSource = `
enum8 Kind { PING, PONG };
struct Point { int16 x; int16 y; };
message Empty {};

channel BaseChannel {
  server:
    message { uint32 serial; } ping;
  client:
    message {} pong;
};

channel MainChannel : BaseChannel {
  server:
    message { Point at; Kind kind; } moved = 10;
    Empty bye;
  client:
    Empty ack = 101;
};

protocol Demo { MainChannel main = 1; };
`

type testApp struct {
	subcommands.DefaultApplication
	out, err bytes.Buffer
}

func (a *testApp) GetOut() io.Writer { return &a.out }
func (a *testApp) GetErr() io.Writer { return &a.err }

func newTestApp() *testApp {
	return &testApp{DefaultApplication: *application}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCommand parses args with the command's flags and runs it.
func runCommand(t *testing.T, cmd *subcommands.Command, args ...string) (*testApp, int) {
	t.Helper()
	r := cmd.CommandRun()
	if err := r.GetFlags().Parse(args); err != nil {
		t.Fatalf("flags %v: %v", args, err)
	}
	app := newTestApp()
	code := r.Run(app, r.GetFlags().Args(), nil)
	return app, code
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "protogen.toml", `
pointer_width = 8
byte_order = "big"
prefix = "demo"
server = true

[artifacts]
enums = true
private = true
structs = ["Point"]
`)
	got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	want := defaultConfig()
	want.Compile.PointerWidth = 8
	want.Compile.BigEndian = true
	want.Prefix = "demo"
	want.Server = true
	want.Private = true
	want.Artifacts = gen.Artifacts{Enums: true, Structs: []string{"Point"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "pointer_width = "},
		{"unknown_key", "pointer_size = 8"},
		{"byte_order", `byte_order = "middle"`},
		{"type", `prefix = 3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.toml", tt.content)
			_, err := loadConfig(path)
			if !errors.IsPhase(err, errors.PhaseConfig) {
				t.Fatalf("error = %v, want config phase", err)
			}
		})
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "protogen.toml", `
pointer_width = 8
prefix = "cfg"
package = "wire"
client = true
`)
	r := cmdGenerate.CommandRun().(*generateRun)
	if err := r.GetFlags().Parse([]string{"-config", path, "-prefix", "flag", "-s", "-e", "a.proto", "b.go"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Parse(r.GetFlags().Args()); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := defaultConfig()
	want.Compile.PointerWidth = 8
	want.Prefix = "flag"
	want.Package = "wire"
	want.Server = true
	want.Client = true
	want.Artifacts = gen.Artifacts{Enums: true, Server: true, Client: true}
	if diff := cmp.Diff(want, r.cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "demo.proto", demoSource)
	dest := filepath.Join(dir, "demo_gen.go")

	app, code := runCommand(t, cmdGenerate, "-e", "-prefix", "demo", "-package", "demo", src, dest)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, app.err.String())
	}
	if got, want := app.out.String(), "Wrote "+dest+"\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	written, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"package demo", "DemoKindPong", "DemoMsgMainMoved"} {
		if !strings.Contains(string(written), s) {
			t.Errorf("generated file lacks %q", s)
		}
	}

	t.Run("keep_identical", func(t *testing.T) {
		app, code := runCommand(t, cmdGenerate, "-e", "-k", "-prefix", "demo", "-package", "demo", src, dest)
		if code != 0 {
			t.Fatalf("exit %d: %s", code, app.err.String())
		}
		if got, want := app.out.String(), "No changes to "+dest+"\n"; got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})

	t.Run("rewrite_without_keep", func(t *testing.T) {
		app, code := runCommand(t, cmdGenerate, "-e", "-prefix", "demo", "-package", "demo", src, dest)
		if code != 0 {
			t.Fatalf("exit %d: %s", code, app.err.String())
		}
		if !strings.HasPrefix(app.out.String(), "Wrote ") {
			t.Errorf("output = %q, want a write", app.out.String())
		}
	})

	t.Run("diff", func(t *testing.T) {
		app, code := runCommand(t, cmdGenerate, "-e", "-diff", "-prefix", "other", "-package", "demo", src, dest)
		if code != 0 {
			t.Fatalf("exit %d: %s", code, app.err.String())
		}
		out := app.out.String()
		for _, s := range []string{"--- " + dest, "+++ " + dest + " (generated)", "-\tDemoKindPing", "+\tOtherKindPing"} {
			if !strings.Contains(out, s) {
				t.Errorf("diff lacks %q:\n%s", s, out)
			}
		}
		after, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(after, written) {
			t.Error("-diff modified dest")
		}
	})
}

func TestGenerateWIT(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "demo.proto", demoSource)
	dest := filepath.Join(dir, "demo.wit")

	app, code := runCommand(t, cmdGenerate, "-wit", src, dest)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, app.err.String())
	}
	written, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"package protogen:demo;", "record msg-main-moved {", "variant main-server {"} {
		if !strings.Contains(string(written), s) {
			t.Errorf("WIT lacks %q:\n%s", s, written)
		}
	}
}

func TestGenerateFailures(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "demo.proto", demoSource)
	bad := writeFile(t, dir, "bad.proto", "struct S { Missing m; }; protocol P { };")
	dest := filepath.Join(dir, "out.go")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no_source", nil, "no protocol file specified"},
		{"no_dest", []string{src}, "no destination file specified"},
		{"no_side", []string{"-d", src, dest}, "invalid_input"},
		{"compile_error", []string{"-e", bad, dest}, "Missing"},
		{"bad_ptrsize", []string{"-ptrsize", "3", "-e", src, dest}, "config"},
		{"missing_source", []string{"-e", filepath.Join(dir, "nope.proto"), dest}, "nope.proto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, code := runCommand(t, cmdGenerate, tt.args...)
			if code == 0 {
				t.Fatalf("exit 0, want failure; output %q", app.out.String())
			}
			if !strings.Contains(app.err.String(), tt.want) {
				t.Errorf("stderr = %q, want it to mention %q", app.err.String(), tt.want)
			}
		})
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("failed runs wrote %s", dest)
	}
}

func TestCheck(t *testing.T) {
	src := writeFile(t, t.TempDir(), "demo.proto", demoSource)
	app, code := runCommand(t, cmdCheck, src)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, app.err.String())
	}
	out := app.out.String()
	patterns := []string{
		`protocol Demo: 1 channels, 4 plans, 4-byte pointers, little-endian`,
		`channel main = 1, server messages 1\.\.11`,
		`channel main = 1, client messages 1\.\.101`,
		`1  msg_ping\s+wire 4 B\s+memory`,
		`10  msg_main_moved\s+wire 5 B\s+memory`,
		`101  Empty\s+wire 0 B\s+memory`,
	}
	for _, p := range patterns {
		if !regexp.MustCompile(p).MatchString(out) {
			t.Errorf("report lacks %q:\n%s", p, out)
		}
	}

	t.Run("big_endian", func(t *testing.T) {
		app, code := runCommand(t, cmdCheck, "-byte-order", "big", src)
		if code != 0 {
			t.Fatalf("exit %d: %s", code, app.err.String())
		}
		if !strings.Contains(app.out.String(), "big-endian") {
			t.Errorf("report ignores -byte-order:\n%s", app.out.String())
		}
	})

	t.Run("args", func(t *testing.T) {
		if _, code := runCommand(t, cmdCheck); code == 0 {
			t.Error("check without a source succeeded")
		}
	})
}

func TestExploreWithoutTerminal(t *testing.T) {
	src := writeFile(t, t.TempDir(), "demo.proto", demoSource)
	app, code := runCommand(t, cmdExplore, src)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, app.err.String())
	}
	if !strings.Contains(app.out.String(), "protocol Demo:") {
		t.Errorf("explore without a terminal should print the report:\n%s", app.out.String())
	}
}

func TestExploreModel(t *testing.T) {
	res, err := protogen.Compile(t.Context(), "demo.proto", demoSource, protogen.DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	msgs, err := catalogue(res)
	if err != nil {
		t.Fatalf("catalogue: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("catalogue has %d messages, want 5", len(msgs))
	}

	m := newExploreModel("demo.proto", res, msgs, 0)
	send := func(k tea.KeyMsg) {
		t.Helper()
		next, _ := m.Update(k)
		m = next.(*exploreModel)
	}
	enter := tea.KeyMsg{Type: tea.KeyEnter}

	send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if m.state != stateFilter {
		t.Fatalf("state = %d after /, want filter", m.state)
	}
	send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("moved")})
	if len(m.visible) != 1 {
		t.Fatalf("filter kept %d messages, want 1", len(m.visible))
	}
	send(enter)
	send(enter)
	if m.state != stateDetail {
		t.Fatalf("state = %d, want detail", m.state)
	}
	if view := m.View(); !strings.Contains(view, "msg_main_moved") || !strings.Contains(view, "kind") {
		t.Errorf("detail view lacks the message:\n%s", view)
	}

	send(enter)
	if m.state != stateDecode {
		t.Fatalf("state = %d, want decode", m.state)
	}
	m.input.SetValue("01 00 ff ff 01")
	send(enter)
	if m.err != nil {
		t.Fatalf("decode: %v", m.err)
	}
	if got, want := m.result, "map[at:map[x:1 y:-1] kind:1]"; got != want {
		t.Errorf("result = %q, want %q", got, want)
	}

	send(enter)
	send(enter)
	m.input.SetValue("01 00")
	send(enter)
	if !errors.IsPhase(m.err, errors.PhaseDecode) {
		t.Errorf("truncated input error = %v, want decode phase", m.err)
	}
}
