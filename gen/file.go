package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/protogen/errors"
)

// file accumulates the body of one generated Go file.
type file struct {
	names   map[string]string
	imports map[string]bool
	pkg     string
	source  string
	body    bytes.Buffer
}

func newFile(pkg, source string) *file {
	return &file{
		pkg:     pkg,
		source:  source,
		names:   make(map[string]string),
		imports: make(map[string]bool),
	}
}

func (f *file) printf(format string, args ...any) {
	fmt.Fprintf(&f.body, format, args...)
}

func (f *file) use(path string) { f.imports[path] = true }

// declare reserves a package-level identifier.
func (f *file) declare(name, what string) error {
	if prev, ok := f.names[name]; ok {
		return errors.New(errors.PhaseGenerate, errors.KindDuplicateType).
			Type(name).
			Detail("%s and %s map to the same Go identifier", prev, what).
			Build()
	}
	f.names[name] = what
	return nil
}

// format assembles header, imports and body and runs gofmt over them.
func (f *file) format() ([]byte, error) {
	var out bytes.Buffer
	fmt.Fprintf(&out, "// Code generated by protogen from %s. DO NOT EDIT.\n\n", f.source)
	fmt.Fprintf(&out, "package %s\n\n", f.pkg)

	if len(f.imports) > 0 {
		var std, ext []string
		for path := range f.imports {
			if strings.Contains(strings.SplitN(path, "/", 2)[0], ".") {
				ext = append(ext, path)
			} else {
				std = append(std, path)
			}
		}
		sort.Strings(std)
		sort.Strings(ext)
		out.WriteString("import (\n")
		for _, p := range std {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		if len(std) > 0 && len(ext) > 0 {
			out.WriteString("\n")
		}
		for _, p := range ext {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		out.WriteString(")\n\n")
	}
	out.Write(f.body.Bytes())

	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindSyntax, err, "format generated source")
	}
	return src, nil
}

// goString renders s as a Go string literal, raw when possible.
func goString(s string) string {
	if !strings.Contains(s, "`") && !strings.Contains(s, "\r") {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}

// comment renders text as // lines.
func comment(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			b.WriteString("//\n")
			continue
		}
		b.WriteString("// " + line + "\n")
	}
	return b.String()
}
