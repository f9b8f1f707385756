package gen

import (
	"path/filepath"
	"strings"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/errors"
)

// DefaultPackage is the package clause of generated Go files.
const DefaultPackage = "protocol"

// Options controls naming in generated artifacts.
type Options struct {
	// Package is the Go package of generated files.
	Package string
	// Prefix is prepended to enum, channel and message constants.
	Prefix string
	// Private makes message and struct marshaller wrappers unexported.
	Private bool
}

// Artifacts selects what Generate renders into one Go file.
type Artifacts struct {
	// Structs lists structs that get a standalone marshaller.
	Structs       []string
	Enums         bool
	Demarshallers bool
	Marshallers   bool
	// Server renders the server side: demarshallers for client messages
	// and marshallers for server messages.
	Server bool
	// Client renders the client side.
	Client bool
}

// Generator renders artifacts of one compiled protocol.
type Generator struct {
	res  *protogen.Result
	opts Options
}

// New returns a generator over a compiled protocol.
func New(res *protogen.Result, opts Options) *Generator {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	return &Generator{res: res, opts: opts}
}

// Generate renders the selected artifacts as one gofmt-formatted Go file.
func (g *Generator) Generate(a Artifacts) ([]byte, error) {
	if (a.Demarshallers || a.Marshallers) && !a.Server && !a.Client {
		return nil, errors.InvalidInput(errors.PhaseGenerate,
			"demarshallers and marshallers need the server or client side")
	}

	f := newFile(g.opts.Package, g.sourceName())
	if a.Enums {
		if err := g.enums(f); err != nil {
			return nil, err
		}
	}
	if a.Demarshallers || a.Marshallers || len(a.Structs) > 0 {
		if err := g.bootstrap(f); err != nil {
			return nil, err
		}
	}
	if a.Demarshallers {
		for _, client := range sides(a) {
			// The server parses what clients send.
			if err := g.parsers(f, !client); err != nil {
				return nil, err
			}
		}
	}
	if a.Marshallers {
		for _, client := range sides(a) {
			if err := g.marshallers(f, client); err != nil {
				return nil, err
			}
		}
	}
	for _, name := range a.Structs {
		if err := g.structMarshaller(f, name); err != nil {
			return nil, err
		}
	}

	out, err := f.format()
	if err != nil {
		return nil, err
	}
	Logger().Debug("generated go source",
		zap.String("protocol", g.res.Protocol.Name),
		zap.Int("bytes", len(out)))
	return out, nil
}

// sides lists the selected directions as client flags.
func sides(a Artifacts) []bool {
	var out []bool
	if a.Server {
		out = append(out, false)
	}
	if a.Client {
		out = append(out, true)
	}
	return out
}

func (g *Generator) sourceName() string {
	if g.res.File == nil || g.res.File.Name == "" {
		return g.res.Protocol.Name
	}
	return filepath.Base(g.res.File.Name)
}

// ident joins the non-empty parts with underscores and camel-cases them
// into an exported Go identifier.
func ident(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strcase.ToCamel(strings.Join(kept, "_"))
}

// wrapperIdent names a message or struct wrapper, unexported for private
// marshallers.
func (g *Generator) wrapperIdent(private bool, parts ...string) string {
	name := ident(parts...)
	if private {
		return strcase.ToLowerCamel(name)
	}
	return name
}

// messageName is the identifier stem of a channel message:
// msg_<channel>_<member> for server messages and msgc_ for client ones.
func messageName(channel, member string, client bool) string {
	prefix := "msg"
	if client {
		prefix = "msgc"
	}
	if channel == "" {
		return prefix + "_" + member
	}
	return prefix + "_" + channel + "_" + member
}
