package gen

import (
	"fmt"
	"strings"

	"github.com/wippyai/protogen/codec"
	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/model"
)

const (
	importProtogen = "github.com/wippyai/protogen"
	importCodec    = "github.com/wippyai/protogen/codec"
)

// bootstrap embeds the protocol source and renders the lazy compile step
// every wrapper goes through.
func (g *Generator) bootstrap(f *file) error {
	for _, name := range []string{"protocolSource", "protocolOnce", "protocolResult", "protocolErr", "compiledProtocol", "channelMessage"} {
		if err := f.declare(name, "protocol runtime"); err != nil {
			return err
		}
	}
	f.use("context")
	f.use("sync")
	f.use(importProtogen)
	f.use(importCodec)

	o := g.res.Options
	f.printf("const protocolSource = %s\n\n", goString(g.res.Source))
	f.printf(`var (
	protocolOnce   sync.Once
	protocolResult *protogen.Result
	protocolErr    error
)

// compiledProtocol compiles the embedded protocol on first use.
func compiledProtocol() (*protogen.Result, error) {
	protocolOnce.Do(func() {
		protocolResult, protocolErr = protogen.Compile(context.Background(), %q, protocolSource, protogen.Options{
			PointerWidth:      %d,
			ExtraAlign:        %d,
			MaxAlloc:          %d,
			BigEndian:         %t,
			AllowDuplicateIDs: %t,
		})
	})
	return protocolResult, protocolErr
}

func channelMessage(channel, name string, client bool) (*codec.Plan, error) {
	res, err := compiledProtocol()
	if err != nil {
		return nil, err
	}
	return res.ChannelMessage(channel, name, client)
}

`, g.sourceName(), o.PointerWidth, o.ExtraAlign, o.MaxAlloc, o.BigEndian, o.AllowDuplicateIDs)
	return nil
}

// parsers renders the dispatcher constructor of one side and a typed
// decode entry point per incoming message. client selects the side that
// receives the messages.
func (g *Generator) parsers(f *file, incomingClient bool) error {
	side := codec.Server
	if !incomingClient {
		side = codec.Client
	}
	ctor := ident(side.String(), "parser")
	if err := f.declare(ctor, side.String()+" dispatcher"); err != nil {
		return err
	}
	f.printf("// %s returns the dispatcher decoding every message a %s receives.\n", ctor, side)
	f.printf(`func %s() (*codec.Dispatcher, error) {
	res, err := compiledProtocol()
	if err != nil {
		return nil, err
	}
	return res.Dispatcher(codec.%s)
}

`, ctor, ident(side.String()))

	return g.eachMessage(incomingClient, func(pc *model.ProtocolChannel, cm *model.ChannelMessage) error {
		name := ident("parse", messageName(pc.Name, cm.Name, incomingClient))
		if err := f.declare(name, pc.Channel.Name+"."+cm.Name); err != nil {
			return err
		}
		doc, err := g.messageDoc(name, "decodes", pc, cm)
		if err != nil {
			return err
		}
		f.printf("%s", doc)
		f.printf(`func %s(data []byte, minor int) (*codec.Message, error) {
	p, err := channelMessage(%q, %q, %t)
	if err != nil {
		return nil, err
	}
	return p.Decode(data, minor)
}

`, name, pc.Channel.Name, cm.Name, cm.Client)
		return nil
	})
}

// marshallers renders one marshal entry point per message sent in the
// given direction.
func (g *Generator) marshallers(f *file, client bool) error {
	return g.eachMessage(client, func(pc *model.ProtocolChannel, cm *model.ChannelMessage) error {
		name := g.wrapperIdent(g.opts.Private, "marshal", messageName(pc.Name, cm.Name, client))
		if err := f.declare(name, pc.Channel.Name+"."+cm.Name); err != nil {
			return err
		}
		doc, err := g.messageDoc(name, "marshals", pc, cm)
		if err != nil {
			return err
		}
		f.printf("%s", doc)
		f.printf(`//
// Pointer members without @marshall are returned as outputs for the caller
// to fill.
func %s(m *codec.Marshaller, rec codec.Record, minor int) (codec.Outputs, error) {
	p, err := channelMessage(%q, %q, %t)
	if err != nil {
		return nil, err
	}
	return p.Marshal(m, rec, codec.EncodeOptions{Minor: minor})
}

`, name, pc.Channel.Name, cm.Name, cm.Client)
		return nil
	})
}

// structMarshaller renders a standalone marshaller for a named struct.
func (g *Generator) structMarshaller(f *file, name string) error {
	t, ok := g.res.Context.Lookup(name)
	if !ok {
		return errors.UnknownType(0, name)
	}
	if _, ok := t.(*model.Struct); !ok {
		return errors.New(errors.PhaseGenerate, errors.KindTypeMismatch).
			Type(name).Detail("struct marshallers need a struct, got %s", model.Describe(t)).Build()
	}
	plan, err := g.res.Compiler.Compile(t)
	if err != nil {
		return err
	}

	fn := g.wrapperIdent(g.opts.Private, "marshal", name)
	if err := f.declare(fn, name); err != nil {
		return err
	}
	f.printf("// %s marshals a %s struct into m.\n//\n// Wire size: %s\n", fn, name, plan.Formulas.Nw)
	f.printf(`func %s(m *codec.Marshaller, rec codec.Record) (codec.Outputs, error) {
	res, err := compiledProtocol()
	if err != nil {
		return nil, err
	}
	p, err := res.Type(%q)
	if err != nil {
		return nil, err
	}
	return p.Marshal(m, rec, codec.EncodeOptions{})
}

`, fn, name)
	return nil
}

func (g *Generator) eachMessage(client bool, fn func(*model.ProtocolChannel, *model.ChannelMessage) error) error {
	for _, pc := range g.res.Protocol.Channels {
		for _, cm := range pc.Channel.Messages(client) {
			if err := fn(pc, cm); err != nil {
				return err
			}
		}
	}
	return nil
}

// messageDoc renders the doc comment of a message wrapper: its origin,
// size formulas and build conditions of @ifdef members.
func (g *Generator) messageDoc(fn, verb string, pc *model.ProtocolChannel, cm *model.ChannelMessage) (string, error) {
	plan, err := g.res.ChannelMessage(pc.Channel.Name, cm.Name, cm.Client)
	if err != nil {
		return "", err
	}
	dir := "server"
	if cm.Client {
		dir = "client"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s, %s message %d of the %s channel.\n\n", fn, verb, plan.Name, dir, cm.ID, pc.Name)
	fmt.Fprintf(&b, "Wire size: %s\n", plan.Formulas.Nw)
	fmt.Fprintf(&b, "Memory size: %s\n", plan.Formulas.Mem)
	for _, cond := range ifdefs(&cm.Message.Container) {
		fmt.Fprintf(&b, "Requires %s.\n", cond)
	}
	return comment(b.String()), nil
}

// ifdefs lists "member (NAME)" for members guarded by @ifdef.
func ifdefs(ct *model.Container) []string {
	var out []string
	for _, c := range ct.Members {
		if name, ok := c.Attributes().Ident(model.AttrIfdef); ok {
			out = append(out, fmt.Sprintf("%s for member %s", name, c.MemberName()))
		}
	}
	return out
}
