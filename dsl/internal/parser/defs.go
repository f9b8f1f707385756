package parser

import (
	"strings"

	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/errors"
)

var enumBits = map[string]struct {
	bits  int
	flags bool
}{
	"enum8":   {8, false},
	"enum16":  {16, false},
	"enum32":  {32, false},
	"flags8":  {8, true},
	"flags16": {16, true},
	"flags32": {32, true},
}

func (p *Parser) parseFile() (*ast.File, error) {
	f := &ast.File{}
	for p.peek() != nil {
		t := p.peek()
		if f.Protocol != nil {
			return nil, errors.Syntax(t.Line, "definitions after protocol are not allowed, got %q", t.Value)
		}

		var (
			def ast.Def
			err error
		)
		switch t.Value {
		case "typedef":
			def, err = p.parseTypedef()
		case "struct":
			var s *ast.StructDef
			s, err = p.parseStruct()
			def = s
			p.accept(";")
		case "message":
			def, err = p.parseMessage(true)
			p.accept(";")
		case "channel":
			def, err = p.parseChannel()
		case "protocol":
			f.Protocol, err = p.parseProtocol()
		default:
			if _, ok := enumBits[t.Value]; ok {
				def, err = p.parseEnum()
				break
			}
			return nil, errors.Syntax(t.Line, "expected definition, got %q", t.Value)
		}
		if err != nil {
			return nil, err
		}
		if def != nil {
			f.Defs = append(f.Defs, def)
		}
	}
	if f.Protocol == nil {
		return nil, errors.Syntax(p.line(), "missing protocol definition")
	}
	return f, nil
}

func (p *Parser) parseTypedef() (*ast.Typedef, error) {
	line := p.next().Line
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	typ, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &ast.Typedef{Name: name, Type: typ, Attrs: attrs, Line: line}, nil
}

func (p *Parser) parseStruct() (*ast.StructDef, error) {
	line := p.next().Line
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	fields, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	return &ast.StructDef{Name: name, Fields: fields, Attrs: attrs, Line: line}, nil
}

// parseMessage parses "message [NAME] { ... } attrs". Top-level messages
// must be named; channel-inline messages must not be.
func (p *Parser) parseMessage(named bool) (*ast.MessageDef, error) {
	line := p.next().Line
	var name string
	if named {
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		name = n
	}
	fields, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	return &ast.MessageDef{Name: name, Fields: fields, Attrs: attrs, Line: line}, nil
}

func (p *Parser) parseEnum() (*ast.EnumDef, error) {
	t := p.next()
	kind := enumBits[t.Value]
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	def := &ast.EnumDef{Name: name, Bits: kind.bits, Flags: kind.flags, Line: t.Line}
	for !p.isPunct("}") {
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		v := ast.EnumValue{Name: label}
		if p.accept("=") {
			n, err := p.parseInt()
			if err != nil {
				return nil, err
			}
			v.Value, v.HasValue = n, true
		}
		def.Values = append(def.Values, v)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	if def.Attrs, err = p.parseAttrs(); err != nil {
		return nil, err
	}
	p.accept(";")
	return def, nil
}

func (p *Parser) parseChannel() (*ast.ChannelDef, error) {
	line := p.next().Line
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	def := &ast.ChannelDef{Name: name, Line: line}
	if p.accept(":") {
		if def.Base, err = p.expectIdent(); err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	p.client = false
	for !p.isPunct("}") {
		t := p.peek()
		if t == nil {
			return nil, errors.Syntax(p.line(), "unexpected end of input in channel %s", name)
		}
		if (t.Value == "server" || t.Value == "client") && p.peekAt(1) != nil && p.peekAt(1).Value == ":" {
			p.client = t.Value == "client"
			p.pos += 2
			continue
		}
		m, err := p.parseChannelMember()
		if err != nil {
			return nil, err
		}
		def.Members = append(def.Members, m)
	}
	p.next()

	if def.Attrs, err = p.parseAttrs(); err != nil {
		return nil, err
	}
	p.accept(";")
	return def, nil
}

func (p *Parser) parseChannelMember() (*ast.ChannelMember, error) {
	m := &ast.ChannelMember{Line: p.line(), Client: p.client}
	if p.isKeyword("message") && p.peekAt(1) != nil && p.peekAt(1).Value == "{" {
		msg, err := p.parseMessage(false)
		if err != nil {
			return nil, err
		}
		m.Message = msg
	} else {
		ref, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		m.Ref = ref
	}

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	m.Name = name
	if p.accept("=") {
		if m.ID, err = p.parseInt(); err != nil {
			return nil, err
		}
		m.HasID = true
	}
	return m, p.expectPunct(";")
}

func (p *Parser) parseProtocol() (*ast.Protocol, error) {
	line := p.next().Line
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	proto := &ast.Protocol{Name: name, Line: line}
	for !p.isPunct("}") {
		if p.peek() == nil {
			return nil, errors.Syntax(p.line(), "unexpected end of input in protocol %s", name)
		}
		m := &ast.ProtocolMember{Line: p.line()}
		if m.Channel, err = p.expectIdent(); err != nil {
			return nil, err
		}
		if m.Name, err = p.expectIdent(); err != nil {
			return nil, err
		}
		if p.accept("=") {
			if m.ID, err = p.parseInt(); err != nil {
				return nil, err
			}
			m.HasID = true
		}
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		proto.Members = append(proto.Members, m)
	}
	p.next()
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return proto, nil
}

// isIntKeyword reports whether name is a builtin integer type.
func isIntKeyword(name string) (bits int, signed bool, ok bool) {
	switch name {
	case "int8", "uint8":
		bits = 8
	case "int16", "uint16":
		bits = 16
	case "int32", "uint32":
		bits = 32
	case "int64", "uint64":
		bits = 64
	default:
		return 0, false, false
	}
	return bits, !strings.HasPrefix(name, "u"), true
}
