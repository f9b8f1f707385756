package parser

import (
	"strconv"

	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/dsl/internal/token"
	"github.com/wippyai/protogen/errors"
)

func (p *Parser) parseBody() ([]ast.Field, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []ast.Field
	for !p.isPunct("}") {
		if p.peek() == nil {
			return nil, errors.Syntax(p.line(), "unexpected end of input, expected \"}\"")
		}
		var (
			f   ast.Field
			err error
		)
		if p.isKeyword("switch") {
			f, err = p.parseSwitch()
		} else {
			f, err = p.parseMember()
		}
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	p.next()
	return fields, nil
}

// parseTypeSpec parses an integer keyword, an inline struct or a type name.
func (p *Parser) parseTypeSpec() (ast.TypeExpr, error) {
	t := p.peek()
	if t == nil {
		return nil, errors.Syntax(p.line(), "unexpected end of input, expected type")
	}
	if t.Value == "struct" && t.Type == token.Ident {
		return p.parseStruct()
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if bits, signed, ok := isIntKeyword(name); ok {
		return &ast.Int{Bits: bits, Signed: signed}, nil
	}
	return &ast.Named{Name: name, Line: t.Line}, nil
}

func (p *Parser) parseMember() (*ast.Member, error) {
	line := p.line()
	typ, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	m := &ast.Member{Type: typ, Line: line}
	m.Pointer = p.accept("*")
	if m.Name, err = p.expectIdent(); err != nil {
		return nil, err
	}
	if p.accept("[") {
		if m.Array, err = p.parseArraySize(); err != nil {
			return nil, err
		}
	}
	if m.Attrs, err = p.parseAttrs(); err != nil {
		return nil, err
	}
	return m, p.expectPunct(";")
}

func (p *Parser) parseArraySize() (*ast.ArraySize, error) {
	if p.accept("]") {
		return &ast.ArraySize{Kind: ast.SizeRemaining}, nil
	}

	t := p.next()
	if t == nil {
		return nil, errors.Syntax(p.line(), "unexpected end of input in array size")
	}

	var size *ast.ArraySize
	switch {
	case t.Type == token.Number:
		n, err := strconv.ParseUint(t.Value, 0, 64)
		if err != nil {
			return nil, errors.Syntax(t.Line, "invalid array length %q", t.Value)
		}
		size = &ast.ArraySize{Kind: ast.SizeConst, N: n}

	case t.Value == "image_size" && p.isPunct("("):
		p.next()
		bpp, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		size = &ast.ArraySize{Kind: ast.SizeImage, BPP: int(bpp)}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		if size.Width, err = p.expectIdent(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		if size.Height, err = p.expectIdent(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}

	case t.Value == "bytes" && p.isPunct("("):
		p.next()
		length, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		size = &ast.ArraySize{Kind: ast.SizeBytes, Length: length}
		if p.accept(",") {
			if size.Count, err = p.expectIdent(); err != nil {
				return nil, err
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}

	case t.Value == "cstring" && p.isPunct("("):
		p.next()
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		size = &ast.ArraySize{Kind: ast.SizeCString}

	case t.Type == token.Ident:
		size = &ast.ArraySize{Kind: ast.SizeIdent, Name: t.Value}

	default:
		return nil, errors.Syntax(t.Line, "invalid array size %q", t.Value)
	}

	return size, p.expectPunct("]")
}

func (p *Parser) parseSwitch() (*ast.Switch, error) {
	line := p.next().Line
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	sw := &ast.Switch{Line: line}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	sw.Var = path
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	for !p.isPunct("}") {
		c := &ast.Case{Line: p.line()}
		for p.isKeyword("case") || p.isKeyword("default") {
			t := p.next()
			var g ast.Guard
			if t.Value == "default" {
				g.Default = true
			} else {
				g.Not = p.accept("!")
				if g.Label, err = p.expectIdent(); err != nil {
					return nil, err
				}
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			c.Guards = append(c.Guards, g)
		}
		if len(c.Guards) == 0 {
			t := p.peek()
			if t == nil {
				return nil, errors.Syntax(p.line(), "unexpected end of input in switch")
			}
			return nil, errors.Syntax(t.Line, "expected case or default, got %q", t.Value)
		}
		if c.Member, err = p.parseMember(); err != nil {
			return nil, err
		}
		sw.Cases = append(sw.Cases, c)
	}
	p.next()

	if sw.Name, err = p.expectIdent(); err != nil {
		return nil, err
	}
	if sw.Attrs, err = p.parseAttrs(); err != nil {
		return nil, err
	}
	return sw, p.expectPunct(";")
}

// parsePath parses a dotted member path. Dots are not word characters, so
// the segments arrive as separate tokens.
func (p *Parser) parsePath() (string, error) {
	path, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	for p.isPunct(".") {
		p.next()
		seg, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		path += "." + seg
	}
	return path, nil
}

func (p *Parser) parseAttrs() ([]ast.Attr, error) {
	var attrs []ast.Attr
	for p.isPunct("@") {
		line := p.next().Line
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		a := ast.Attr{Name: name, Line: line}
		if p.accept("(") {
			for !p.isPunct(")") {
				t := p.next()
				if t == nil {
					return nil, errors.Syntax(line, "unexpected end of input in attribute %s", name)
				}
				switch t.Type {
				case token.Number:
					n, err := strconv.ParseInt(t.Value, 0, 64)
					if err != nil {
						return nil, errors.Syntax(t.Line, "invalid integer %q", t.Value)
					}
					a.Args = append(a.Args, ast.AttrArg{Int: n, IsInt: true})
				case token.Ident:
					a.Args = append(a.Args, ast.AttrArg{Ident: t.Value})
				default:
					return nil, errors.Syntax(t.Line, "invalid attribute argument %q", t.Value)
				}
				if !p.accept(",") {
					break
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func (p *Parser) parseInt() (int64, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(t.Value, 0, 64)
	if err != nil {
		return 0, errors.Syntax(t.Line, "invalid integer %q", t.Value)
	}
	return n, nil
}
