package parser

import (
	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/dsl/internal/token"
	"github.com/wippyai/protogen/errors"
)

type Parser struct {
	tokens []token.Token
	pos    int
	// client is true while parsing the client: section of a channel body.
	client bool
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) Parse() (*ast.File, error) {
	return p.parseFile()
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) *token.Token {
	if p.pos+n >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+n]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) line() int {
	if t := p.peek(); t != nil {
		return t.Line
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Line
	}
	return 0
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, errors.Syntax(p.line(), "unexpected end of input, expected %v", typ)
	}
	if t.Type != typ {
		return nil, errors.Syntax(t.Line, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *Parser) expectPunct(s string) error {
	t := p.next()
	if t == nil {
		return errors.Syntax(p.line(), "unexpected end of input, expected %q", s)
	}
	if t.Type != token.Punct || t.Value != s {
		return errors.Syntax(t.Line, "expected %q, got %q", s, t.Value)
	}
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	t, err := p.expect(token.Ident)
	if err != nil {
		return "", err
	}
	return t.Value, nil
}

func (p *Parser) isPunct(s string) bool {
	t := p.peek()
	return t != nil && t.Type == token.Punct && t.Value == s
}

func (p *Parser) isKeyword(s string) bool {
	t := p.peek()
	return t != nil && t.Type == token.Ident && t.Value == s
}

// accept consumes the punctuation s when present.
func (p *Parser) accept(s string) bool {
	if p.isPunct(s) {
		p.pos++
		return true
	}
	return false
}
