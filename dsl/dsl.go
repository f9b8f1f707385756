package dsl

import (
	"os"

	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/dsl/internal/parser"
	"github.com/wippyai/protogen/dsl/internal/token"
	"github.com/wippyai/protogen/errors"
)

// Parse parses protocol source text. name is recorded on the returned file
// and used in diagnostics.
func Parse(name, source string) (*ast.File, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindSyntax, err, name)
	}
	f, err := parser.New(tokens).Parse()
	if err != nil {
		return nil, err
	}
	f.Name = name
	return f, nil
}

// ParseFile reads and parses a protocol source file.
func ParseFile(path string) (*ast.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "read "+path)
	}
	return Parse(path, string(data))
}
