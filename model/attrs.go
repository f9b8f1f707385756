package model

import (
	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/errors"
)

// Recognized attribute names.
const (
	AttrEnd        = "end"
	AttrToPtr      = "to_ptr"
	AttrMinor      = "minor"
	AttrChunk      = "chunk"
	AttrNonNull    = "nonnull"
	AttrZero       = "zero"
	AttrVirtual    = "virtual"
	AttrOutvar     = "outvar"
	AttrMarshall   = "marshall"
	AttrPtr32      = "ptr32"
	AttrAsPtr      = "as_ptr"
	AttrBytesCount = "bytes_count"
	AttrPtrArray   = "ptr_array"
	AttrNoCopy     = "nocopy"
	AttrFixedSize  = "fixedsize"
	AttrAnon       = "anon"
	AttrCType      = "ctype"
	AttrPrefix     = "prefix"
	AttrNoMarshal  = "nomarshal"
	AttrIfdef      = "ifdef"
)

type argKind int

const (
	argNone argKind = iota
	argInt
	argIdent
	argOptIdent
)

var attrArgs = map[string]argKind{
	AttrEnd:        argNone,
	AttrToPtr:      argNone,
	AttrMinor:      argInt,
	AttrChunk:      argNone,
	AttrNonNull:    argNone,
	AttrZero:       argNone,
	AttrVirtual:    argInt,
	AttrOutvar:     argIdent,
	AttrMarshall:   argNone,
	AttrPtr32:      argNone,
	AttrAsPtr:      argOptIdent,
	AttrBytesCount: argIdent,
	AttrPtrArray:   argNone,
	AttrNoCopy:     argNone,
	AttrFixedSize:  argNone,
	AttrAnon:       argNone,
	AttrCType:      argIdent,
	AttrPrefix:     argIdent,
	AttrNoMarshal:  argNone,
	AttrIfdef:      argIdent,
}

// propagated attributes are copied from a member onto its pointer or array type.
var propagated = []string{AttrPtrArray, AttrNonNull, AttrChunk}

// Arg is an attribute argument.
type Arg = ast.AttrArg

// Attrs maps attribute names to their arguments.
type Attrs map[string][]Arg

// Has reports whether the attribute is present.
func (a Attrs) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Int returns the first argument as an integer.
func (a Attrs) Int(name string) (int64, bool) {
	args, ok := a[name]
	if !ok || len(args) == 0 || !args[0].IsInt {
		return 0, false
	}
	return args[0].Int, true
}

// Ident returns the first argument as an identifier.
func (a Attrs) Ident(name string) (string, bool) {
	args, ok := a[name]
	if !ok || len(args) == 0 || args[0].IsInt {
		return "", false
	}
	return args[0].Ident, true
}

// Minor returns the minor-version threshold, or 0.
func (a Attrs) Minor() int {
	n, _ := a.Int(AttrMinor)
	return int(n)
}

// convertAttrs validates names and argument shapes.
func convertAttrs(path []string, in []ast.Attr) (Attrs, error) {
	out := make(Attrs, len(in))
	for _, a := range in {
		kind, ok := attrArgs[a.Name]
		if !ok {
			return nil, errors.New(errors.PhaseResolve, errors.KindUnknownAttribute).
				Path(path...).Line(a.Line).Detail("unknown attribute @%s", a.Name).Build()
		}
		if err := checkArgs(kind, a); err != nil {
			return nil, errors.New(errors.PhaseResolve, errors.KindInvalidInput).
				Path(path...).Line(a.Line).Detail("@%s: %s", a.Name, err).Build()
		}
		out[a.Name] = a.Args
	}
	return out, nil
}

func checkArgs(kind argKind, a ast.Attr) error {
	switch kind {
	case argNone:
		if len(a.Args) != 0 {
			return errArgs("takes no arguments")
		}
	case argInt:
		if len(a.Args) != 1 || !a.Args[0].IsInt {
			return errArgs("takes one integer argument")
		}
	case argIdent:
		if len(a.Args) != 1 || a.Args[0].IsInt {
			return errArgs("takes one name argument")
		}
	case argOptIdent:
		if len(a.Args) > 1 || (len(a.Args) == 1 && a.Args[0].IsInt) {
			return errArgs("takes an optional name argument")
		}
	}
	return nil
}

type errArgs string

func (e errArgs) Error() string { return string(e) }
