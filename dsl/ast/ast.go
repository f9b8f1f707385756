// Package ast defines the syntax tree produced by the protocol source parser.
//
// The tree is purely syntactic: type names are unresolved strings and
// attributes are kept as written. Resolution happens in package model.
package ast

// File is one parsed protocol source.
type File struct {
	Protocol *Protocol
	Name     string
	Defs     []Def
}

// Def is a top-level definition.
type Def interface {
	defNode()
	DefName() string
	DefLine() int
}

// TypeExpr is a type reference in a member or typedef.
type TypeExpr interface {
	typeExpr()
}

// Field is a struct or message body entry.
type Field interface {
	fieldNode()
	FieldName() string
}

// Named refers to a type by name.
type Named struct {
	Name string
	Line int
}

// Int is a builtin integer type.
type Int struct {
	Bits   int
	Signed bool
}

// Attr is an @name(args) annotation.
type Attr struct {
	Name string
	Args []AttrArg
	Line int
}

// AttrArg is an identifier or integer attribute argument.
type AttrArg struct {
	Ident string
	Int   int64
	IsInt bool
}

// SizeKind selects how an array's element count is found.
type SizeKind int

const (
	SizeRemaining SizeKind = iota
	SizeConst
	SizeIdent
	SizeImage
	SizeBytes
	SizeCString
)

// ArraySize is the bracketed part of an array member.
type ArraySize struct {
	Name   string // SizeIdent
	Width  string // SizeImage
	Height string // SizeImage
	Length string // SizeBytes
	Count  string // SizeBytes, optional
	N      uint64 // SizeConst
	BPP    int    // SizeImage
	Kind   SizeKind
}

// Member is a plain field declaration.
type Member struct {
	Type    TypeExpr
	Array   *ArraySize
	Name    string
	Attrs   []Attr
	Line    int
	Pointer bool
}

// Guard is one case label of a switch.
type Guard struct {
	Label   string
	Default bool
	Not     bool
}

// Case is a switch arm with one or more guards.
type Case struct {
	Member *Member
	Guards []Guard
	Line   int
}

// Switch is a tagged variant selected by a previously declared field.
type Switch struct {
	Var   string
	Name  string
	Cases []*Case
	Attrs []Attr
	Line  int
}

// Typedef declares an alias.
type Typedef struct {
	Type  TypeExpr
	Name  string
	Attrs []Attr
	Line  int
}

// StructDef declares a struct, at top level or inline in a member.
type StructDef struct {
	Name   string
	Fields []Field
	Attrs  []Attr
	Line   int
}

// EnumValue is one label of an enum or flags definition.
type EnumValue struct {
	Name     string
	Value    int64
	HasValue bool
}

// EnumDef declares an enum or flag set.
type EnumDef struct {
	Name   string
	Values []EnumValue
	Attrs  []Attr
	Bits   int
	Line   int
	Flags  bool
}

// MessageDef declares a message. Inline channel messages have no name.
type MessageDef struct {
	Name   string
	Fields []Field
	Attrs  []Attr
	Line   int
}

// ChannelMember is a message declared in a channel body.
type ChannelMember struct {
	Message *MessageDef // inline message, or nil
	Ref     string      // named message, when Message is nil
	Name    string
	ID      int64
	Line    int
	HasID   bool
	Client  bool
}

// ChannelDef declares a channel.
type ChannelDef struct {
	Name    string
	Base    string
	Members []*ChannelMember
	Attrs   []Attr
	Line    int
}

// ProtocolMember instantiates a channel under a name.
type ProtocolMember struct {
	Channel string
	Name    string
	ID      int64
	Line    int
	HasID   bool
}

// Protocol is the root definition.
type Protocol struct {
	Name    string
	Members []*ProtocolMember
	Line    int
}

func (*Named) typeExpr()     {}
func (*Int) typeExpr()       {}
func (*StructDef) typeExpr() {}

func (*Member) fieldNode() {}
func (*Switch) fieldNode() {}

func (m *Member) FieldName() string { return m.Name }
func (s *Switch) FieldName() string { return s.Name }

func (*Typedef) defNode()    {}
func (*StructDef) defNode()  {}
func (*EnumDef) defNode()    {}
func (*MessageDef) defNode() {}
func (*ChannelDef) defNode() {}

func (d *Typedef) DefName() string    { return d.Name }
func (d *StructDef) DefName() string  { return d.Name }
func (d *EnumDef) DefName() string    { return d.Name }
func (d *MessageDef) DefName() string { return d.Name }
func (d *ChannelDef) DefName() string { return d.Name }

func (d *Typedef) DefLine() int    { return d.Line }
func (d *StructDef) DefLine() int  { return d.Line }
func (d *EnumDef) DefLine() int    { return d.Line }
func (d *MessageDef) DefLine() int { return d.Line }
func (d *ChannelDef) DefLine() int { return d.Line }

// FindAttr returns the first attribute with the given name.
func FindAttr(attrs []Attr, name string) (Attr, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}
