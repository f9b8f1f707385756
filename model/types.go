package model

import (
	"fmt"
	"strings"
)

// Type is the closed set of protocol types. Every switch over a Type in this
// module lists all variants; adding one is a compile-visible change.
type Type interface {
	isType()
	// TypeName is the registered name, or "" for anonymous types.
	TypeName() string
}

// Integer is a fixed-width integer.
type Integer struct {
	Bits   int
	Signed bool
}

// Pointer is an offset on the wire that decodes to a reference.
// Width 0 selects the protocol default.
type Pointer struct {
	Target Type
	Attrs  Attrs
	Width  int
}

// SizeKind selects how an array's element count is found.
type SizeKind int

const (
	SizeConst SizeKind = iota
	SizeRemaining
	SizeField
	SizeImage
	SizeBytes
	SizeCString
)

var sizeKindNames = [...]string{
	SizeConst:     "constant",
	SizeRemaining: "remaining",
	SizeField:     "field",
	SizeImage:     "image_size",
	SizeBytes:     "bytes",
	SizeCString:   "cstring",
}

func (k SizeKind) String() string {
	if int(k) < len(sizeKindNames) {
		return sizeKindNames[k]
	}
	return fmt.Sprintf("SizeKind(%d)", int(k))
}

// ArraySize describes an array's element count.
type ArraySize struct {
	Field  string // SizeField
	Width  string // SizeImage
	Height string // SizeImage
	Length string // SizeBytes: sibling carrying the byte length
	Count  string // SizeBytes: sibling receiving the element count
	N      uint64 // SizeConst
	BPP    int    // SizeImage
	Kind   SizeKind
}

// Array is a sequence of Elem.
type Array struct {
	Elem  Type
	Attrs Attrs
	Size  ArraySize
}

// Container holds the members shared by structs and messages.
type Container struct {
	Name    string
	Members []Containee
	Attrs   Attrs
	Line    int
}

// Struct is a named aggregate.
type Struct struct {
	Container
}

// Message is a top-level wire unit. Anonymous messages are named after the
// channel member that declares them.
type Message struct {
	owner *ChannelMessage
	Container
}

// EnumValue is one label of an enum or flag set. For flags, Value is the bit index.
type EnumValue struct {
	Name  string
	Value int64
}

// Enum is an integer with named values.
type Enum struct {
	Name   string
	Values []EnumValue
	Attrs  Attrs
	Bits   int
}

// Flags is a bit set with named bits.
type Flags struct {
	Name   string
	Values []EnumValue
	Attrs  Attrs
	Bits   int
}

// Alias is a typedef.
type Alias struct {
	Underlying Type
	Name       string
	Attrs      Attrs
}

// ChannelMessage is one message slot of a channel.
type ChannelMessage struct {
	Message *Message
	// Channel is the channel that declared the slot; inherited slots keep
	// their base channel.
	Channel *Channel
	Name    string
	ID      uint32
	Client  bool
}

// Channel is a message catalogue, optionally extending a base channel.
type Channel struct {
	Base       *Channel
	Name       string
	MemberName string
	Server     []*ChannelMessage
	Client     []*ChannelMessage
	Attrs      Attrs
}

// ProtocolChannel instantiates a channel under a protocol-level name and id.
type ProtocolChannel struct {
	Channel *Channel
	Name    string
	ID      uint32
}

// Protocol is the root of a resolved model.
type Protocol struct {
	Name     string
	Channels []*ProtocolChannel
}

func (*Integer) isType()  {}
func (*Pointer) isType()  {}
func (*Array) isType()    {}
func (*Struct) isType()   {}
func (*Message) isType()  {}
func (*Enum) isType()     {}
func (*Flags) isType()    {}
func (*Alias) isType()    {}
func (*Channel) isType()  {}
func (*Protocol) isType() {}

func (t *Integer) TypeName() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

func (t *Pointer) TypeName() string  { return "" }
func (t *Array) TypeName() string    { return "" }
func (t *Struct) TypeName() string   { return t.Name }
func (t *Message) TypeName() string  { return t.Name }
func (t *Enum) TypeName() string     { return t.Name }
func (t *Flags) TypeName() string    { return t.Name }
func (t *Alias) TypeName() string    { return t.Name }
func (t *Channel) TypeName() string  { return t.Name }
func (t *Protocol) TypeName() string { return t.Name }

// Owner returns the channel slot that declares an anonymous message.
func (m *Message) Owner() *ChannelMessage {
	return m.owner
}

// CName returns the message's lower-case identifier: its declared name, or
// msg_<channel>_<member> / msgc_<channel>_<member> for anonymous messages.
func (m *Message) CName() string {
	if m.Name != "" {
		return m.Name
	}
	if m.owner == nil {
		return "msg"
	}
	prefix := "msg_"
	if m.owner.Client {
		prefix = "msgc_"
	}
	if ch := m.owner.Channel.MemberName; ch != "" {
		prefix += ch + "_"
	}
	return prefix + m.owner.Name
}

// Unalias strips typedefs.
func Unalias(t Type) Type {
	for {
		a, ok := t.(*Alias)
		if !ok {
			return t
		}
		t = a.Underlying
	}
}

// AsContainer returns the member container of a struct or message.
func AsContainer(t Type) (*Container, bool) {
	switch v := Unalias(t).(type) {
	case *Struct:
		return &v.Container, true
	case *Message:
		return &v.Container, true
	}
	return nil, false
}

// IsPrimitive reports whether t is an integer, enum or flag set.
func IsPrimitive(t Type) bool {
	switch Unalias(t).(type) {
	case *Integer, *Enum, *Flags:
		return true
	}
	return false
}

// PrimitiveBits returns the width of a primitive type.
func PrimitiveBits(t Type) (bits int, signed bool, ok bool) {
	switch v := Unalias(t).(type) {
	case *Integer:
		return v.Bits, v.Signed, true
	case *Enum:
		return v.Bits, false, true
	case *Flags:
		return v.Bits, false, true
	}
	return 0, false, false
}

// Describe returns a short human-readable rendering of t.
func Describe(t Type) string {
	switch v := t.(type) {
	case *Integer:
		return v.TypeName()
	case *Pointer:
		return Describe(v.Target) + "*"
	case *Array:
		return Describe(v.Elem) + "[" + v.Size.describe() + "]"
	case *Struct:
		return "struct " + v.Name
	case *Message:
		return "message " + v.CName()
	case *Enum:
		return fmt.Sprintf("enum%d %s", v.Bits, v.Name)
	case *Flags:
		return fmt.Sprintf("flags%d %s", v.Bits, v.Name)
	case *Alias:
		return v.Name
	case *Channel:
		return "channel " + v.Name
	case *Protocol:
		return "protocol " + v.Name
	}
	return "?"
}

func (s ArraySize) describe() string {
	switch s.Kind {
	case SizeConst:
		return fmt.Sprint(s.N)
	case SizeRemaining:
		return ""
	case SizeField:
		return s.Field
	case SizeImage:
		return fmt.Sprintf("image_size(%d, %s, %s)", s.BPP, s.Width, s.Height)
	case SizeBytes:
		if s.Count != "" && s.Count != s.Length {
			return fmt.Sprintf("bytes(%s, %s)", s.Length, s.Count)
		}
		return fmt.Sprintf("bytes(%s)", s.Length)
	case SizeCString:
		return "cstring()"
	}
	return "?"
}

// Label returns the label for an enum value, or "" if none.
func (e *Enum) Label(v int64) string {
	for _, ev := range e.Values {
		if ev.Value == v {
			return ev.Name
		}
	}
	return ""
}

// Value returns the value of a label.
func (e *Enum) Value(label string) (int64, bool) {
	return lookupValue(e.Values, label)
}

// Value returns the bit index of a label.
func (f *Flags) Value(label string) (int64, bool) {
	return lookupValue(f.Values, label)
}

// Mask returns the union of all declared bits.
func (f *Flags) Mask() uint64 {
	var m uint64
	for _, v := range f.Values {
		m |= 1 << uint(v.Value)
	}
	return m
}

func lookupValue(values []EnumValue, label string) (int64, bool) {
	for _, v := range values {
		if v.Name == label {
			return v.Value, true
		}
	}
	return 0, false
}

// Messages returns the slots of one direction.
func (c *Channel) Messages(client bool) []*ChannelMessage {
	if client {
		return c.Client
	}
	return c.Server
}

// Lookup returns the channel slot with the given id.
func (c *Channel) Lookup(client bool, id uint32) (*ChannelMessage, bool) {
	for _, m := range c.Messages(client) {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// ChannelByName returns the protocol channel instantiated under name.
func (p *Protocol) ChannelByName(name string) (*ProtocolChannel, bool) {
	for _, c := range p.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// defaultMemberName derives "foo" from "FooChannel".
func defaultMemberName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "Channel"))
}
