package gen

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/model"
)

// WITInterface is the interface the message catalogue is rendered into.
const WITInterface = "messages"

// WITTypes maps the protocol's types onto WIT type definitions: enums and
// flag sets, a record per non-empty struct or message, a variant per switch
// and a variant per channel direction listing its messages. Definitions
// come after the ones they reference, except along pointer cycles.
func (g *Generator) WITTypes() ([]*wit.TypeDef, error) {
	b := &witBuilder{
		named: make(map[any]*wit.TypeDef),
		empty: make(map[*model.Container]bool),
		names: make(map[string]bool),
	}
	for _, t := range g.res.Context.Types() {
		switch t.(type) {
		case *model.Enum, *model.Flags, *model.Struct, *model.Message:
			if _, err := b.typeOf(t, ""); err != nil {
				return nil, err
			}
		}
	}
	for _, pc := range g.res.Protocol.Channels {
		for _, client := range []bool{false, true} {
			if err := b.channel(pc, client); err != nil {
				return nil, err
			}
		}
	}
	return b.defs, nil
}

// WIT renders the message catalogue as a WIT package.
func (g *Generator) WIT() (string, error) {
	defs, err := g.WITTypes()
	if err != nil {
		return "", err
	}
	ns := label(g.opts.Prefix)
	if ns == "" {
		ns = "protogen"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Generated by protogen from %s. DO NOT EDIT.\n\n", g.sourceName())
	fmt.Fprintf(&b, "package %s:%s;\n\ninterface %s {\n", ns, label(g.res.Protocol.Name), WITInterface)
	for i, td := range defs {
		if i > 0 {
			b.WriteString("\n")
		}
		renderTypeDef(&b, td)
	}
	b.WriteString("}\n")

	Logger().Debug("generated wit",
		zap.String("protocol", g.res.Protocol.Name),
		zap.Int("types", len(defs)))
	return b.String(), nil
}

type witBuilder struct {
	named map[any]*wit.TypeDef
	empty map[*model.Container]bool
	names map[string]bool
	defs  []*wit.TypeDef
}

// define registers a named definition. It is appended to the output by
// finish once its contents are built.
func (b *witBuilder) define(key any, name string, kind wit.TypeDefKind) (*wit.TypeDef, error) {
	if b.names[name] {
		return nil, errors.New(errors.PhaseGenerate, errors.KindDuplicateType).
			Type(name).Detail("two types map to the same WIT name").Build()
	}
	b.names[name] = true
	td := &wit.TypeDef{Name: &name, Kind: kind}
	if key != nil {
		b.named[key] = td
	}
	return td, nil
}

func (b *witBuilder) finish(td *wit.TypeDef) { b.defs = append(b.defs, td) }

// typeOf returns the WIT type of t, or nil for types without content.
// hint names anonymous structs.
func (b *witBuilder) typeOf(t model.Type, hint string) (wit.Type, error) {
	switch v := model.Unalias(t).(type) {
	case *model.Integer:
		return integer(v.Bits, v.Signed), nil
	case *model.Enum:
		if td, ok := b.named[v]; ok {
			return td, nil
		}
		e := &wit.Enum{}
		for _, ev := range v.Values {
			e.Cases = append(e.Cases, wit.EnumCase{Name: label(ev.Name)})
		}
		td, err := b.define(v, label(v.Name), e)
		if err != nil {
			return nil, err
		}
		b.finish(td)
		return td, nil
	case *model.Flags:
		if td, ok := b.named[v]; ok {
			return td, nil
		}
		fl := &wit.Flags{}
		for _, fv := range v.Values {
			fl.Flags = append(fl.Flags, wit.Flag{Name: label(fv.Name)})
		}
		td, err := b.define(v, label(v.Name), fl)
		if err != nil {
			return nil, err
		}
		b.finish(td)
		return td, nil
	case *model.Struct:
		name := v.Name
		if name == "" {
			name = hint
		}
		return b.container(&v.Container, name)
	case *model.Message:
		return b.container(&v.Container, v.CName())
	case *model.Pointer:
		inner, err := b.typeOf(v.Target, hint)
		if err != nil || inner == nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: inner}}, nil
	case *model.Array:
		if v.Size.Kind == model.SizeCString {
			return wit.String{}, nil
		}
		elem, err := b.typeOf(v.Elem, hint)
		if err != nil || elem == nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	}
	return nil, errors.Unimplemented([]string{hint}, "WIT rendering of "+model.Describe(t))
}

// container returns the record of ct. Containers without fields have no
// WIT record and yield nil.
func (b *witBuilder) container(ct *model.Container, name string) (wit.Type, error) {
	if td, ok := b.named[ct]; ok {
		return td, nil
	}
	if b.empty[ct] {
		return nil, nil
	}
	rec := &wit.Record{}
	td, err := b.define(ct, label(name), rec)
	if err != nil {
		return nil, err
	}

	for _, c := range ct.Members {
		var ft wit.Type
		switch m := c.(type) {
		case *model.Member:
			if m.Has(model.AttrZero) {
				continue
			}
			ft, err = b.typeOf(m.Type, name+"_"+m.Name)
		case *model.Switch:
			ft, err = b.switchType(m, name)
		}
		if err != nil {
			return nil, err
		}
		if ft != nil {
			rec.Fields = append(rec.Fields, wit.Field{Name: label(c.MemberName()), Type: ft})
		}
	}

	if len(rec.Fields) == 0 {
		delete(b.named, ct)
		delete(b.names, label(name))
		b.empty[ct] = true
		return nil, nil
	}
	b.finish(td)
	return td, nil
}

func (b *witBuilder) switchType(s *model.Switch, owner string) (wit.Type, error) {
	v := &wit.Variant{}
	td, err := b.define(s, label(owner+"_"+s.Name), v)
	if err != nil {
		return nil, err
	}
	for _, cs := range s.Cases {
		m := cs.Member
		var ct wit.Type
		if !m.Has(model.AttrZero) {
			if ct, err = b.typeOf(m.Type, owner+"_"+m.Name); err != nil {
				return nil, err
			}
		}
		v.Cases = append(v.Cases, wit.Case{Name: label(m.Name), Type: ct})
	}
	b.finish(td)
	return td, nil
}

// channel renders the messages of one channel direction as a variant.
func (b *witBuilder) channel(pc *model.ProtocolChannel, client bool) error {
	msgs := pc.Channel.Messages(client)
	if len(msgs) == 0 {
		return nil
	}
	dir := "server"
	if client {
		dir = "client"
	}
	v := &wit.Variant{}
	td, err := b.define(nil, label(pc.Name+"_"+dir), v)
	if err != nil {
		return err
	}
	for _, cm := range msgs {
		mt, err := b.typeOf(cm.Message, cm.Name)
		if err != nil {
			return err
		}
		v.Cases = append(v.Cases, wit.Case{Name: label(cm.Name), Type: mt})
	}
	b.finish(td)
	return nil
}

func integer(bits int, signed bool) wit.Type {
	switch {
	case bits == 8 && signed:
		return wit.S8{}
	case bits == 8:
		return wit.U8{}
	case bits == 16 && signed:
		return wit.S16{}
	case bits == 16:
		return wit.U16{}
	case bits == 32 && signed:
		return wit.S32{}
	case bits == 32:
		return wit.U32{}
	case signed:
		return wit.S64{}
	}
	return wit.U64{}
}

// label converts a protocol identifier into a WIT label. WIT words cannot
// start with a digit, so numeric words are joined to the word before them.
func label(s string) string {
	if s == "" {
		return ""
	}
	var words []string
	for _, w := range strings.Split(strings.ToLower(strcase.ToKebab(s)), "-") {
		switch {
		case w == "":
		case w[0] >= '0' && w[0] <= '9' && len(words) > 0:
			words[len(words)-1] += w
		case w[0] >= '0' && w[0] <= '9':
			words = append(words, "n"+w)
		default:
			words = append(words, w)
		}
	}
	return strings.Join(words, "-")
}

var witKeywords = map[string]bool{
	"as": true, "bool": true, "borrow": true, "char": true, "constructor": true,
	"enum": true, "export": true, "f32": true, "f64": true, "flags": true,
	"from": true, "func": true, "future": true, "import": true, "include": true,
	"interface": true, "list": true, "option": true, "own": true, "package": true,
	"record": true, "resource": true, "result": true, "s16": true, "s32": true,
	"s64": true, "s8": true, "static": true, "stream": true, "string": true,
	"tuple": true, "type": true, "u16": true, "u32": true, "u64": true, "u8": true,
	"use": true, "variant": true, "with": true, "world": true,
}

func escape(name string) string {
	if witKeywords[name] {
		return "%" + name
	}
	return name
}

func renderTypeDef(b *strings.Builder, td *wit.TypeDef) {
	name := escape(*td.Name)
	switch k := td.Kind.(type) {
	case *wit.Record:
		fmt.Fprintf(b, "  record %s {\n", name)
		for _, f := range k.Fields {
			fmt.Fprintf(b, "    %s: %s,\n", escape(f.Name), typeString(f.Type))
		}
	case *wit.Enum:
		fmt.Fprintf(b, "  enum %s {\n", name)
		for _, c := range k.Cases {
			fmt.Fprintf(b, "    %s,\n", escape(c.Name))
		}
	case *wit.Flags:
		fmt.Fprintf(b, "  flags %s {\n", name)
		for _, f := range k.Flags {
			fmt.Fprintf(b, "    %s,\n", escape(f.Name))
		}
	case *wit.Variant:
		fmt.Fprintf(b, "  variant %s {\n", name)
		for _, c := range k.Cases {
			if c.Type == nil {
				fmt.Fprintf(b, "    %s,\n", escape(c.Name))
				continue
			}
			fmt.Fprintf(b, "    %s(%s),\n", escape(c.Name), typeString(c.Type))
		}
	default:
		return
	}
	b.WriteString("  }\n")
}

func typeString(t wit.Type) string {
	switch v := t.(type) {
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return escape(*v.Name)
		}
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + typeString(k.Type) + ">"
		case *wit.Option:
			return "option<" + typeString(k.Type) + ">"
		}
	}
	return fmt.Sprintf("%T", t)
}
