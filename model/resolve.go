package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/errors"
)

type resolver struct {
	ctx      *Context
	inline   map[*ast.StructDef]*Struct
	channels map[*Channel]*ast.ChannelDef
	chanDone map[*Channel]bool
	chanBusy map[*Channel]bool
	messages []*Message
	pending  []pendingCheck
}

type pendingCheck struct {
	c     *Container
	label string
}

// Resolve registers every definition of f in ctx and returns the resolved
// protocol. Definitions are declared before any body is resolved, so types
// may be referenced before their definition.
func Resolve(ctx *Context, f *ast.File) (*Protocol, error) {
	r := &resolver{
		ctx:      ctx,
		inline:   make(map[*ast.StructDef]*Struct),
		channels: make(map[*Channel]*ast.ChannelDef),
		chanDone: make(map[*Channel]bool),
		chanBusy: make(map[*Channel]bool),
	}

	for _, d := range f.Defs {
		if err := r.declare(d); err != nil {
			return nil, err
		}
	}
	// Typedefs and enums first: member checks look through aliases and
	// switch guards need enum values.
	for _, d := range f.Defs {
		switch d.(type) {
		case *ast.Typedef, *ast.EnumDef:
			if err := r.define(d); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range f.Defs {
		switch d.(type) {
		case *ast.Typedef, *ast.EnumDef:
		default:
			if err := r.define(d); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range f.Defs {
		if def, ok := d.(*ast.ChannelDef); ok {
			t, _ := ctx.Lookup(def.Name)
			if err := r.resolveChannel(t.(*Channel)); err != nil {
				return nil, err
			}
		}
	}
	for _, p := range r.pending {
		if err := r.checkContainer(p.c, p.label); err != nil {
			return nil, err
		}
	}
	if err := r.checkRecursion(); err != nil {
		return nil, err
	}
	if f.Protocol == nil {
		return nil, errors.InvalidInput(errors.PhaseResolve, "no protocol definition")
	}
	p, err := r.resolveProtocol(f.Protocol)
	if err != nil {
		return nil, err
	}
	Logger().Debug("resolved protocol",
		zap.String("protocol", p.Name),
		zap.Int("types", len(ctx.order)),
		zap.Int("channels", len(p.Channels)))
	return p, nil
}

func (r *resolver) declare(d ast.Def) error {
	var t Type
	switch v := d.(type) {
	case *ast.Typedef:
		t = &Alias{Name: v.Name}
		if s, ok := v.Type.(*ast.StructDef); ok {
			if err := r.declareInline(s); err != nil {
				return err
			}
		}
	case *ast.StructDef:
		s := &Struct{Container: Container{Name: v.Name, Line: v.Line}}
		r.inline[v] = s
		t = s
		if err := r.declareFields(v.Fields); err != nil {
			return err
		}
	case *ast.MessageDef:
		m := &Message{Container: Container{Name: v.Name, Line: v.Line}}
		t = m
		if err := r.declareFields(v.Fields); err != nil {
			return err
		}
	case *ast.EnumDef:
		if v.Flags {
			t = &Flags{Name: v.Name, Bits: v.Bits}
		} else {
			t = &Enum{Name: v.Name, Bits: v.Bits}
		}
	case *ast.ChannelDef:
		ch := &Channel{Name: v.Name}
		r.channels[ch] = v
		t = ch
	default:
		return errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("unsupported definition %T", d))
	}
	return r.ctx.Register(d.DefName(), t, d.DefLine())
}

// declareFields registers inline struct definitions found in member types.
func (r *resolver) declareFields(fields []ast.Field) error {
	for _, f := range fields {
		switch v := f.(type) {
		case *ast.Member:
			if s, ok := v.Type.(*ast.StructDef); ok {
				if err := r.declareInline(s); err != nil {
					return err
				}
			}
		case *ast.Switch:
			for _, c := range v.Cases {
				if s, ok := c.Member.Type.(*ast.StructDef); ok {
					if err := r.declareInline(s); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (r *resolver) declareInline(def *ast.StructDef) error {
	s := &Struct{Container: Container{Name: def.Name, Line: def.Line}}
	if err := r.ctx.Register(def.Name, s, def.Line); err != nil {
		return err
	}
	r.inline[def] = s
	return r.declareFields(def.Fields)
}

func (r *resolver) define(d ast.Def) error {
	t, _ := r.ctx.Lookup(d.DefName())
	switch v := d.(type) {
	case *ast.Typedef:
		alias := t.(*Alias)
		under, err := r.typeExpr(v.Type)
		if err != nil {
			return err
		}
		if under == Type(alias) {
			return errors.New(errors.PhaseResolve, errors.KindUnknownType).
				Line(v.Line).Type(v.Name).Detail("typedef refers to itself").Build()
		}
		alias.Underlying = under
		attrs, err := convertAttrs([]string{v.Name}, v.Attrs)
		if err != nil {
			return err
		}
		alias.Attrs = attrs
		return nil
	case *ast.StructDef:
		return r.defineStruct(v)
	case *ast.MessageDef:
		msg := t.(*Message)
		r.messages = append(r.messages, msg)
		return r.defineContainer(&msg.Container, v.Name, v.Fields, v.Attrs)
	case *ast.EnumDef:
		return r.defineEnum(t, v)
	case *ast.ChannelDef:
		return nil
	}
	return nil
}

func (r *resolver) defineStruct(def *ast.StructDef) error {
	s := r.inline[def]
	return r.defineContainer(&s.Container, def.Name, def.Fields, def.Attrs)
}

func (r *resolver) defineEnum(t Type, def *ast.EnumDef) error {
	attrs, err := convertAttrs([]string{def.Name}, def.Attrs)
	if err != nil {
		return err
	}

	var values []EnumValue
	seen := make(map[int64]string)
	names := make(map[string]bool)
	last := int64(-1)
	for _, v := range def.Values {
		val := last + 1
		if v.HasValue {
			val = v.Value
		}
		last = val
		if prev, dup := seen[val]; dup {
			return errors.New(errors.PhaseResolve, errors.KindDuplicateID).Line(def.Line).Type(def.Name).
				Detail("labels %s and %s share value %d", prev, v.Name, val).Build()
		}
		if names[v.Name] {
			return errors.New(errors.PhaseResolve, errors.KindDuplicateType).Line(def.Line).Type(def.Name).
				Detail("duplicate label %s", v.Name).Build()
		}
		if def.Flags && (val < 0 || val >= int64(def.Bits)) {
			return errors.New(errors.PhaseResolve, errors.KindOverflow).Line(def.Line).Type(def.Name).
				Detail("flag %s bit %d outside flags%d", v.Name, val, def.Bits).Build()
		}
		if !def.Flags && (val < -(int64(1)<<(def.Bits-1)) || val > int64(1)<<def.Bits-1) {
			return errors.New(errors.PhaseResolve, errors.KindOverflow).Line(def.Line).Type(def.Name).
				Detail("label %s value %d outside enum%d", v.Name, val, def.Bits).Build()
		}
		seen[val] = v.Name
		names[v.Name] = true
		values = append(values, EnumValue{Name: v.Name, Value: val})
	}
	if !def.Flags {
		if err := checkEnumSign(def, values); err != nil {
			return err
		}
	}

	switch e := t.(type) {
	case *Enum:
		e.Values, e.Attrs = values, attrs
	case *Flags:
		e.Values, e.Attrs = values, attrs
	}
	return nil
}

func (r *resolver) typeExpr(e ast.TypeExpr) (Type, error) {
	switch v := e.(type) {
	case *ast.Int:
		t, _ := r.ctx.Lookup((&Integer{Bits: v.Bits, Signed: v.Signed}).TypeName())
		return t, nil
	case *ast.Named:
		t, ok := r.ctx.Lookup(v.Name)
		if !ok {
			return nil, errors.UnknownType(v.Line, v.Name)
		}
		return t, nil
	case *ast.StructDef:
		s, ok := r.inline[v]
		if !ok {
			return nil, errors.UnknownType(v.Line, v.Name)
		}
		if err := r.defineStruct(v); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("unsupported type expression %T", e))
}

func (r *resolver) defineContainer(c *Container, label string, fields []ast.Field, attrs []ast.Attr) error {
	if c.Members != nil {
		return nil
	}
	c.Members = make([]Containee, 0, len(fields))

	var err error
	if c.Attrs, err = convertAttrs([]string{label}, attrs); err != nil {
		return err
	}
	if c.Attrs.Has(AttrNoCopy) {
		return errors.Unimplemented([]string{label}, "@nocopy applies to pointer members only")
	}

	seen := make(map[string]bool)
	for _, f := range fields {
		name := f.FieldName()
		if seen[name] {
			return errors.New(errors.PhaseResolve, errors.KindDuplicateType).
				Path(label, name).Detail("duplicate member").Build()
		}
		seen[name] = true

		switch v := f.(type) {
		case *ast.Member:
			m, err := r.member(c, nil, label, v)
			if err != nil {
				return err
			}
			c.Members = append(c.Members, m)
		case *ast.Switch:
			s, err := r.switchField(c, label, v)
			if err != nil {
				return err
			}
			c.Members = append(c.Members, s)
		}
	}

	r.pending = append(r.pending, pendingCheck{c: c, label: label})
	return nil
}

func (r *resolver) member(c *Container, sw *Switch, label string, a *ast.Member) (*Member, error) {
	path := []string{label, a.Name}
	t, err := r.typeExpr(a.Type)
	if err != nil {
		return nil, err
	}
	if a.Array != nil {
		t = &Array{Elem: t, Size: convertSize(*a.Array), Attrs: Attrs{}}
	}
	if a.Pointer {
		t = &Pointer{Target: t, Attrs: Attrs{}}
	}

	attrs, err := convertAttrs(path, a.Attrs)
	if err != nil {
		return nil, err
	}
	m := &Member{Name: a.Name, Type: t, Attrs: attrs, Container: c, Switch: sw, Line: a.Line}

	switch v := t.(type) {
	case *Pointer:
		for _, name := range propagated {
			if args, ok := attrs[name]; ok {
				v.Attrs[name] = args
			}
		}
		if attrs.Has(AttrPtr32) {
			v.Width = 4
		}
		if attrs.Has(AttrNoCopy) {
			v.Attrs[AttrNoCopy] = nil
		}
	case *Array:
		for _, name := range propagated {
			if args, ok := attrs[name]; ok {
				v.Attrs[name] = args
			}
		}
	}

	if err := checkMemberShape(m, path); err != nil {
		return nil, err
	}
	return m, nil
}

func convertSize(s ast.ArraySize) ArraySize {
	switch s.Kind {
	case ast.SizeConst:
		return ArraySize{Kind: SizeConst, N: s.N}
	case ast.SizeIdent:
		return ArraySize{Kind: SizeField, Field: s.Name}
	case ast.SizeImage:
		return ArraySize{Kind: SizeImage, BPP: s.BPP, Width: s.Width, Height: s.Height}
	case ast.SizeBytes:
		count := s.Count
		if count == "" {
			count = s.Length
		}
		return ArraySize{Kind: SizeBytes, Length: s.Length, Count: count}
	case ast.SizeCString:
		return ArraySize{Kind: SizeCString}
	}
	return ArraySize{Kind: SizeRemaining}
}

func (r *resolver) switchField(c *Container, label string, a *ast.Switch) (*Switch, error) {
	path := []string{label, a.Name}
	attrs, err := convertAttrs(path, a.Attrs)
	if err != nil {
		return nil, err
	}
	if attrs.Has(AttrEnd) {
		return nil, errors.Unimplemented(path, "@end on switch")
	}

	s := &Switch{Var: a.Var, Name: a.Name, Attrs: attrs, Container: c, Line: a.Line}
	for _, ac := range a.Cases {
		m, err := r.member(c, s, label, ac.Member)
		if err != nil {
			return nil, err
		}
		cs := &Case{Member: m}
		for _, g := range ac.Guards {
			cs.Guards = append(cs.Guards, Guard{Label: g.Label, Default: g.Default, Not: g.Not})
		}
		s.Cases = append(s.Cases, cs)
	}
	return s, nil
}

// checkContainer resolves sibling references once all members are known.
func (r *resolver) checkContainer(c *Container, label string) error {
	for i, cm := range c.Members {
		switch v := cm.(type) {
		case *Member:
			if err := r.checkRefs(c, label, i, v); err != nil {
				return err
			}
		case *Switch:
			if err := r.resolveSwitch(c, label, i, v); err != nil {
				return err
			}
			for _, cs := range v.Cases {
				if err := r.checkRefs(c, label, i, cs.Member); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *resolver) resolveSwitch(c *Container, label string, index int, s *Switch) error {
	path := []string{label, s.Name}
	chain, err := r.earlier(c, label, index, s.Var)
	if err != nil {
		return err
	}
	s.VarPath = chain
	disc := Unalias(chain[len(chain)-1].Type)

	for _, cs := range s.Cases {
		for gi := range cs.Guards {
			g := &cs.Guards[gi]
			if g.Default {
				continue
			}
			switch d := disc.(type) {
			case *Enum:
				v, ok := d.Value(g.Label)
				if !ok {
					return errors.UnknownMember(d.Name, g.Label)
				}
				// the discriminant is read at the enum's width
				g.Value = uint64(v) & widthMask(d.Bits)
			case *Flags:
				v, ok := d.Value(g.Label)
				if !ok {
					return errors.UnknownMember(d.Name, g.Label)
				}
				g.Value = 1 << uint(v)
				s.Flags = true
			default:
				return errors.Unimplemented(path, fmt.Sprintf("switch on %s needs an enum or flags discriminant", Describe(disc)))
			}
		}
	}
	return nil
}

func widthMask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(bits) - 1
}

// checkEnumSign rejects enums mixing negative labels with values that only
// fit the unsigned range of their width.
func checkEnumSign(def *ast.EnumDef, values []EnumValue) error {
	var neg, big *EnumValue
	for i := range values {
		switch v := &values[i]; {
		case v.Value < 0 && neg == nil:
			neg = v
		case v.Value >= int64(1)<<(def.Bits-1) && big == nil:
			big = v
		}
	}
	if neg != nil && big != nil {
		return errors.New(errors.PhaseResolve, errors.KindOverflow).Line(def.Line).Type(def.Name).
			Detail("labels %s (%d) and %s (%d) need both signed and unsigned enum%d", neg.Name, neg.Value, big.Name, big.Value, def.Bits).Build()
	}
	return nil
}

// earlier resolves a sibling path and requires it to precede position index.
func (r *resolver) earlier(c *Container, label string, index int, ref string) ([]*Member, error) {
	chain, err := c.Lookup(ref)
	if err != nil {
		return nil, errors.WithPath(err, label)
	}
	if c.Index(chain[0]) >= index {
		return nil, errors.New(errors.PhaseResolve, errors.KindUnknownMember).Path(label, ref).
			Detail("%s must be declared before it is referenced", ref).Build()
	}
	if !IsPrimitive(chain[len(chain)-1].Type) {
		return nil, errors.New(errors.PhaseResolve, errors.KindTypeMismatch).Path(label, ref).
			Detail("%s is not an integer field", ref).Build()
	}
	return chain, nil
}

func (r *resolver) checkRefs(c *Container, label string, index int, m *Member) error {
	var arr *Array
	switch v := m.Type.(type) {
	case *Array:
		arr = v
	case *Pointer:
		arr, _ = Unalias(v.Target).(*Array)
	}

	if arr != nil {
		var refs []string
		switch arr.Size.Kind {
		case SizeField:
			refs = []string{arr.Size.Field}
		case SizeImage:
			refs = []string{arr.Size.Width, arr.Size.Height}
		case SizeBytes:
			refs = []string{arr.Size.Length}
		}
		for _, ref := range refs {
			if _, err := r.earlier(c, label, index, ref); err != nil {
				return err
			}
		}
		if arr.Size.Kind == SizeBytes {
			if err := r.primitiveRef(c, label, arr.Size.Count); err != nil {
				return err
			}
		}
	}

	if lenField, ok := m.Attrs.Ident(AttrAsPtr); ok {
		if err := r.primitiveRef(c, label, lenField); err != nil {
			return err
		}
	}

	if target, ok := m.Attrs.Ident(AttrBytesCount); ok {
		ta := c.find(target)
		var tarr *Array
		if ta != nil {
			tarr, _ = ta.Type.(*Array)
		}
		if tarr == nil || tarr.Size.Kind != SizeBytes || tarr.Size.Length != m.Name {
			return errors.New(errors.PhaseResolve, errors.KindUnknownMember).Path(label, m.Name).
				Detail("@bytes_count(%s) must name an array sized bytes(%s)", target, m.Name).Build()
		}
	}
	return nil
}

func (r *resolver) primitiveRef(c *Container, label, ref string) error {
	chain, err := c.Lookup(ref)
	if err != nil {
		return errors.WithPath(err, label)
	}
	if !IsPrimitive(chain[len(chain)-1].Type) {
		return errors.New(errors.PhaseResolve, errors.KindTypeMismatch).Path(label, ref).
			Detail("%s is not an integer field", ref).Build()
	}
	return nil
}

// checkMemberShape rejects type and attribute combinations no codec can represent.
func checkMemberShape(m *Member, path []string) error {
	a := m.Attrs
	switch t := m.Type.(type) {
	case *Pointer:
		if a.Has(AttrToPtr) || a.Has(AttrEnd) {
			return errors.Unimplemented(path, "@to_ptr/@end on a pointer member")
		}
		switch target := Unalias(t.Target).(type) {
		case *Struct:
			if t.Attrs.Has(AttrNoCopy) || t.Attrs.Has(AttrChunk) {
				return errors.Unimplemented(path, "@nocopy/@chunk pointers must target byte arrays")
			}
		case *Array:
			if err := checkArray(target, path, true); err != nil {
				return err
			}
			if (t.Attrs.Has(AttrNoCopy) || t.Attrs.Has(AttrChunk)) && !isByte(target.Elem) {
				return errors.Unimplemented(path, "@nocopy/@chunk pointers must target byte arrays")
			}
			if target.Size.Kind == SizeRemaining {
				return errors.Unimplemented(path, "pointer to remaining-sized array")
			}
		case *Pointer:
			return errors.Unimplemented(path, "pointer to pointer")
		default:
			return errors.Unimplemented(path, "pointer to "+Describe(target))
		}
	case *Array:
		if err := checkArray(t, path, false); err != nil {
			return err
		}
		if a.Has(AttrToPtr) {
			return errors.Unimplemented(path, "@to_ptr on an array member")
		}
		if a.Has(AttrAsPtr) && (a.Has(AttrEnd) || t.Attrs.Has(AttrChunk) || t.Attrs.Has(AttrPtrArray)) {
			return errors.Unimplemented(path, "@as_ptr combined with @end, @chunk or @ptr_array")
		}
		if t.Attrs.Has(AttrChunk) && t.Attrs.Has(AttrPtrArray) {
			return errors.Unimplemented(path, "@chunk combined with @ptr_array")
		}
	case *Struct, *Message:
		// inline or @end/@to_ptr container
	case *Alias:
		if _, ok := AsContainer(t); !ok && !IsPrimitive(t) {
			return errors.Unimplemented(path, "member of type "+Describe(t))
		}
		if IsPrimitive(t) && (a.Has(AttrToPtr) || a.Has(AttrEnd)) {
			return errors.Unimplemented(path, "@to_ptr/@end on a primitive member")
		}
	case *Integer, *Enum, *Flags:
		if a.Has(AttrToPtr) || a.Has(AttrEnd) {
			return errors.Unimplemented(path, "@to_ptr/@end on a primitive member")
		}
	case *Channel, *Protocol:
		return errors.Unimplemented(path, "member of type "+Describe(t))
	}

	if (a.Has(AttrVirtual) || a.Has(AttrZero) || a.Has(AttrBytesCount)) && !IsPrimitive(m.Type) {
		return errors.Unimplemented(path, "@virtual/@zero/@bytes_count need an integer member")
	}
	if a.Has(AttrVirtual) && a.Has(AttrZero) {
		return errors.Unimplemented(path, "@virtual combined with @zero")
	}
	return nil
}

func checkArray(arr *Array, path []string, pointed bool) error {
	switch elem := Unalias(arr.Elem).(type) {
	case *Integer, *Enum, *Flags, *Struct:
	default:
		return errors.Unimplemented(path, "array of "+Describe(elem))
	}
	switch arr.Size.Kind {
	case SizeCString, SizeImage:
		if !isByte(arr.Elem) {
			return errors.Unimplemented(path, arr.Size.Kind.String()+" arrays must hold bytes")
		}
	}
	if arr.Attrs.Has(AttrChunk) && !isByte(arr.Elem) {
		return errors.Unimplemented(path, "@chunk arrays must hold bytes")
	}
	if pointed && arr.Attrs.Has(AttrPtrArray) {
		return errors.Unimplemented(path, "@ptr_array on a pointer target")
	}
	return nil
}

func isByte(t Type) bool {
	bits, _, ok := PrimitiveBits(t)
	return ok && bits == 8
}

func (r *resolver) resolveChannel(ch *Channel) error {
	if r.chanDone[ch] {
		return nil
	}
	if r.chanBusy[ch] {
		return errors.New(errors.PhaseResolve, errors.KindUnknownType).Type(ch.Name).
			Detail("channel inheritance cycle").Build()
	}
	r.chanBusy[ch] = true
	def := r.channels[ch]

	var err error
	if ch.Attrs, err = convertAttrs([]string{ch.Name}, def.Attrs); err != nil {
		return err
	}

	if def.Base != "" {
		bt, ok := r.ctx.Lookup(def.Base)
		if !ok {
			return errors.UnknownType(def.Line, def.Base)
		}
		base, ok := bt.(*Channel)
		if !ok {
			return errors.New(errors.PhaseResolve, errors.KindTypeMismatch).Line(def.Line).Type(def.Base).
				Detail("channel base must be a channel").Build()
		}
		if err := r.resolveChannel(base); err != nil {
			return err
		}
		ch.Base = base
		ch.Server = append([]*ChannelMessage(nil), base.Server...)
		ch.Client = append([]*ChannelMessage(nil), base.Client...)
		ch.MemberName = defaultMemberName(ch.Name)
	}

	counters := [2]uint32{1, 1}
	for _, am := range def.Members {
		cm := &ChannelMessage{Name: am.Name, Channel: ch, Client: am.Client}
		if am.Message != nil {
			msg := &Message{owner: cm, Container: Container{Line: am.Message.Line}}
			cm.Message = msg
			label := ch.Name + "." + am.Name
			if err := r.defineContainer(&msg.Container, label, am.Message.Fields, am.Message.Attrs); err != nil {
				return err
			}
			r.messages = append(r.messages, msg)
		} else {
			t, ok := r.ctx.Lookup(am.Ref)
			if !ok {
				return errors.UnknownType(am.Line, am.Ref)
			}
			msg, ok := t.(*Message)
			if !ok {
				return errors.New(errors.PhaseResolve, errors.KindTypeMismatch).Line(am.Line).Type(am.Ref).
					Detail("channel member must be a message").Build()
			}
			cm.Message = msg
		}

		dir := 0
		if am.Client {
			dir = 1
		}
		if am.HasID {
			if am.ID < 0 || am.ID > 0xffff {
				return errors.Overflow(errors.PhaseResolve, []string{ch.Name, am.Name}, am.ID, "message id")
			}
			cm.ID = uint32(am.ID)
			counters[dir] = cm.ID + 1
		} else {
			cm.ID = counters[dir]
			counters[dir]++
		}

		list := &ch.Server
		if am.Client {
			list = &ch.Client
		}
		if err := r.checkSlot(ch, *list, cm, am.Line); err != nil {
			return err
		}
		*list = append(*list, cm)
	}

	r.chanBusy[ch] = false
	r.chanDone[ch] = true
	return nil
}

func (r *resolver) checkSlot(ch *Channel, list []*ChannelMessage, cm *ChannelMessage, line int) error {
	for _, prev := range list {
		if prev.Name == cm.Name {
			return errors.New(errors.PhaseResolve, errors.KindDuplicateType).Line(line).
				Path(ch.Name, cm.Name).Detail("message name already used in this direction").Build()
		}
		if prev.ID == cm.ID {
			if err := r.duplicateID(line, []string{ch.Name, cm.Name}, cm.ID, prev.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) duplicateID(line int, path []string, id uint32, other string) error {
	if r.ctx.AllowDuplicateIDs {
		Logger().Warn("duplicate id",
			zap.Strings("path", path),
			zap.Uint32("id", id),
			zap.String("other", other))
		return nil
	}
	return errors.New(errors.PhaseResolve, errors.KindDuplicateID).Line(line).Path(path...).
		Detail("id %d already assigned to %s", id, other).Value(id).Build()
}

func (r *resolver) resolveProtocol(def *ast.Protocol) (*Protocol, error) {
	p := &Protocol{Name: def.Name}
	if err := r.ctx.Register(def.Name, p, def.Line); err != nil {
		return nil, err
	}

	count := uint32(1)
	for _, pm := range def.Members {
		t, ok := r.ctx.Lookup(pm.Channel)
		if !ok {
			return nil, errors.UnknownType(pm.Line, pm.Channel)
		}
		ch, ok := t.(*Channel)
		if !ok {
			return nil, errors.New(errors.PhaseResolve, errors.KindTypeMismatch).Line(pm.Line).Type(pm.Channel).
				Detail("protocol member must be a channel").Build()
		}
		pc := &ProtocolChannel{Name: pm.Name, Channel: ch}
		if pm.HasID {
			if pm.ID < 0 || pm.ID > 0xff {
				return nil, errors.Overflow(errors.PhaseResolve, []string{def.Name, pm.Name}, pm.ID, "channel id")
			}
			pc.ID = uint32(pm.ID)
			count = pc.ID + 1
		} else {
			pc.ID = count
			count++
		}
		for _, prev := range p.Channels {
			if prev.Name == pc.Name {
				return nil, errors.New(errors.PhaseResolve, errors.KindDuplicateType).Line(pm.Line).
					Path(def.Name, pc.Name).Detail("channel name already used").Build()
			}
			// generated names of inline messages derive from the member name
			if prev.Channel == ch {
				return nil, errors.New(errors.PhaseResolve, errors.KindDuplicateType).Line(pm.Line).
					Path(def.Name, pc.Name).Type(ch.Name).
					Detail("channel %s already instantiated as %s", ch.Name, prev.Name).Build()
			}
			if prev.ID == pc.ID {
				if err := r.duplicateID(pm.Line, []string{def.Name, pc.Name}, pc.ID, prev.Name); err != nil {
					return nil, err
				}
			}
		}
		ch.MemberName = pm.Name
		p.Channels = append(p.Channels, pc)
	}
	return p, nil
}

// checkRecursion rejects containers that embed themselves on the wire.
func (r *resolver) checkRecursion() error {
	state := make(map[*Container]int)
	var visit func(c *Container, label string) error
	visit = func(c *Container, label string) error {
		switch state[c] {
		case 1:
			return errors.Unimplemented([]string{label}, "recursive inline type")
		case 2:
			return nil
		}
		state[c] = 1
		for _, m := range allMembers(c) {
			if inner, ok := inlineContainer(m.Type); ok {
				if err := visit(inner, inner.Name); err != nil {
					return err
				}
			}
		}
		state[c] = 2
		return nil
	}

	for _, t := range r.ctx.order {
		if c, ok := AsContainer(t); ok {
			if err := visit(c, c.Name); err != nil {
				return err
			}
		}
	}
	for _, m := range r.messages {
		if err := visit(&m.Container, m.CName()); err != nil {
			return err
		}
	}
	return nil
}

func inlineContainer(t Type) (*Container, bool) {
	switch v := Unalias(t).(type) {
	case *Array:
		return AsContainer(v.Elem)
	case *Pointer:
		return nil, false
	}
	return AsContainer(t)
}

// allMembers flattens direct and case members.
func allMembers(c *Container) []*Member {
	var out []*Member
	for _, cm := range c.Members {
		switch v := cm.(type) {
		case *Member:
			out = append(out, v)
		case *Switch:
			for _, cs := range v.Cases {
				out = append(out, cs.Member)
			}
		}
	}
	return out
}
