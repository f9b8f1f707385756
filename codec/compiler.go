package codec

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

// Compiler turns resolved containers into codec plans.
type Compiler struct {
	calc  *layout.Calculator
	opts  Options
	cache sync.Map // *model.Container -> *Plan
}

// NewCompiler creates a compiler over a layout calculator.
func NewCompiler(calc *layout.Calculator, opts Options) *Compiler {
	if calc == nil {
		calc = layout.NewCalculator(layout.DefaultOptions())
	}
	return &Compiler{calc: calc, opts: opts.withDefaults()}
}

// Calculator returns the layout calculator plans are built from.
func (c *Compiler) Calculator() *layout.Calculator { return c.calc }

// Compile returns the plan of a struct or message type.
func (c *Compiler) Compile(t model.Type) (*Plan, error) {
	ct, ok := model.AsContainer(t)
	if !ok {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			Type(model.Describe(t)).
			Detail("only structs and messages compile to plans").
			Build()
	}
	if cached, ok := c.cache.Load(ct); ok {
		return cached.(*Plan), nil
	}

	s := &session{calc: c.calc, plans: make(map[*model.Container]*containerPlan)}
	root, err := s.container(ct)
	if err != nil {
		return nil, err
	}

	lo := c.calc.Options()
	p := &Plan{
		root:     root,
		Name:     ct.Name,
		Formulas: root.formulas,
		opts:     c.opts,
		pad:      lo.Pad(),
		align:    lo.ExtraAlign,
		overhead: lo.ChunkOverhead,
	}
	if msg, ok := model.Unalias(t).(*model.Message); ok {
		p.Message = msg
		p.Name = msg.CName()
	}

	actual, _ := c.cache.LoadOrStore(ct, p)
	return actual.(*Plan), nil
}

// Plans holds the compiled plans of every message of a protocol.
type Plans struct {
	byMessage map[*model.Message]*Plan
}

// Get returns the plan of a message.
func (p *Plans) Get(m *model.Message) (*Plan, bool) {
	plan, ok := p.byMessage[m]
	return plan, ok
}

// Len returns the number of compiled messages.
func (p *Plans) Len() int { return len(p.byMessage) }

// CompileProtocol compiles every message reachable from the protocol's
// channels, in parallel.
func (c *Compiler) CompileProtocol(ctx context.Context, proto *model.Protocol) (*Plans, error) {
	var msgs []*model.Message
	seen := make(map[*model.Message]bool)
	for _, pc := range proto.Channels {
		for _, client := range []bool{false, true} {
			for _, slot := range pc.Channel.Messages(client) {
				if !seen[slot.Message] {
					seen[slot.Message] = true
					msgs = append(msgs, slot.Message)
				}
			}
		}
	}

	results := make([]*Plan, len(msgs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range msgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := c.Compile(m)
			if err != nil {
				return errors.WithPath(err, m.CName())
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plans := &Plans{byMessage: make(map[*model.Message]*Plan, len(msgs))}
	for i, m := range msgs {
		plans.byMessage[m] = results[i]
	}
	Logger().Debug("compiled protocol",
		zap.String("protocol", proto.Name),
		zap.Int("messages", len(msgs)))
	return plans, nil
}

// session compiles one plan graph; recursive pointer targets share nodes.
type session struct {
	calc  *layout.Calculator
	plans map[*model.Container]*containerPlan
}

func (s *session) container(ct *model.Container) (*containerPlan, error) {
	if cp, ok := s.plans[ct]; ok {
		return cp, nil
	}
	l := s.calc.Layout(ct)
	cp := &containerPlan{
		ct:       ct,
		name:     ct.Name,
		size:     l.Size,
		formulas: s.calc.Formulas(ct),
		lengths:  make(map[string]int),
	}
	s.plans[ct] = cp

	for _, cm := range ct.Members {
		var f *fieldPlan
		var err error
		switch v := cm.(type) {
		case *model.Member:
			f, err = s.member(ct, l, v)
			if err == nil && v.Has(model.AttrBytesCount) {
				cp.lengths[v.Name] = f.size
			}
		case *model.Switch:
			f, err = s.switchField(ct, l, v)
		}
		if err != nil {
			return nil, err
		}
		cp.fields = append(cp.fields, f)
		if f.arr != nil && f.arr.kind == model.SizeBytes && f.arr.lenSize > 0 {
			cp.lengths[f.arr.bytesLen] = f.arr.lenSize
		}
	}
	return cp, nil
}

func (s *session) member(ct *model.Container, l *layout.StructLayout, m *model.Member) (*fieldPlan, error) {
	f := &fieldPlan{
		name:      m.Name,
		path:      []string{ct.Name, m.Name},
		slot:      l.Slot(m),
		minor:     m.Attrs.Minor(),
		zero:      m.Has(model.AttrZero),
		nomarshal: m.Has(model.AttrNoMarshal),
		marshall:  m.Has(model.AttrMarshall),
	}
	f.outvar, _ = m.Attrs.Ident(model.AttrOutvar)

	switch t := model.Unalias(m.Type).(type) {
	case *model.Pointer:
		f.ptr = true
		f.width = s.calc.PointerWidth(t)
		f.nonnull = t.Attrs.Has(model.AttrNonNull)
		f.nocopy = t.Attrs.Has(model.AttrNoCopy)
		f.chunk = t.Attrs.Has(model.AttrChunk)
		if arr, ok := model.Unalias(t.Target).(*model.Array); ok {
			f.kind = kindArray
			a, err := s.array(ct, l, m, arr)
			if err != nil {
				return nil, err
			}
			f.arr = a
			return f, nil
		}
		target, _ := model.AsContainer(t.Target)
		inner, err := s.container(target)
		if err != nil {
			return nil, err
		}
		f.kind = kindPointer
		f.inner = inner
	case *model.Array:
		f.kind = kindArray
		f.chunk = t.Attrs.Has(model.AttrChunk)
		a, err := s.array(ct, l, m, t)
		if err != nil {
			return nil, err
		}
		f.arr = a
	case *model.Integer, *model.Enum, *model.Flags:
		bits, signed, _ := model.PrimitiveBits(t)
		f.kind = kindValue
		f.size = bits / 8
		f.signed = signed
		if v, ok := m.Attrs.Int(model.AttrVirtual); ok {
			f.virtual = true
			f.virtualValue = uint64(v)
		}
	case *model.Struct, *model.Message:
		target, _ := model.AsContainer(t)
		inner, err := s.container(target)
		if err != nil {
			return nil, err
		}
		f.kind = kindStruct
		f.inner = inner
		f.toPtr = m.Has(model.AttrToPtr)
	case *model.Alias, *model.Channel, *model.Protocol:
		return nil, errors.Unimplemented(f.path, "member of type "+model.Describe(t))
	}
	return f, nil
}

func (s *session) array(ct *model.Container, l *layout.StructLayout, m *model.Member, arr *model.Array) (*arrayPlan, error) {
	path := []string{ct.Name, m.Name}
	a := &arrayPlan{
		count:    s.calc.CountExpr(m, arr),
		kind:     arr.Size.Kind,
		constN:   arr.Size.N,
		bytesLen: arr.Size.Length,
		inline:   l.Slot(m).Kind == layout.SlotInline,
		ptrArray: arr.Attrs.Has(model.AttrPtrArray),
		asPtr:    m.Has(model.AttrAsPtr),
	}
	switch arr.Size.Kind {
	case model.SizeField:
		a.refs = []string{arr.Size.Field}
	case model.SizeImage:
		a.refs = []string{arr.Size.Width, arr.Size.Height}
	case model.SizeBytes:
		a.refs = []string{arr.Size.Length}
	}

	e := &elemPlan{sizeof: s.calc.Sizeof(arr.Elem)}
	e.nw, e.fixed = s.calc.FixedNw(arr.Elem)
	if bits, signed, ok := model.PrimitiveBits(arr.Elem); ok {
		e.size = bits / 8
		e.signed = signed
		_, isInt := model.Unalias(arr.Elem).(*model.Integer)
		e.bytes = isInt && bits == 8 && !signed
	} else {
		target, _ := model.AsContainer(arr.Elem)
		inner, err := s.container(target)
		if err != nil {
			return nil, err
		}
		e.inner = inner
	}
	a.elem = e

	switch arr.Size.Kind {
	case model.SizeRemaining, model.SizeBytes:
		if !e.fixed {
			return nil, errors.Unimplemented(path, fmt.Sprintf("%s array of dynamically sized elements", arr.Size.Kind))
		}
		if e.nw.At(0) == 0 && e.nw.IsConst() {
			return nil, errors.Unimplemented(path, fmt.Sprintf("%s array of empty elements", arr.Size.Kind))
		}
	}
	if arr.Size.Kind == model.SizeBytes && !e.nw.IsConst() {
		return nil, errors.Unimplemented(path, "bytes array of elements whose size depends on the minor version")
	}
	if a.asPtr && e.inner != nil {
		return nil, errors.Unimplemented(path, "@as_ptr on an array of structs")
	}

	if name, ok := m.Attrs.Ident(model.AttrAsPtr); ok {
		ref, err := s.memRef(ct, l, name)
		if err != nil {
			return nil, err
		}
		a.asPtrLen = ref
	}
	if arr.Size.Kind == model.SizeBytes {
		a.elemNw = e.nw.At(0)
		a.bytesOnly = arr.Size.Count == arr.Size.Length
		// bytes(len) leaves the element count in len once decoded
		if !a.bytesOnly || a.elemNw > 1 {
			ref, err := s.memRef(ct, l, arr.Size.Count)
			if err != nil {
				return nil, err
			}
			a.countRef = ref
		}
		if !strings.Contains(arr.Size.Length, ".") {
			if lm, ok := ct.Member(arr.Size.Length); ok {
				bits, _, _ := model.PrimitiveBits(lm.Type)
				a.lenSize = bits / 8
			}
		}
	}
	return a, nil
}

func (s *session) switchField(ct *model.Container, l *layout.StructLayout, sw *model.Switch) (*fieldPlan, error) {
	path := []string{ct.Name, sw.Name}
	sp := &switchPlan{
		disc:      sw.Var,
		flags:     sw.Flags,
		anon:      sw.Attrs.Has(model.AttrAnon),
		fixedsize: sw.Attrs.Has(model.AttrFixedSize),
	}
	if sp.fixedsize {
		fixed, ok := s.calc.SwitchFixedNw(sw)
		if !ok {
			return nil, errors.Unimplemented(path, "@fixedsize switch with variable-size cases")
		}
		sp.fixed = fixed
	}
	ref, err := s.memRef(ct, l, sw.Var)
	if err != nil {
		return nil, err
	}
	sp.discRef = *ref

	for _, cs := range sw.Cases {
		cf, err := s.member(ct, l, cs.Member)
		if err != nil {
			return nil, err
		}
		sp.cases = append(sp.cases, &casePlan{field: cf, guards: cs.Guards})
	}
	return &fieldPlan{
		name:  sw.Name,
		path:  path,
		kind:  kindSwitch,
		slot:  l.Union(sw),
		minor: sw.Attrs.Minor(),
		sw:    sp,
	}, nil
}

// memRef locates a primitive member reachable from ct through inline structs.
func (s *session) memRef(ct *model.Container, l *layout.StructLayout, path string) (*memRef, error) {
	chain, err := ct.Lookup(path)
	if err != nil {
		return nil, err
	}
	var off uint64
	cur := l
	for i, m := range chain {
		slot := cur.Slot(m)
		off += slot.Offset
		if i == len(chain)-1 {
			if slot.Kind != layout.SlotValue {
				return nil, errors.Unimplemented([]string{ct.Name, path}, "referenced member is not stored in memory")
			}
			return &memRef{offset: off, size: int(slot.Size)}, nil
		}
		inner, ok := model.AsContainer(m.Type)
		if !ok || slot.Kind != layout.SlotInline {
			return nil, errors.Unimplemented([]string{ct.Name, path}, "referenced member is reached through a pointer")
		}
		cur = s.calc.Layout(inner)
	}
	return nil, errors.UnknownMember(ct.Name, path)
}
