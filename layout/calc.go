package layout

import (
	"math"
	"sync"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/internal/abi"
	"github.com/wippyai/protogen/model"
)

const (
	// RefSize is the memory slot of an out-of-line reference.
	RefSize = 8
	// HeaderSize is the memory slot of an array header {offset u64, count u64}.
	HeaderSize = 16
	// ChunkDescriptorSize is the minimum chunk descriptor {wire offset u64, length u64}.
	ChunkDescriptorSize = 16
)

// Options controls wire and memory sizing.
type Options struct {
	// PointerWidth is the wire width of pointers without @ptr32 (4 or 8).
	PointerWidth int
	// ExtraAlign is the alignment of every out-of-line block. Each block is
	// budgeted ExtraAlign-1 bytes of padding.
	ExtraAlign uint64
	// ChunkOverhead is the memory reserved per chunk descriptor.
	ChunkOverhead uint64
}

// DefaultOptions returns 4-byte pointers and 4-byte out-of-line alignment.
func DefaultOptions() Options {
	return Options{PointerWidth: 4, ExtraAlign: 4, ChunkOverhead: ChunkDescriptorSize}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.PointerWidth != 4 && o.PointerWidth != 8 {
		return errors.InvalidInput(errors.PhaseConfig, "pointer width must be 4 or 8")
	}
	if o.ExtraAlign == 0 || o.ExtraAlign&(o.ExtraAlign-1) != 0 {
		return errors.InvalidInput(errors.PhaseConfig, "extra alignment must be a power of two")
	}
	if o.ChunkOverhead < ChunkDescriptorSize {
		return errors.InvalidInput(errors.PhaseConfig, "chunk overhead below descriptor size")
	}
	return nil
}

// Pad is the padding budgeted per out-of-line block.
func (o Options) Pad() uint64 { return o.ExtraAlign - 1 }

// SlotKind says how a member is stored in memory.
type SlotKind int

const (
	SlotNone   SlotKind = iota // @zero: consumed, not stored
	SlotValue                  // integer, enum or flags
	SlotInline                 // nested struct or constant array in place
	SlotRef                    // arena offset of an out-of-line block, 0 = null
	SlotArray                  // {offset, count} header
	SlotUnion                  // switch
)

var slotNames = [...]string{"none", "value", "inline", "ref", "array", "union"}

func (k SlotKind) String() string {
	if int(k) < len(slotNames) {
		return slotNames[k]
	}
	return "?"
}

// Slot is a member's place in its container's memory image.
type Slot struct {
	Offset uint64
	Size   uint64
	Align  uint64
	Kind   SlotKind
	// Wire is set when offsets stored in the slot index the wire buffer.
	Wire bool
	// Chunk is set when a SlotRef points at a chunk descriptor.
	Chunk bool
}

// StructLayout is the C-style memory image of a container.
type StructLayout struct {
	slots  map[*model.Member]Slot
	unions map[*model.Switch]Slot
	Size   uint64
	Align  uint64
}

// Slot returns a member's slot, including case members.
func (l *StructLayout) Slot(m *model.Member) Slot { return l.slots[m] }

// Union returns a switch's slot.
func (l *StructLayout) Union(s *model.Switch) Slot { return l.unions[s] }

type fixedEntry struct {
	size FixedSize
	ok   bool
}

// Calculator computes layouts and size formulas. Results are cached per
// container; a Calculator is safe for concurrent use.
type Calculator struct {
	opts    Options
	mu      sync.Mutex
	structs map[*model.Container]*StructLayout
	fixed   map[*model.Container]fixedEntry
	extra   map[*model.Container]bool
}

// NewCalculator creates a calculator. Zero option fields take defaults.
func NewCalculator(opts Options) *Calculator {
	def := DefaultOptions()
	if opts.PointerWidth == 0 {
		opts.PointerWidth = def.PointerWidth
	}
	if opts.ExtraAlign == 0 {
		opts.ExtraAlign = def.ExtraAlign
	}
	if opts.ChunkOverhead == 0 {
		opts.ChunkOverhead = def.ChunkOverhead
	}
	return &Calculator{
		opts:    opts,
		structs: make(map[*model.Container]*StructLayout),
		fixed:   make(map[*model.Container]fixedEntry),
		extra:   make(map[*model.Container]bool),
	}
}

// Options returns the effective options.
func (c *Calculator) Options() Options { return c.opts }

// PointerWidth returns the wire width of a pointer.
func (c *Calculator) PointerWidth(p *model.Pointer) int {
	if p.Width != 0 {
		return p.Width
	}
	return c.opts.PointerWidth
}

// Sizeof returns the memory size of a value of type t.
func (c *Calculator) Sizeof(t model.Type) uint64 {
	switch v := model.Unalias(t).(type) {
	case *model.Integer, *model.Enum, *model.Flags:
		bits, _, _ := model.PrimitiveBits(v)
		return uint64(bits / 8)
	case *model.Struct:
		return c.Layout(&v.Container).Size
	case *model.Message:
		return c.Layout(&v.Container).Size
	case *model.Pointer:
		return RefSize
	case *model.Array:
		return HeaderSize
	case *model.Alias, *model.Channel, *model.Protocol:
		return 0
	}
	return 0
}

// Align returns the memory alignment of type t.
func (c *Calculator) Align(t model.Type) uint64 {
	switch v := model.Unalias(t).(type) {
	case *model.Integer, *model.Enum, *model.Flags:
		return c.Sizeof(v)
	case *model.Struct:
		return c.Layout(&v.Container).Align
	case *model.Message:
		return c.Layout(&v.Container).Align
	case *model.Pointer, *model.Array:
		return 8
	case *model.Alias, *model.Channel, *model.Protocol:
		return 1
	}
	return 1
}

// Layout returns the memory image of a container.
func (c *Calculator) Layout(ct *model.Container) *StructLayout {
	c.mu.Lock()
	l, ok := c.structs[ct]
	c.mu.Unlock()
	if ok {
		return l
	}

	l = &StructLayout{
		slots:  make(map[*model.Member]Slot),
		unions: make(map[*model.Switch]Slot),
		Align:  1,
	}
	var offset uint64
	for _, cm := range ct.Members {
		switch v := cm.(type) {
		case *model.Member:
			s := c.MemberSlot(v)
			offset = abi.AlignTo(offset, s.Align)
			s.Offset = offset
			offset += s.Size
			l.slots[v] = s
			l.Align = max(l.Align, s.Align)
		case *model.Switch:
			u := Slot{Kind: SlotUnion, Align: 1}
			cases := make([]Slot, len(v.Cases))
			for i, cs := range v.Cases {
				cases[i] = c.MemberSlot(cs.Member)
				u.Size = max(u.Size, cases[i].Size)
				u.Align = max(u.Align, cases[i].Align)
			}
			u.Size = abi.AlignTo(u.Size, u.Align)
			offset = abi.AlignTo(offset, u.Align)
			u.Offset = offset
			offset += u.Size
			for i, cs := range v.Cases {
				cases[i].Offset = u.Offset
				l.slots[cs.Member] = cases[i]
			}
			l.unions[v] = u
			l.Align = max(l.Align, u.Align)
		}
	}
	l.Size = abi.AlignTo(offset, l.Align)

	c.mu.Lock()
	if cached, ok := c.structs[ct]; ok {
		l = cached
	} else {
		c.structs[ct] = l
	}
	c.mu.Unlock()
	return l
}

// MemberSlot returns the size, alignment and kind of a member's slot. The
// offset is assigned by Layout.
func (c *Calculator) MemberSlot(m *model.Member) Slot {
	if m.Has(model.AttrZero) {
		return Slot{Kind: SlotNone, Align: 1}
	}
	switch t := m.Type.(type) {
	case *model.Pointer:
		if _, ok := model.Unalias(t.Target).(*model.Array); ok {
			if t.Attrs.Has(model.AttrChunk) {
				return Slot{Kind: SlotRef, Size: RefSize, Align: 8, Chunk: true}
			}
			return Slot{Kind: SlotArray, Size: HeaderSize, Align: 8, Wire: t.Attrs.Has(model.AttrNoCopy)}
		}
		return Slot{Kind: SlotRef, Size: RefSize, Align: 8}
	case *model.Array:
		switch {
		case t.Attrs.Has(model.AttrChunk):
			return Slot{Kind: SlotRef, Size: RefSize, Align: 8, Chunk: true}
		case m.Has(model.AttrAsPtr):
			return Slot{Kind: SlotArray, Size: HeaderSize, Align: 8, Wire: true}
		case c.InlineArray(m, t):
			return Slot{Kind: SlotInline, Size: t.Size.N * c.Sizeof(t.Elem), Align: c.Align(t.Elem)}
		}
		return Slot{Kind: SlotArray, Size: HeaderSize, Align: 8}
	}

	if model.IsPrimitive(m.Type) {
		n := c.Sizeof(m.Type)
		return Slot{Kind: SlotValue, Size: n, Align: n}
	}
	if _, ok := model.AsContainer(m.Type); ok {
		if m.Has(model.AttrToPtr) {
			return Slot{Kind: SlotRef, Size: RefSize, Align: 8}
		}
		return Slot{Kind: SlotInline, Size: c.Sizeof(m.Type), Align: c.Align(m.Type)}
	}
	return Slot{Kind: SlotNone, Align: 1}
}

// InlineArray reports whether an array member is stored in place.
func (c *Calculator) InlineArray(m *model.Member, arr *model.Array) bool {
	return arr.Size.Kind == model.SizeConst &&
		!m.Has(model.AttrEnd) &&
		!arr.Attrs.Has(model.AttrPtrArray) &&
		!c.ContainsExtraSize(arr.Elem)
}

// IsExtraSize reports whether a member places content out of line.
func (c *Calculator) IsExtraSize(m *model.Member) bool {
	s := c.MemberSlot(m)
	switch s.Kind {
	case SlotRef:
		return true
	case SlotArray:
		return !s.Wire
	}
	return false
}

// ContainsExtraSize reports whether a value of type t owns out-of-line content.
func (c *Calculator) ContainsExtraSize(t model.Type) bool {
	switch v := model.Unalias(t).(type) {
	case *model.Pointer:
		return true
	case *model.Array:
		return c.ContainsExtraSize(v.Elem)
	}
	ct, ok := model.AsContainer(t)
	if !ok {
		return false
	}

	c.mu.Lock()
	cached, hit := c.extra[ct]
	c.mu.Unlock()
	if hit {
		return cached
	}

	result := false
	for _, m := range members(ct) {
		if c.IsExtraSize(m) {
			result = true
			break
		}
		if s := c.MemberSlot(m); s.Kind == SlotInline && c.ContainsExtraSize(m.Type) {
			result = true
			break
		}
	}

	c.mu.Lock()
	c.extra[ct] = result
	c.mu.Unlock()
	return result
}

// FixedNw returns the wire size of t when it does not depend on field values.
func (c *Calculator) FixedNw(t model.Type) (FixedSize, bool) {
	switch v := model.Unalias(t).(type) {
	case *model.Integer, *model.Enum, *model.Flags:
		return Fixed(c.Sizeof(v)), true
	case *model.Pointer:
		return Fixed(uint64(c.PointerWidth(v))), true
	case *model.Array:
		if v.Size.Kind != model.SizeConst {
			return FixedSize{}, false
		}
		elem, ok := c.FixedNw(v.Elem)
		if !ok {
			return FixedSize{}, false
		}
		return elem.Mul(v.Size.N), true
	case *model.Struct:
		return c.containerFixedNw(&v.Container)
	case *model.Message:
		return c.containerFixedNw(&v.Container)
	case *model.Alias, *model.Channel, *model.Protocol:
		return FixedSize{}, false
	}
	return FixedSize{}, false
}

// IsFixedNw reports whether t has a fixed wire size.
func (c *Calculator) IsFixedNw(t model.Type) bool {
	_, ok := c.FixedNw(t)
	return ok
}

func (c *Calculator) containerFixedNw(ct *model.Container) (FixedSize, bool) {
	c.mu.Lock()
	e, hit := c.fixed[ct]
	c.mu.Unlock()
	if hit {
		return e.size, e.ok
	}

	e = fixedEntry{ok: true}
	for _, cm := range ct.Members {
		var f FixedSize
		var ok bool
		switch v := cm.(type) {
		case *model.Member:
			f, ok = c.MemberFixedNw(v)
		case *model.Switch:
			f, ok = c.SwitchFixedNw(v)
		}
		if !ok {
			e = fixedEntry{}
			break
		}
		e.size = e.size.Add(f)
	}

	c.mu.Lock()
	c.fixed[ct] = e
	c.mu.Unlock()
	return e.size, e.ok
}

// MemberFixedNw returns a member's wire size, minor gating included, when
// it is fixed. @end and @to_ptr members are never fixed.
func (c *Calculator) MemberFixedNw(m *model.Member) (FixedSize, bool) {
	if m.Has(model.AttrVirtual) {
		return Fixed(0), true
	}
	if m.Has(model.AttrEnd) || m.Has(model.AttrToPtr) {
		return FixedSize{}, false
	}
	f, ok := c.FixedNw(m.Type)
	if !ok {
		return FixedSize{}, false
	}
	return f.Gate(m.Attrs.Minor()), true
}

// SwitchFixedNw returns a switch's wire size when it is fixed: every case
// fixed and equal with all discriminant values covered, or @fixedsize, in
// which case the widest case sets the size.
func (c *Calculator) SwitchFixedNw(s *model.Switch) (FixedSize, bool) {
	sizes := make([]FixedSize, 0, len(s.Cases))
	for _, cs := range s.Cases {
		f, ok := c.MemberFixedNw(cs.Member)
		if !ok {
			return FixedSize{}, false
		}
		sizes = append(sizes, f)
	}
	if len(sizes) == 0 {
		return FixedSize{}, false
	}

	if s.Attrs.Has(model.AttrFixedSize) {
		widest := sizes[0]
		for _, f := range sizes[1:] {
			if f.At(math.MaxInt) > widest.At(math.MaxInt) {
				widest = f
			}
		}
		return widest.Gate(s.Attrs.Minor()), true
	}

	for _, f := range sizes[1:] {
		if !f.Equal(sizes[0]) {
			return FixedSize{}, false
		}
	}
	if !s.HasDefault() && !coversAll(s) {
		return FixedSize{}, false
	}
	return sizes[0].Gate(s.Attrs.Minor()), true
}

func coversAll(s *model.Switch) bool {
	if len(s.VarPath) == 0 {
		return false
	}
	var labels int
	switch d := model.Unalias(s.VarPath[len(s.VarPath)-1].Type).(type) {
	case *model.Enum:
		labels = len(d.Values)
	case *model.Flags:
		labels = len(d.Values)
	default:
		return false
	}
	seen := make(map[string]bool)
	for _, cs := range s.Cases {
		for _, g := range cs.Guards {
			if !g.Default && !g.Not {
				seen[g.Label] = true
			}
		}
	}
	return len(seen) == labels
}

// members flattens direct and case members.
func members(ct *model.Container) []*model.Member {
	var out []*model.Member
	for _, cm := range ct.Members {
		switch v := cm.(type) {
		case *model.Member:
			out = append(out, v)
		case *model.Switch:
			for _, cs := range v.Cases {
				out = append(out, cs.Member)
			}
		}
	}
	return out
}
