package layout

import (
	"github.com/wippyai/protogen/model"
)

// Term names bound by the decoder for variable members.
func TermNw(name string) string    { return name + "__nw_size" }
func TermExtra(name string) string { return name + "__extra_size" }
func TermCount(name string) string { return name + "__nelements" }

// Formulas is the size triple of a member or container.
type Formulas struct {
	Nw    Expr
	Mem   Expr
	Extra Expr
}

// CountExpr returns the element count of an array held by member m.
// Counts that are only known after scanning the wire are Refs to
// TermCount(m.Name).
func (c *Calculator) CountExpr(m *model.Member, arr *model.Array) Expr {
	switch arr.Size.Kind {
	case model.SizeConst:
		return Const(arr.Size.N)
	case model.SizeField:
		return Field(arr.Size.Field)
	case model.SizeImage:
		w, h := Field(arr.Size.Width), Field(arr.Size.Height)
		switch arr.Size.BPP {
		case 8:
			return Mul{L: w, R: h}
		case 1:
			return Mul{L: Div{L: Add{w, Const(7)}, R: Const(8)}, R: h}
		default:
			return Mul{L: Div{L: Add{Mul{L: Const(uint64(arr.Size.BPP)), R: w}, Const(7)}, R: Const(8)}, R: h}
		}
	case model.SizeBytes:
		if elem, ok := c.FixedNw(arr.Elem); ok && elem.IsConst() && elem.Base > 0 {
			if elem.Base == 1 {
				return Field(arr.Size.Length)
			}
			return Div{L: Field(arr.Size.Length), R: Const(elem.Base)}
		}
	}
	return Ref(TermCount(m.Name))
}

// ArrayNw returns the wire size of an array held by m. Arrays of variable
// elements are a Ref to TermNw(m.Name).
func (c *Calculator) ArrayNw(m *model.Member, arr *model.Array) Expr {
	elem, ok := c.FixedNw(arr.Elem)
	if !ok {
		return Ref(TermNw(m.Name))
	}
	count := c.CountExpr(m, arr)
	if arr.Size.Kind == model.SizeCString {
		return Add{count, Const(1)}
	}
	return Mul{L: count, R: elem.Expr()}
}

// MemberFormulas returns the size triple of a member in terms of its
// siblings and its own named terms.
func (c *Calculator) MemberFormulas(m *model.Member) Formulas {
	slot := c.MemberSlot(m)
	f := Formulas{Mem: Const(slot.Size), Extra: Fold(c.memberExtra(m, slot))}

	if fixed, ok := c.MemberFixedNw(m); ok {
		f.Nw = Fold(fixed.Expr())
		return f
	}
	var nw Expr = Ref(TermNw(m.Name))
	if arr, ok := m.Type.(*model.Array); ok {
		nw = c.ArrayNw(m, arr)
	}
	f.Nw = Fold(gate(nw, m.Attrs.Minor()))
	return f
}

func (c *Calculator) memberExtra(m *model.Member, slot Slot) Expr {
	var extra Expr = Const(0)
	switch slot.Kind {
	case SlotRef:
		if slot.Chunk {
			if _, ok := m.Type.(*model.Pointer); ok {
				extra = Ref(TermExtra(m.Name))
			} else {
				extra = Const(c.opts.Pad() + c.opts.ChunkOverhead)
			}
		} else {
			extra = Ref(TermExtra(m.Name))
		}
	case SlotInline:
		if c.ContainsExtraSize(m.Type) {
			extra = Ref(TermExtra(m.Name))
		}
	case SlotArray:
		if slot.Wire {
			break
		}
		extra = Ref(TermExtra(m.Name))
		arr, ok := m.Type.(*model.Array)
		if !ok || arr.Attrs.Has(model.AttrPtrArray) || c.ContainsExtraSize(arr.Elem) {
			break
		}
		count := c.CountExpr(m, arr)
		if _, unknown := count.(Ref); !unknown {
			extra = Add{Const(c.opts.Pad()), Mul{L: count, R: Const(c.Sizeof(arr.Elem))}}
		}
	}
	return gate(extra, m.Attrs.Minor())
}

// SwitchFormulas returns the size triple of a switch.
func (c *Calculator) SwitchFormulas(ct *model.Container, s *model.Switch) Formulas {
	u := c.Layout(ct).Union(s)
	f := Formulas{Mem: Const(u.Size), Extra: Const(0)}
	for _, cs := range s.Cases {
		if c.IsExtraSize(cs.Member) || c.ContainsExtraSize(cs.Member.Type) {
			f.Extra = gate(Ref(TermExtra(s.Name)), s.Attrs.Minor())
			break
		}
	}
	if fixed, ok := c.SwitchFixedNw(s); ok {
		f.Nw = Fold(fixed.Expr())
	} else {
		f.Nw = gate(Ref(TermNw(s.Name)), s.Attrs.Minor())
	}
	return f
}

// Formulas returns the folded size triple of a container: Nw is its wire
// size, Extra the out-of-line bytes it provisions and Mem = sizeof + Extra.
func (c *Calculator) Formulas(ct *model.Container) Formulas {
	fixed := FixedSize{}
	nw := Add{}
	extra := Add{}
	for _, cm := range ct.Members {
		var f Formulas
		var fs FixedSize
		var isFixed bool
		switch v := cm.(type) {
		case *model.Member:
			fs, isFixed = c.MemberFixedNw(v)
			f = c.MemberFormulas(v)
		case *model.Switch:
			fs, isFixed = c.SwitchFixedNw(v)
			f = c.SwitchFormulas(ct, v)
		}
		if isFixed {
			fixed = fixed.Add(fs)
		} else {
			nw = append(nw, f.Nw)
		}
		extra = append(extra, f.Extra)
	}
	nw = append(Add{fixed.Expr()}, nw...)

	sizeof := c.Layout(ct).Size
	ext := Fold(extra)
	return Formulas{
		Nw:    Fold(nw),
		Extra: ext,
		Mem:   Fold(Add{Const(sizeof), ext}),
	}
}

func gate(e Expr, minor int) Expr {
	if minor <= 0 {
		return e
	}
	return Cond{Minor: minor, Then: e}
}
