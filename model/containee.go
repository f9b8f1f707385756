package model

import (
	"strings"

	"github.com/wippyai/protogen/errors"
)

// Containee is a declared field: a *Member or a *Switch.
type Containee interface {
	isContainee()
	MemberName() string
	Attributes() Attrs
}

// Member is a plain field.
type Member struct {
	Type      Type
	Attrs     Attrs
	Container *Container
	// Switch is set for case members.
	Switch *Switch
	Name   string
	Line   int
}

// Guard is one case label. For enums Value is the label's value; for flags
// it is the bit mask tested. Not negates the test.
type Guard struct {
	Label   string
	Value   uint64
	Default bool
	Not     bool
}

// Case is a switch arm.
type Case struct {
	Member *Member
	Guards []Guard
}

// Switch is a tagged variant discriminated by an earlier field.
type Switch struct {
	Attrs     Attrs
	Container *Container
	// VarPath is the resolved discriminant, outermost member first.
	VarPath []*Member
	Var     string
	Name    string
	Cases   []*Case
	Line    int
	// Flags is true when the discriminant is a flag set (bit tests).
	Flags bool
}

func (*Member) isContainee() {}
func (*Switch) isContainee() {}

func (m *Member) MemberName() string { return m.Name }
func (s *Switch) MemberName() string { return s.Name }

func (m *Member) Attributes() Attrs { return m.Attrs }
func (s *Switch) Attributes() Attrs { return s.Attrs }

// Has reports whether the member carries the attribute.
func (m *Member) Has(attr string) bool { return m.Attrs.Has(attr) }

// HasDefault reports whether any case carries a default guard.
func (s *Switch) HasDefault() bool {
	for _, c := range s.Cases {
		for _, g := range c.Guards {
			if g.Default {
				return true
			}
		}
	}
	return false
}

// Match returns the first case accepting v, or nil.
func (s *Switch) Match(v uint64) *Case {
	for _, c := range s.Cases {
		for _, g := range c.Guards {
			if g.Matches(v, s.Flags) {
				return c
			}
		}
	}
	return nil
}

// Matches applies the guard to a discriminant value.
func (g Guard) Matches(v uint64, flags bool) bool {
	if g.Default {
		return true
	}
	var hit bool
	if flags {
		hit = v&g.Value != 0
	} else {
		hit = v == g.Value
	}
	return hit != g.Not
}

// Lookup resolves a dotted member path. The first segment may name a
// direct member or a member of any switch case in the container; further
// segments descend into nested structs.
func (c *Container) Lookup(path string) ([]*Member, error) {
	segs := strings.Split(path, ".")
	var chain []*Member
	cur := c
	for i, seg := range segs {
		if cur == nil {
			return nil, errors.UnknownMember(c.Name, path)
		}
		m := cur.find(seg)
		if m == nil {
			return nil, errors.UnknownMember(c.Name, path)
		}
		chain = append(chain, m)
		if i < len(segs)-1 {
			inner, ok := AsContainer(m.Type)
			if !ok {
				return nil, errors.UnknownMember(c.Name, path)
			}
			cur = inner
		}
	}
	return chain, nil
}

func (c *Container) find(name string) *Member {
	for _, cm := range c.Members {
		switch v := cm.(type) {
		case *Member:
			if v.Name == name {
				return v
			}
		case *Switch:
			for _, cs := range v.Cases {
				if cs.Member.Name == name {
					return cs.Member
				}
			}
		}
	}
	return nil
}

// Index returns the position of the top-level containee that holds m.
func (c *Container) Index(m *Member) int {
	for i, cm := range c.Members {
		switch v := cm.(type) {
		case *Member:
			if v == m {
				return i
			}
		case *Switch:
			if m.Switch == v {
				return i
			}
		}
	}
	return -1
}

// Member returns the direct (non-switch) member with the given name.
func (c *Container) Member(name string) (*Member, bool) {
	for _, cm := range c.Members {
		if m, ok := cm.(*Member); ok && m.Name == name {
			return m, true
		}
	}
	return nil, false
}
