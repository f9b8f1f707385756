package layout

import (
	"fmt"
	"sort"
	"strings"
)

// MinorTerm is wire size present only from a minor version on.
type MinorTerm struct {
	Minor int
	Size  uint64
}

// FixedSize is a wire size known at compile time up to minor-version gating:
// Base + Σ(Minor ≤ minor ? Size : 0).
type FixedSize struct {
	Minor []MinorTerm
	Base  uint64
}

// Fixed returns an ungated size.
func Fixed(n uint64) FixedSize { return FixedSize{Base: n} }

// At evaluates the size for a minor version.
func (f FixedSize) At(minor int) uint64 {
	n := f.Base
	for _, t := range f.Minor {
		if t.Minor <= minor {
			n += t.Size
		}
	}
	return n
}

// IsConst reports whether no term is gated.
func (f FixedSize) IsConst() bool { return len(f.Minor) == 0 }

// Add returns f+o with terms of equal threshold merged.
func (f FixedSize) Add(o FixedSize) FixedSize {
	out := FixedSize{Base: f.Base + o.Base}
	out.Minor = mergeTerms(append(append([]MinorTerm(nil), f.Minor...), o.Minor...))
	return out
}

// Mul scales every term by n.
func (f FixedSize) Mul(n uint64) FixedSize {
	out := FixedSize{Base: f.Base * n}
	for _, t := range f.Minor {
		out.Minor = append(out.Minor, MinorTerm{Minor: t.Minor, Size: t.Size * n})
	}
	return mergeSize(out)
}

// Gate makes the whole size conditional on minor ≥ n. Terms already gated
// at a higher threshold keep it.
func (f FixedSize) Gate(n int) FixedSize {
	if n <= 0 {
		return f
	}
	out := FixedSize{}
	if f.Base != 0 {
		out.Minor = append(out.Minor, MinorTerm{Minor: n, Size: f.Base})
	}
	for _, t := range f.Minor {
		out.Minor = append(out.Minor, MinorTerm{Minor: max(n, t.Minor), Size: t.Size})
	}
	return mergeSize(out)
}

// Equal compares normalized sizes.
func (f FixedSize) Equal(o FixedSize) bool {
	a, b := mergeSize(f), mergeSize(o)
	if a.Base != b.Base || len(a.Minor) != len(b.Minor) {
		return false
	}
	for i := range a.Minor {
		if a.Minor[i] != b.Minor[i] {
			return false
		}
	}
	return true
}

// Expr converts f into a size formula.
func (f FixedSize) Expr() Expr {
	if f.IsConst() {
		return Const(f.Base)
	}
	sum := Add{}
	if f.Base != 0 {
		sum = append(sum, Const(f.Base))
	}
	for _, t := range f.Minor {
		sum = append(sum, Cond{Minor: t.Minor, Then: Const(t.Size)})
	}
	return sum
}

func (f FixedSize) String() string {
	if f.IsConst() {
		return fmt.Sprint(f.Base)
	}
	parts := []string{fmt.Sprint(f.Base)}
	for _, t := range f.Minor {
		parts = append(parts, fmt.Sprintf("%d@minor%d", t.Size, t.Minor))
	}
	return strings.Join(parts, " + ")
}

func mergeSize(f FixedSize) FixedSize {
	f.Minor = mergeTerms(f.Minor)
	return f
}

func mergeTerms(terms []MinorTerm) []MinorTerm {
	if len(terms) == 0 {
		return nil
	}
	byMinor := make(map[int]uint64)
	for _, t := range terms {
		byMinor[t.Minor] += t.Size
	}
	out := make([]MinorTerm, 0, len(byMinor))
	for m, s := range byMinor {
		if s != 0 {
			out = append(out, MinorTerm{Minor: m, Size: s})
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minor < out[j].Minor })
	return out
}
