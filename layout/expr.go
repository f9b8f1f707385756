package layout

import (
	"fmt"
	"strings"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/internal/abi"
)

// Env binds the names a size expression may reference.
type Env struct {
	// Fields holds sibling field values keyed by (dotted) member path.
	Fields map[string]uint64
	// Terms holds named sub-results such as "data__nw_size".
	Terms map[string]uint64
	Minor int
}

// NewEnv returns an empty environment for the given minor version.
func NewEnv(minor int) *Env {
	return &Env{
		Fields: make(map[string]uint64),
		Terms:  make(map[string]uint64),
		Minor:  minor,
	}
}

// Expr is a size formula.
type Expr interface {
	Eval(env *Env) (uint64, error)
	String() string
}

type (
	// Const is a literal.
	Const uint64
	// Ref names a derived term bound in Env.Terms.
	Ref string
	// Field reads a sibling field value from Env.Fields.
	Field string
	// Add sums its operands.
	Add []Expr
	// Max is the largest operand, or 0.
	Max []Expr
	// Mul is L*R.
	Mul struct{ L, R Expr }
	// Div is L/R, truncating.
	Div struct{ L, R Expr }
	// Cond is Then when the minor version is at least Minor, else 0.
	Cond struct {
		Then  Expr
		Minor int
	}
	// AlignUp rounds X up to a multiple of Align.
	AlignUp struct {
		X     Expr
		Align uint64
	}
)

func (c Const) Eval(*Env) (uint64, error) { return uint64(c), nil }
func (c Const) String() string            { return fmt.Sprint(uint64(c)) }

func (r Ref) Eval(env *Env) (uint64, error) {
	if v, ok := env.Terms[string(r)]; ok {
		return v, nil
	}
	return 0, errors.New(errors.PhaseCompile, errors.KindFieldMissing).
		Detail("size term %s is not bound", string(r)).Build()
}

func (r Ref) String() string { return string(r) }

func (f Field) Eval(env *Env) (uint64, error) {
	if v, ok := env.Fields[string(f)]; ok {
		return v, nil
	}
	return 0, errors.New(errors.PhaseCompile, errors.KindFieldMissing).
		Detail("field %s is not bound", string(f)).Build()
}

func (f Field) String() string { return string(f) }

func (a Add) Eval(env *Env) (uint64, error) {
	var sum uint64
	for _, e := range a {
		v, err := e.Eval(env)
		if err != nil {
			return 0, err
		}
		var ok bool
		if sum, ok = abi.SafeAdd(sum, v); !ok {
			return 0, overflow(a)
		}
	}
	return sum, nil
}

func (a Add) String() string {
	if len(a) == 0 {
		return "0"
	}
	parts := make([]string, len(a))
	for i, e := range a {
		parts[i] = e.String()
	}
	return strings.Join(parts, " + ")
}

func (m Max) Eval(env *Env) (uint64, error) {
	var best uint64
	for _, e := range m {
		v, err := e.Eval(env)
		if err != nil {
			return 0, err
		}
		best = max(best, v)
	}
	return best, nil
}

func (m Max) String() string {
	parts := make([]string, len(m))
	for i, e := range m {
		parts[i] = e.String()
	}
	return "max(" + strings.Join(parts, ", ") + ")"
}

func (m Mul) Eval(env *Env) (uint64, error) {
	l, err := m.L.Eval(env)
	if err != nil {
		return 0, err
	}
	r, err := m.R.Eval(env)
	if err != nil {
		return 0, err
	}
	v, ok := abi.SafeMul(l, r)
	if !ok {
		return 0, overflow(m)
	}
	return v, nil
}

func (m Mul) String() string { return operand(m.L) + " * " + operand(m.R) }

func (d Div) Eval(env *Env) (uint64, error) {
	l, err := d.L.Eval(env)
	if err != nil {
		return 0, err
	}
	r, err := d.R.Eval(env)
	if err != nil {
		return 0, err
	}
	if r == 0 {
		return 0, errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Detail("division by zero in %s", d).Build()
	}
	return l / r, nil
}

func (d Div) String() string { return operand(d.L) + " / " + operand(d.R) }

func (c Cond) Eval(env *Env) (uint64, error) {
	if env.Minor < c.Minor {
		return 0, nil
	}
	return c.Then.Eval(env)
}

func (c Cond) String() string {
	return fmt.Sprintf("(minor >= %d ? %s : 0)", c.Minor, c.Then)
}

func (a AlignUp) Eval(env *Env) (uint64, error) {
	v, err := a.X.Eval(env)
	if err != nil {
		return 0, err
	}
	aligned := abi.AlignTo(v, a.Align)
	if aligned < v {
		return 0, overflow(a)
	}
	return aligned, nil
}

func (a AlignUp) String() string { return fmt.Sprintf("align%d(%s)", a.Align, a.X) }

func operand(e Expr) string {
	switch e.(type) {
	case Add:
		return "(" + e.String() + ")"
	}
	return e.String()
}

func overflow(e Expr) error {
	return errors.Overflow(errors.PhaseDecode, nil, e.String(), "uint64")
}

// Fold performs constant folding.
func Fold(e Expr) Expr {
	switch v := e.(type) {
	case Add:
		var konst uint64
		var rest Add
		for _, t := range v {
			t = Fold(t)
			switch tt := t.(type) {
			case Const:
				konst += uint64(tt)
			case Add:
				for _, inner := range tt {
					if c, ok := inner.(Const); ok {
						konst += uint64(c)
					} else {
						rest = append(rest, inner)
					}
				}
			default:
				rest = append(rest, t)
			}
		}
		if len(rest) == 0 {
			return Const(konst)
		}
		if konst != 0 {
			rest = append(Add{Const(konst)}, rest...)
		}
		if len(rest) == 1 {
			return rest[0]
		}
		return rest
	case Max:
		var konst uint64
		var rest Max
		for _, t := range v {
			t = Fold(t)
			if c, ok := t.(Const); ok {
				konst = max(konst, uint64(c))
			} else {
				rest = append(rest, t)
			}
		}
		if len(rest) == 0 {
			return Const(konst)
		}
		if konst != 0 {
			rest = append(rest, Const(konst))
		}
		if len(rest) == 1 {
			return rest[0]
		}
		return rest
	case Mul:
		l, r := Fold(v.L), Fold(v.R)
		lc, lok := l.(Const)
		rc, rok := r.(Const)
		switch {
		case lok && rok:
			return Const(uint64(lc) * uint64(rc))
		case (lok && lc == 0) || (rok && rc == 0):
			return Const(0)
		case lok && lc == 1:
			return r
		case rok && rc == 1:
			return l
		}
		return Mul{L: l, R: r}
	case Div:
		l, r := Fold(v.L), Fold(v.R)
		lc, lok := l.(Const)
		rc, rok := r.(Const)
		switch {
		case lok && rok && rc != 0:
			return Const(uint64(lc) / uint64(rc))
		case rok && rc == 1:
			return l
		}
		return Div{L: l, R: r}
	case Cond:
		then := Fold(v.Then)
		if c, ok := then.(Const); ok && c == 0 {
			return Const(0)
		}
		if v.Minor <= 0 {
			return then
		}
		return Cond{Minor: v.Minor, Then: then}
	case AlignUp:
		x := Fold(v.X)
		if c, ok := x.(Const); ok {
			return Const(abi.AlignTo(uint64(c), v.Align))
		}
		if v.Align <= 1 {
			return x
		}
		return AlignUp{X: x, Align: v.Align}
	}
	return e
}

// IsConst reports whether e folds to a constant and returns it.
func IsConst(e Expr) (uint64, bool) {
	c, ok := Fold(e).(Const)
	return uint64(c), ok
}
