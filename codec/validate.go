package codec

import (
	"bytes"
	"fmt"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/internal/abi"
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

// traceKey identifies one visit of a field at a wire position.
type traceKey struct {
	field *fieldPlan
	pos   uint64
}

// traceEntry records what validation learned about an array or switch.
type traceEntry struct {
	count uint64
	nw    uint64
	cse   int
}

// validation is the outcome of the first decode pass.
type validation struct {
	trace map[traceKey]traceEntry
	nw    uint64
	mem   uint64
}

// validator walks the wire without allocating the memory image. It checks
// bounds and discriminants and computes the exact arena size.
type validator struct {
	plan  *Plan
	wire  []byte
	trace map[traceKey]traceEntry
	minor int
	depth int
}

func (p *Plan) validate(wire []byte, minor int) (*validation, error) {
	v := &validator{
		plan:  p,
		wire:  wire,
		minor: minor,
		trace: make(map[traceKey]traceEntry),
	}
	env := getEnv(minor)
	defer putEnv(env)

	nw, extra, err := v.container(p.root, 0, env)
	if err != nil {
		return nil, err
	}
	if nw > uint64(len(wire)) {
		return nil, errors.OutOfBounds([]string{p.Name}, 0, nw, len(wire))
	}
	mem, ok := safeAdd(p.root.size, extra)
	if !ok || mem > p.opts.MaxAlloc {
		return nil, errors.AllocationFailed(mem, p.opts.MaxAlloc)
	}
	return &validation{trace: v.trace, nw: nw, mem: mem}, nil
}

func (v *validator) need(f *fieldPlan, pos, n uint64) error {
	end, ok := safeAdd(pos, n)
	if !ok || end > uint64(len(v.wire)) {
		return errors.OutOfBounds(f.path, pos, n, len(v.wire))
	}
	return nil
}

func (v *validator) read(f *fieldPlan, pos uint64, size int) (uint64, error) {
	if err := v.need(f, pos, uint64(size)); err != nil {
		return 0, err
	}
	return abi.ReadUint(v.plan.opts.ByteOrder, v.wire[pos:], size), nil
}

// container validates cp at pos and returns its wire size and the
// out-of-line memory it needs. Field values land in env.
func (v *validator) container(cp *containerPlan, pos uint64, env *layout.Env) (uint64, uint64, error) {
	start := pos
	for _, f := range cp.fields {
		if f.minor > v.minor {
			bindAbsent(f, env)
			continue
		}
		n, extra, err := v.field(f, pos, env)
		if err != nil {
			return 0, 0, err
		}
		env.Terms[layout.TermNw(f.name)] = n
		env.Terms[layout.TermExtra(f.name)] = extra
		pos += n
	}

	nw, err := cp.formulas.Nw.Eval(env)
	if err != nil {
		return 0, 0, errors.WithPath(err, cp.name)
	}
	if nw != pos-start {
		return 0, 0, errors.Malformed([]string{cp.name},
			fmt.Sprintf("computed size %d disagrees with %d bytes read", nw, pos-start))
	}
	extra, err := cp.formulas.Extra.Eval(env)
	if err != nil {
		return 0, 0, errors.WithPath(err, cp.name)
	}
	return nw, extra, nil
}

func bindAbsent(f *fieldPlan, env *layout.Env) {
	if f.kind == kindValue {
		env.Fields[f.name] = 0
	}
}

func (v *validator) field(f *fieldPlan, pos uint64, env *layout.Env) (uint64, uint64, error) {
	switch f.kind {
	case kindValue:
		if f.virtual {
			env.Fields[f.name] = f.virtualValue
			return 0, 0, nil
		}
		val, err := v.read(f, pos, f.size)
		if err != nil {
			return 0, 0, err
		}
		env.Fields[f.name] = val
		return uint64(f.size), 0, nil

	case kindStruct:
		inner := getEnv(v.minor)
		defer putEnv(inner)
		nw, extra, err := v.container(f.inner, pos, inner)
		if err != nil {
			return 0, 0, err
		}
		for name, val := range inner.Fields {
			env.Fields[f.name+"."+name] = val
		}
		if f.toPtr {
			extra, err = v.block(f, f.inner.size, extra)
		}
		return nw, extra, err

	case kindPointer:
		off, err := v.pointer(f, pos)
		if err != nil || off == 0 {
			return uint64(f.width), 0, err
		}
		if err := v.enter(f); err != nil {
			return 0, 0, err
		}
		inner := getEnv(v.minor)
		defer putEnv(inner)
		_, extra, err := v.container(f.inner, off, inner)
		v.depth--
		if err != nil {
			return 0, 0, err
		}
		extra, err = v.block(f, f.inner.size, extra)
		return uint64(f.width), extra, err

	case kindArray:
		return v.arrayField(f, pos, env)

	case kindSwitch:
		return v.switchField(f, pos, env)
	}
	return 0, 0, errors.Unimplemented(f.path, fmt.Sprintf("field kind %d", f.kind))
}

// block returns the budget of one out-of-line block of size bytes that
// itself needs extra more.
func (v *validator) block(f *fieldPlan, size, extra uint64) (uint64, error) {
	n, ok := safeAdd(v.plan.pad, size)
	if ok {
		n, ok = safeAdd(n, extra)
	}
	if !ok {
		return 0, errors.Overflow(errors.PhaseDecode, f.path, "memory size", "uint64")
	}
	return n, nil
}

func (v *validator) pointer(f *fieldPlan, pos uint64) (uint64, error) {
	off, err := v.read(f, pos, f.width)
	if err != nil {
		return 0, err
	}
	if off == 0 {
		if f.nonnull {
			return 0, errors.NullPointer(errors.PhaseDecode, f.path)
		}
		return 0, nil
	}
	if off > uint64(len(v.wire)) {
		return 0, errors.OutOfBounds(f.path, off, 1, len(v.wire))
	}
	return off, nil
}

func (v *validator) enter(f *fieldPlan) error {
	v.depth++
	if v.depth > v.plan.opts.MaxDepth {
		v.depth--
		return errors.Malformed(f.path, fmt.Sprintf("pointer nesting exceeds %d", v.plan.opts.MaxDepth))
	}
	return nil
}

func (v *validator) arrayField(f *fieldPlan, pos uint64, env *layout.Env) (uint64, uint64, error) {
	if !f.ptr {
		nw, extra, err := v.array(f, pos, env)
		if err != nil {
			return 0, 0, err
		}
		switch {
		case f.arr.inline, f.arr.asPtr:
			extra = 0
		case f.chunk:
			extra = v.plan.pad + v.plan.overhead
		}
		return nw, extra, nil
	}

	off, err := v.pointer(f, pos)
	if err != nil || off == 0 {
		return uint64(f.width), 0, err
	}
	if err := v.enter(f); err != nil {
		return 0, 0, err
	}
	_, extra, err := v.array(f, off, env)
	v.depth--
	if err != nil {
		return 0, 0, err
	}
	switch {
	case f.nocopy:
		extra = 0
	case f.chunk:
		extra = v.plan.pad + v.plan.overhead
	}
	return uint64(f.width), extra, nil
}

// array validates the elements of f at pos. It returns the wire size and
// the budget of the array's data block.
func (v *validator) array(f *fieldPlan, pos uint64, env *layout.Env) (uint64, uint64, error) {
	a, e := f.arr, f.arr.elem
	var count uint64
	switch a.kind {
	case model.SizeRemaining:
		per := e.nw.At(v.minor)
		if per == 0 {
			return 0, 0, errors.Malformed(f.path, "remaining-sized array of empty elements")
		}
		count = (uint64(len(v.wire)) - pos) / per
	case model.SizeCString:
		if pos > uint64(len(v.wire)) {
			return 0, 0, errors.OutOfBounds(f.path, pos, 1, len(v.wire))
		}
		i := bytes.IndexByte(v.wire[pos:], 0)
		if i < 0 {
			return 0, 0, errors.Malformed(f.path, "unterminated string")
		}
		count = uint64(i)
	default:
		n, err := a.count.Eval(env)
		if err != nil {
			return 0, 0, errors.WithPath(err, f.path...)
		}
		count = n
	}
	if count > abi.MaxListLength {
		return 0, 0, errors.New(errors.PhaseDecode, errors.KindAllocation).
			Path(f.path...).
			Detail("array of %d elements exceeds limit %d", count, abi.MaxListLength).
			Build()
	}
	env.Terms[layout.TermCount(f.name)] = count

	var nw, elemExtra uint64
	if e.inner == nil {
		var ok bool
		if nw, ok = safeMul(count, uint64(e.size)); !ok {
			return 0, 0, errors.Overflow(errors.PhaseDecode, f.path, count, "array size")
		}
		if a.kind == model.SizeCString {
			nw++
		}
		if err := v.need(f, pos, nw); err != nil {
			return 0, 0, err
		}
		if a.ptrArray {
			elemExtra = count * (v.plan.pad + e.sizeof)
		}
	} else {
		p := pos
		for i := uint64(0); i < count; i++ {
			inner := getEnv(v.minor)
			n, x, err := v.container(e.inner, p, inner)
			putEnv(inner)
			if err != nil {
				return 0, 0, errors.WithPath(err, fmt.Sprintf("%s[%d]", f.name, i))
			}
			p += n
			if a.ptrArray {
				x += v.plan.pad + e.sizeof
			}
			elemExtra += x
		}
		nw = p - pos
	}
	if a.kind == model.SizeBytes {
		length, err := layout.Field(a.bytesLen).Eval(env)
		if err != nil {
			return 0, 0, errors.WithPath(err, f.path...)
		}
		if nw > length {
			return 0, 0, errors.Malformed(f.path, fmt.Sprintf("%d bytes of elements exceed byte length %d", nw, length))
		}
		if a.bytesOnly && length%a.elemNw != 0 {
			return 0, 0, errors.Malformed(f.path, fmt.Sprintf("byte length %d is not a multiple of element size %d", length, a.elemNw))
		}
	}

	var data uint64
	switch {
	case a.kind == model.SizeCString:
		data = v.plan.pad + count + 1
	case a.ptrArray:
		data = v.plan.pad + count*8 + elemExtra
	default:
		data = v.plan.pad + count*e.sizeof + elemExtra
	}
	v.trace[traceKey{field: f, pos: pos}] = traceEntry{count: count, nw: nw}
	return nw, data, nil
}

func (v *validator) switchField(f *fieldPlan, pos uint64, env *layout.Env) (uint64, uint64, error) {
	sp := f.sw
	disc := env.Fields[sp.disc]
	idx := sp.match(disc)
	if idx < 0 {
		return 0, 0, errors.InvalidDiscriminant(errors.PhaseDecode, f.path, disc)
	}
	v.trace[traceKey{field: f, pos: pos}] = traceEntry{cse: idx}

	cf := sp.cases[idx].field
	var n, extra uint64
	if cf.minor > v.minor {
		bindAbsent(cf, env)
	} else {
		var err error
		if n, extra, err = v.field(cf, pos, env); err != nil {
			return 0, 0, err
		}
		env.Terms[layout.TermNw(cf.name)] = n
		env.Terms[layout.TermExtra(cf.name)] = extra
	}

	if sp.fixedsize {
		size := sp.fixed.At(v.minor)
		if n > size {
			return 0, 0, errors.Malformed(f.path, fmt.Sprintf("case %s exceeds fixed size %d", cf.name, size))
		}
		if err := v.need(f, pos, size); err != nil {
			return 0, 0, err
		}
		n = size
	}
	return n, extra, nil
}
