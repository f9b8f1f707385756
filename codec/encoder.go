package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/internal/abi"
	"github.com/wippyai/protogen/model"
)

// EncodeOptions controls marshalling.
type EncodeOptions struct {
	Minor int
	// MarshalAll encodes every non-null pointer target in place of handing
	// out sub-marshallers for members without @marshall.
	MarshalAll bool
}

// Outputs maps pointer members left to the caller to the sub-marshaller
// of their target. Keys are "<outvar>_<member>" for members carrying
// @outvar and the dotted member path otherwise.
type Outputs map[string]*Marshaller

type encoder struct {
	plan *Plan
	out  Outputs
	opts EncodeOptions
}

// Marshal appends rec to m. Pointer targets of members marked @marshall
// are encoded through sub-marshallers; the others are returned as Outputs
// unless opts.MarshalAll is set.
func (p *Plan) Marshal(m *Marshaller, rec Record, opts EncodeOptions) (Outputs, error) {
	e := &encoder{plan: p, opts: opts, out: make(Outputs)}
	if err := e.container(p.root, m, rec, ""); err != nil {
		return nil, err
	}
	return e.out, nil
}

// Encode marshals rec with every pointer target included and returns the
// linearized message.
func (p *Plan) Encode(rec Record, minor int) ([]byte, error) {
	m := NewMarshaller(p.opts.ByteOrder)
	if _, err := p.Marshal(m, rec, EncodeOptions{Minor: minor, MarshalAll: true}); err != nil {
		return nil, err
	}
	return m.Linearize(), nil
}

func (e *encoder) container(cp *containerPlan, m *Marshaller, rec Record, prefix string) error {
	lengths := make(map[string]int)
	for _, f := range cp.fields {
		if f.minor > e.opts.Minor {
			continue
		}
		if err := e.field(cp, f, m, rec, rec, prefix, lengths); err != nil {
			return err
		}
	}
	return nil
}

// field encodes f taking its value from src. scope is the record of the
// enclosing container, used for size and discriminant references.
func (e *encoder) field(cp *containerPlan, f *fieldPlan, m *Marshaller, src, scope Record, prefix string, lengths map[string]int) error {
	switch f.kind {
	case kindValue:
		if f.virtual || f.nomarshal {
			return nil
		}
		if f.zero {
			m.AddUint(f.size, 0)
			return nil
		}
		if size, ok := cp.lengths[f.name]; ok && size == f.size {
			lengths[f.name] = m.Reserve(f.size)
			return nil
		}
		v, ok := src[f.name]
		if !ok {
			return errors.FieldMissing(errors.PhaseEncode, f.path, f.name)
		}
		return e.putUint(m, f.path, f.size, f.signed, v)

	case kindStruct:
		sub, err := e.member(f, src)
		if err != nil {
			return err
		}
		return e.container(f.inner, m, sub, prefix+f.name+".")

	case kindPointer:
		v := src[f.name]
		if isNull(v) {
			return e.null(m, f)
		}
		sub := e.target(m, f, prefix)
		if sub == nil {
			return nil
		}
		r, ok := asRecord(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, f.path, "record", v)
		}
		return e.container(f.inner, sub, r, prefix+f.name+".")

	case kindArray:
		if !f.ptr {
			return e.array(cp, f, m, m, src, scope, prefix, lengths)
		}
		if isNull(src[f.name]) {
			return e.null(m, f)
		}
		sub := e.target(m, f, prefix)
		if sub == nil {
			return nil
		}
		return e.array(cp, f, sub, m, src, scope, prefix, lengths)

	case kindSwitch:
		return e.switchField(cp, f, m, src, prefix, lengths)
	}
	return errors.Unimplemented(f.path, fmt.Sprintf("field kind %d", f.kind))
}

func (e *encoder) null(m *Marshaller, f *fieldPlan) error {
	if f.nonnull {
		return errors.NullPointer(errors.PhaseEncode, f.path)
	}
	m.AddUint(f.width, 0)
	return nil
}

// target reserves a pointer slot. It returns nil when the target is handed
// to the caller.
func (e *encoder) target(m *Marshaller, f *fieldPlan, prefix string) *Marshaller {
	sub := m.PtrSubmarshaller(f.width)
	if f.marshall || e.opts.MarshalAll {
		sub.MarkPresent()
		return sub
	}
	name := prefix + f.name
	if f.outvar != "" {
		name = f.outvar + "_" + f.name
	}
	e.out[name] = sub
	return nil
}

func (e *encoder) member(f *fieldPlan, src Record) (Record, error) {
	v, ok := src[f.name]
	if !ok {
		return nil, errors.FieldMissing(errors.PhaseEncode, f.path, f.name)
	}
	r, ok := asRecord(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseEncode, f.path, "record", v)
	}
	return r, nil
}

func (e *encoder) putUint(m *Marshaller, path []string, size int, signed bool, v any) error {
	w, ok := coerceToWire(v, size, signed)
	if ok {
		m.AddUint(size, w)
		return nil
	}
	if _, num := abi.CoerceToInt64(v); num {
		return errors.Overflow(errors.PhaseEncode, path, v, fmt.Sprintf("%d-byte integer", size))
	}
	if _, num := abi.CoerceToUint64(v); num {
		return errors.Overflow(errors.PhaseEncode, path, v, fmt.Sprintf("%d-byte integer", size))
	}
	return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
		Path(path...).
		Type("integer").
		Value(v).
		Detail("cannot use %s", typeName(v)).
		Build()
}

func (e *encoder) array(cp *containerPlan, f *fieldPlan, dst, holder *Marshaller, src, scope Record, prefix string, lengths map[string]int) error {
	a, el := f.arr, f.arr.elem
	v, ok := src[f.name]
	if !ok {
		return errors.FieldMissing(errors.PhaseEncode, f.path, f.name)
	}
	items, raw, err := list(f, v)
	if err != nil {
		return err
	}
	n := len(items)
	if el.bytes {
		n = len(raw)
	}

	switch a.kind {
	case model.SizeConst, model.SizeField, model.SizeImage:
		env := getEnv(e.opts.Minor)
		defer putEnv(env)
		for _, ref := range a.refs {
			val, err := e.lookupUint(cp, scope, ref)
			if err != nil {
				return err
			}
			env.Fields[ref] = val
		}
		count, err := a.count.Eval(env)
		if err != nil {
			return errors.WithPath(err, f.path...)
		}
		if uint64(n) < count {
			return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
				Path(f.path...).
				Detail("array holds %d elements, declared count is %d", n, count).
				Build()
		}
		n = int(count)
	}

	start := dst.Len()
	if el.bytes {
		if a.kind == model.SizeCString && bytes.IndexByte(raw[:n], 0) >= 0 {
			return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
				Path(f.path...).
				Detail("string contains a NUL byte").
				Build()
		}
		dst.AddBytes(raw[:n])
	} else {
		for i, item := range items[:n] {
			if el.inner == nil {
				if err := e.putUint(dst, f.path, el.size, el.signed, item); err != nil {
					return err
				}
				continue
			}
			r, ok := asRecord(item)
			if !ok {
				return errors.TypeMismatch(errors.PhaseEncode, f.path, "record", item)
			}
			if err := e.container(el.inner, dst, r, fmt.Sprintf("%s%s[%d].", prefix, f.name, i)); err != nil {
				return err
			}
		}
	}
	if a.kind == model.SizeCString {
		dst.AddUint(1, 0)
	}
	if a.kind == model.SizeBytes {
		if at, ok := lengths[a.bytesLen]; ok {
			holder.SetUint(at, a.lenSize, uint64(dst.Len()-start))
		}
	}
	return nil
}

func (e *encoder) switchField(cp *containerPlan, f *fieldPlan, m *Marshaller, rec Record, prefix string, lengths map[string]int) error {
	sp := f.sw
	disc, err := e.lookupUint(cp, rec, sp.disc)
	if err != nil {
		return err
	}
	idx := sp.match(disc)
	if idx < 0 {
		return errors.InvalidDiscriminant(errors.PhaseEncode, f.path, disc)
	}
	cf := sp.cases[idx].field

	src := rec
	if !sp.anon {
		if src, err = e.member(f, rec); err != nil {
			return err
		}
	}
	start := m.Len()
	if cf.minor <= e.opts.Minor {
		if err := e.field(cp, cf, m, src, rec, prefix, lengths); err != nil {
			return err
		}
	}
	if sp.fixedsize {
		size := int(sp.fixed.At(e.opts.Minor))
		n := m.Len() - start
		if n > size {
			return errors.Overflow(errors.PhaseEncode, f.path, n, fmt.Sprintf("fixed size %d", size))
		}
		m.Reserve(size - n)
	}
	return nil
}

// lookupUint resolves a dotted reference against a container record. Case
// members of named switches are found inside the switch's record; virtual
// and absent members yield their implied values.
func (e *encoder) lookupUint(cp *containerPlan, scope Record, path string) (uint64, error) {
	segs := strings.Split(path, ".")
	cur, curCp := scope, cp
	for i, seg := range segs {
		f, sw, found := curCp.lookup(seg)
		if !found {
			return 0, errors.UnknownMember(curCp.name, path)
		}
		if f.minor > e.opts.Minor || (sw != nil && sw.minor > e.opts.Minor) {
			return 0, nil
		}
		if f.virtual {
			return f.virtualValue, nil
		}
		if f.zero {
			return 0, nil
		}
		v, ok := cur[seg]
		if !ok && sw != nil && !sw.sw.anon {
			if sub, isRec := asRecord(cur[sw.name]); isRec {
				v, ok = sub[seg]
			}
		}
		if !ok {
			return 0, errors.FieldMissing(errors.PhaseEncode, []string{cp.name}, path)
		}
		if i == len(segs)-1 {
			u, ok := abi.CoerceToUint64(v)
			if !ok {
				return 0, errors.TypeMismatch(errors.PhaseEncode, []string{cp.name, path}, "unsigned integer", v)
			}
			return u, nil
		}
		r, ok := asRecord(v)
		if !ok || f.inner == nil {
			return 0, errors.TypeMismatch(errors.PhaseEncode, []string{cp.name, path}, "record", v)
		}
		cur, curCp = r, f.inner
	}
	return 0, errors.UnknownMember(cp.name, path)
}

func asRecord(v any) (Record, bool) {
	switch r := v.(type) {
	case Record:
		return r, true
	case map[string]any:
		return Record(r), true
	}
	return nil, false
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case Record:
		return x == nil
	case map[string]any:
		return x == nil
	case []byte:
		return x == nil
	case []any:
		return x == nil
	}
	return false
}

// list normalizes an array value: unsigned 8-bit arrays to raw bytes,
// everything else to items.
func list(f *fieldPlan, v any) ([]any, []byte, error) {
	el := f.arr.elem
	var items []any
	switch x := v.(type) {
	case []byte:
		if el.bytes {
			return nil, x, nil
		}
		items = make([]any, len(x))
		for i, b := range x {
			items[i] = uint64(b)
		}
		return items, nil, nil
	case string:
		return list(f, []byte(x))
	case []any:
		items = x
	case []Record:
		items = make([]any, len(x))
		for i, r := range x {
			items[i] = r
		}
	case []map[string]any:
		items = make([]any, len(x))
		for i, r := range x {
			items[i] = Record(r)
		}
	default:
		return nil, nil, errors.TypeMismatch(errors.PhaseEncode, f.path, "array", v)
	}
	if !el.bytes {
		return items, nil, nil
	}
	raw := make([]byte, len(items))
	for i, item := range items {
		b, ok := coerceToWire(item, 1, false)
		if !ok {
			return nil, nil, errors.Overflow(errors.PhaseEncode, f.path, item, "byte")
		}
		raw[i] = byte(b)
	}
	return nil, raw, nil
}
