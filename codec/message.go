package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/internal/abi"
	"github.com/wippyai/protogen/layout"
)

// Record is a struct value keyed by member name. Decoded records hold
// uint64 or int64 for primitives, Record for structs, nil or Record for
// pointers, []byte for unsigned 8-bit arrays and []any for other arrays.
type Record map[string]any

// Message is a decoded message: its memory image and the wire it came from.
type Message struct {
	plan *Plan
	// Arena is the little-endian memory image; the root struct is at offset 0.
	Arena []byte
	// Wire is the input. Wire-backed members alias it.
	Wire []byte
	// Size is the wire size of the message body, excluding pointer targets.
	Size  uint64
	Minor int
}

// Plan returns the plan the message was decoded with.
func (m *Message) Plan() *Plan { return m.plan }

// Value materializes the memory image.
func (m *Message) Value() Record {
	return m.reader().record(m.plan.root, 0)
}

// View returns an accessor over the root struct.
func (m *Message) View() View {
	return View{r: m.reader(), cp: m.plan.root}
}

func (m *Message) reader() reader {
	return reader{arena: m.Arena, wire: m.Wire, order: m.plan.opts.ByteOrder, minor: m.Minor}
}

type reader struct {
	order ByteOrder
	arena []byte
	wire  []byte
	minor int
}

func (r reader) u64(at uint64, size int) uint64 {
	return abi.ReadUint(binary.LittleEndian, r.arena[at:], size)
}

func (r reader) scalar(v uint64, size int, signed bool) any {
	if signed {
		return abi.SignExtend(v, size)
	}
	return v
}

func (r reader) record(cp *containerPlan, base uint64) Record {
	rec := make(Record, len(cp.fields))
	for _, f := range cp.fields {
		r.field(rec, f, base)
	}
	return rec
}

func (r reader) field(rec Record, f *fieldPlan, base uint64) {
	at := base + f.slot.Offset
	switch f.kind {
	case kindValue:
		if !f.zero {
			rec[f.name] = r.scalar(r.u64(at, f.size), f.size, f.signed)
		}
	case kindStruct:
		if !f.toPtr {
			rec[f.name] = r.record(f.inner, at)
			return
		}
		rec[f.name] = r.pointer(f.inner, r.u64(at, layout.RefSize))
	case kindPointer:
		rec[f.name] = r.pointer(f.inner, r.u64(at, layout.RefSize))
	case kindArray:
		rec[f.name] = r.array(f, at)
	case kindSwitch:
		if f.minor > r.minor {
			return
		}
		sp := f.sw
		idx := sp.match(r.u64(base+sp.discRef.offset, sp.discRef.size))
		if idx < 0 {
			return
		}
		cf := sp.cases[idx].field
		if sp.anon {
			r.field(rec, cf, base)
			return
		}
		sub := make(Record, 1)
		r.field(sub, cf, base)
		rec[f.name] = sub
	}
}

func (r reader) pointer(cp *containerPlan, ref uint64) any {
	if ref == 0 {
		return nil
	}
	return r.record(cp, ref)
}

func (r reader) array(f *fieldPlan, at uint64) any {
	a, e := f.arr, f.arr.elem
	switch {
	case a.inline:
		return r.elements(e, at, a.constN)
	case f.chunk:
		desc := r.u64(at, layout.RefSize)
		if desc == 0 {
			if f.ptr {
				return nil
			}
			return []byte{}
		}
		off, n := r.u64(desc, 8), r.u64(desc+8, 8)
		return r.wire[off : off+n]
	}

	off, count := r.u64(at, 8), r.u64(at+8, 8)
	// arena offset 0 is the top-level image, wire offset 0 is valid data
	if off == 0 && (f.ptr || !f.slot.Wire) {
		if f.ptr {
			return nil
		}
		count = 0
	}
	switch {
	case f.slot.Wire:
		if e.bytes {
			return r.wire[off : off+count]
		}
		return r.wireElements(e, off, count)
	case a.ptrArray:
		out := make([]any, count)
		for i := range out {
			ref := r.u64(off+uint64(i)*8, 8)
			out[i] = r.element(e, ref)
		}
		if e.bytes {
			b := make([]byte, count)
			for i, v := range out {
				b[i] = byte(v.(uint64))
			}
			return b
		}
		return out
	}
	return r.elements(e, off, count)
}

// elements materializes count contiguous elements of the image at mem.
func (r reader) elements(e *elemPlan, mem, count uint64) any {
	if e.bytes {
		out := make([]byte, count)
		copy(out, r.arena[mem:mem+count])
		return out
	}
	out := make([]any, count)
	for i := range out {
		out[i] = r.element(e, mem+uint64(i)*e.sizeof)
	}
	return out
}

func (r reader) element(e *elemPlan, mem uint64) any {
	if e.inner != nil {
		return r.record(e.inner, mem)
	}
	return r.scalar(r.u64(mem, e.size), e.size, e.signed)
}

// wireElements decodes primitive elements left on the wire.
func (r reader) wireElements(e *elemPlan, off, count uint64) []any {
	out := make([]any, count)
	for i := range out {
		v := abi.ReadUint(r.order, r.wire[off+uint64(i)*uint64(e.size):], e.size)
		out[i] = r.scalar(v, e.size, e.signed)
	}
	return out
}

// View reads a decoded struct in place.
type View struct {
	cp   *containerPlan
	r    reader
	base uint64
}

// Name returns the struct or message name.
func (v View) Name() string { return v.cp.name }

func (v View) find(name string) (*fieldPlan, error) {
	f, sw, ok := v.cp.lookup(name)
	if !ok {
		return nil, errors.UnknownMember(v.cp.name, name)
	}
	if f.minor > v.r.minor || (sw != nil && sw.minor > v.r.minor) {
		return nil, errors.FieldMissing(errors.PhaseDecode, []string{v.cp.name}, name)
	}
	if sw != nil {
		idx := sw.sw.match(v.r.u64(v.base+sw.sw.discRef.offset, sw.sw.discRef.size))
		if idx < 0 || sw.sw.cases[idx].field != f {
			return nil, errors.FieldMissing(errors.PhaseDecode, []string{v.cp.name, sw.name}, name)
		}
	}
	return f, nil
}

// Uint returns an unsigned primitive member.
func (v View) Uint(name string) (uint64, error) {
	f, err := v.find(name)
	if err != nil {
		return 0, err
	}
	if f.kind != kindValue || f.zero {
		return 0, mismatch(f, "integer")
	}
	return v.r.u64(v.base+f.slot.Offset, f.size), nil
}

// Int returns a primitive member sign-extended to 64 bits.
func (v View) Int(name string) (int64, error) {
	u, err := v.Uint(name)
	if err != nil {
		return 0, err
	}
	f, _ := v.find(name)
	if f.signed {
		return abi.SignExtend(u, f.size), nil
	}
	return int64(u), nil
}

// Struct returns a nested struct, a @to_ptr struct or a pointer target.
// ok is false for null pointers.
func (v View) Struct(name string) (View, bool, error) {
	f, err := v.find(name)
	if err != nil {
		return View{}, false, err
	}
	at := v.base + f.slot.Offset
	switch {
	case f.kind == kindStruct && !f.toPtr:
		return View{r: v.r, cp: f.inner, base: at}, true, nil
	case f.kind == kindStruct, f.kind == kindPointer:
		ref := v.r.u64(at, layout.RefSize)
		if ref == 0 {
			return View{}, false, nil
		}
		return View{r: v.r, cp: f.inner, base: ref}, true, nil
	}
	return View{}, false, mismatch(f, "struct")
}

// Array materializes an array member.
func (v View) Array(name string) (any, error) {
	f, err := v.find(name)
	if err != nil {
		return nil, err
	}
	if f.kind != kindArray {
		return nil, mismatch(f, "array")
	}
	return v.r.array(f, v.base+f.slot.Offset), nil
}

// WireOffset returns the wire position and element count of an array
// member left on the wire (@nocopy, @as_ptr or @chunk).
func (v View) WireOffset(name string) (offset, count uint64, err error) {
	f, err := v.find(name)
	if err != nil {
		return 0, 0, err
	}
	at := v.base + f.slot.Offset
	switch {
	case f.kind == kindArray && f.chunk:
		desc := v.r.u64(at, layout.RefSize)
		if desc == 0 {
			return 0, 0, nil
		}
		return v.r.u64(desc, 8), v.r.u64(desc+8, 8), nil
	case f.kind == kindArray && f.slot.Wire:
		return v.r.u64(at, 8), v.r.u64(at+8, 8), nil
	}
	return 0, 0, mismatch(f, "wire-backed array")
}

// Record materializes the viewed struct.
func (v View) Record() Record { return v.r.record(v.cp, v.base) }

func mismatch(f *fieldPlan, want string) error {
	return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		Path(f.path...).
		Type(want).
		Detail("member is a %s", kindName(f.kind)).
		Build()
}

func kindName(k fieldKind) string {
	switch k {
	case kindValue:
		return "integer"
	case kindStruct:
		return "struct"
	case kindPointer:
		return "pointer"
	case kindArray:
		return "array"
	case kindSwitch:
		return "switch"
	}
	return fmt.Sprintf("kind %d", int(k))
}
