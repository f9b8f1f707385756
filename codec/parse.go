package codec

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/internal/abi"
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

// deferred is a pointer target parsed after its holder.
type deferred struct {
	field *fieldPlan
	pos   uint64 // wire offset of the target
	slot  uint64 // arena offset of the holder's slot
	base  uint64 // arena offset of the holder's container
}

// parser fills an arena sized by validation, front to back.
type parser struct {
	plan   *Plan
	wire   []byte
	arena  []byte
	trace  map[traceKey]traceEntry
	queue  []deferred
	cursor uint64
	minor  int
}

// Decode parses one message body. Validation runs first; the memory image
// is allocated once at its exact size and the wire is never modified.
// Wire-backed members of the result alias wire.
func (p *Plan) Decode(wire []byte, minor int) (*Message, error) {
	val, err := p.validate(wire, minor)
	if err != nil {
		return nil, err
	}

	ps := &parser{
		plan:   p,
		wire:   wire,
		arena:  make([]byte, val.mem),
		trace:  val.trace,
		cursor: p.root.size,
		minor:  minor,
	}
	n, err := ps.container(p.root, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := ps.drain(); err != nil {
		return nil, err
	}
	if n != val.nw {
		return nil, errors.Malformed([]string{p.Name}, fmt.Sprintf("parsed %d bytes, validated %d", n, val.nw))
	}

	Logger().Debug("decoded message",
		zap.String("message", p.Name),
		zap.Uint64("wire_size", n),
		zap.Uint64("mem_size", val.mem))

	return &Message{
		Arena: ps.arena,
		Wire:  wire,
		Size:  n,
		Minor: minor,
		plan:  p,
	}, nil
}

func (ps *parser) alloc(f *fieldPlan, n uint64) (uint64, error) {
	off := alignTo(ps.cursor, ps.plan.align)
	end, ok := safeAdd(off, n)
	if !ok || end > uint64(len(ps.arena)) {
		return 0, errors.New(errors.PhaseDecode, errors.KindAllocation).
			Path(f.path...).
			Detail("block of %d bytes overruns arena of %d", n, len(ps.arena)).
			Build()
	}
	ps.cursor = end
	return off, nil
}

func (ps *parser) put(at uint64, size int, v uint64) {
	abi.PutUint(binary.LittleEndian, ps.arena[at:], size, v)
}

func (ps *parser) get(at uint64, size int) uint64 {
	return abi.ReadUint(binary.LittleEndian, ps.arena[at:], size)
}

func (ps *parser) wireUint(pos uint64, size int) uint64 {
	return abi.ReadUint(ps.plan.opts.ByteOrder, ps.wire[pos:], size)
}

func (ps *parser) header(at, off, count uint64) {
	ps.put(at, 8, off)
	ps.put(at+8, 8, count)
}

func (ps *parser) lookup(f *fieldPlan, pos uint64) (traceEntry, error) {
	t, ok := ps.trace[traceKey{field: f, pos: pos}]
	if !ok {
		return traceEntry{}, errors.Malformed(f.path, "field was not validated")
	}
	return t, nil
}

// container copies cp from pos into the image at base and returns the
// wire bytes consumed.
func (ps *parser) container(cp *containerPlan, pos, base uint64) (uint64, error) {
	start := pos
	for _, f := range cp.fields {
		if f.minor > ps.minor {
			continue
		}
		n, err := ps.field(f, pos, base)
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos - start, nil
}

func (ps *parser) field(f *fieldPlan, pos, base uint64) (uint64, error) {
	at := base + f.slot.Offset
	switch f.kind {
	case kindValue:
		if f.virtual {
			ps.put(at, f.size, f.virtualValue)
			return 0, nil
		}
		if !f.zero {
			ps.put(at, f.size, ps.wireUint(pos, f.size))
		}
		return uint64(f.size), nil

	case kindStruct:
		if !f.toPtr {
			return ps.container(f.inner, pos, at)
		}
		blk, err := ps.alloc(f, f.inner.size)
		if err != nil {
			return 0, err
		}
		ps.put(at, layout.RefSize, blk)
		return ps.container(f.inner, pos, blk)

	case kindPointer:
		if off := ps.wireUint(pos, f.width); off != 0 {
			ps.queue = append(ps.queue, deferred{field: f, pos: off, slot: at, base: base})
		}
		return uint64(f.width), nil

	case kindArray:
		if !f.ptr {
			return ps.array(f, pos, at, base)
		}
		off := ps.wireUint(pos, f.width)
		if off == 0 {
			return uint64(f.width), nil
		}
		switch {
		case f.nocopy:
			t, err := ps.lookup(f, off)
			if err != nil {
				return 0, err
			}
			ps.header(at, off, t.count)
			ps.count(f, base, t.count)
		case f.chunk:
			t, err := ps.lookup(f, off)
			if err != nil {
				return 0, err
			}
			if err := ps.chunk(f, off, at, t.nw); err != nil {
				return 0, err
			}
			ps.count(f, base, t.count)
		default:
			ps.queue = append(ps.queue, deferred{field: f, pos: off, slot: at, base: base})
		}
		return uint64(f.width), nil

	case kindSwitch:
		return ps.switchField(f, pos, base)
	}
	return 0, errors.Unimplemented(f.path, fmt.Sprintf("field kind %d", f.kind))
}

// count stores an element count where the declaration asks for it.
func (ps *parser) count(f *fieldPlan, base, n uint64) {
	a := f.arr
	if a.countRef != nil {
		ps.put(base+a.countRef.offset, a.countRef.size, n)
	}
	if a.asPtrLen != nil {
		ps.put(base+a.asPtrLen.offset, a.asPtrLen.size, n)
	}
}

func (ps *parser) chunk(f *fieldPlan, pos, at, n uint64) error {
	desc, err := ps.alloc(f, ps.plan.overhead)
	if err != nil {
		return err
	}
	ps.put(desc, 8, pos)
	ps.put(desc+8, 8, n)
	ps.put(at, layout.RefSize, desc)
	return nil
}

func (ps *parser) array(f *fieldPlan, pos, at, base uint64) (uint64, error) {
	a := f.arr
	t, err := ps.lookup(f, pos)
	if err != nil {
		return 0, err
	}
	switch {
	case a.inline:
		n, err := ps.elements(f, pos, at, t.count)
		if err != nil {
			return 0, err
		}
		ps.count(f, base, t.count)
		return n, nil
	case a.asPtr:
		ps.header(at, pos, t.count)
	case f.chunk:
		if err := ps.chunk(f, pos, at, t.nw); err != nil {
			return 0, err
		}
	default:
		if _, err := ps.block(f, pos, at, t.count); err != nil {
			return 0, err
		}
	}
	ps.count(f, base, t.count)
	return t.nw, nil
}

// block allocates the data of an out-of-line array, fills it and writes
// its header at slot.
func (ps *parser) block(f *fieldPlan, pos, slot, count uint64) (uint64, error) {
	a, e := f.arr, f.arr.elem
	if a.kind == model.SizeCString {
		blk, err := ps.alloc(f, count+1)
		if err != nil {
			return 0, err
		}
		copy(ps.arena[blk:blk+count], ps.wire[pos:pos+count])
		ps.header(slot, blk, count)
		return count + 1, nil
	}

	if !a.ptrArray {
		data, err := ps.alloc(f, count*e.sizeof)
		if err != nil {
			return 0, err
		}
		ps.header(slot, data, count)
		return ps.elements(f, pos, data, count)
	}

	table, err := ps.alloc(f, count*8)
	if err != nil {
		return 0, err
	}
	ps.header(slot, table, count)
	p := pos
	for i := uint64(0); i < count; i++ {
		blk, err := ps.alloc(f, e.sizeof)
		if err != nil {
			return 0, err
		}
		ps.put(table+i*8, 8, blk)
		n, err := ps.element(e, p, blk)
		if err != nil {
			return 0, err
		}
		p += n
	}
	return p - pos, nil
}

// elements fills count contiguous elements at mem.
func (ps *parser) elements(f *fieldPlan, pos, mem, count uint64) (uint64, error) {
	e := f.arr.elem
	if e.bytes {
		copy(ps.arena[mem:mem+count], ps.wire[pos:pos+count])
		return count, nil
	}
	p := pos
	for i := uint64(0); i < count; i++ {
		n, err := ps.element(e, p, mem+i*e.sizeof)
		if err != nil {
			return 0, err
		}
		p += n
	}
	return p - pos, nil
}

func (ps *parser) element(e *elemPlan, pos, mem uint64) (uint64, error) {
	if e.inner == nil {
		ps.put(mem, e.size, ps.wireUint(pos, e.size))
		return uint64(e.size), nil
	}
	return ps.container(e.inner, pos, mem)
}

func (ps *parser) switchField(f *fieldPlan, pos, base uint64) (uint64, error) {
	sp := f.sw
	disc := ps.get(base+sp.discRef.offset, sp.discRef.size)
	idx := sp.match(disc)
	t, err := ps.lookup(f, pos)
	if err != nil {
		return 0, err
	}
	if idx != t.cse {
		return 0, errors.Malformed(f.path, fmt.Sprintf("discriminant %d selects a different case than validated", disc))
	}

	cf := sp.cases[idx].field
	var n uint64
	if cf.minor <= ps.minor {
		if n, err = ps.field(cf, pos, base); err != nil {
			return 0, err
		}
	}
	if sp.fixedsize {
		n = sp.fixed.At(ps.minor)
	}
	return n, nil
}

// drain parses deferred pointer targets in discovery order. Targets may
// queue further targets.
func (ps *parser) drain() error {
	for len(ps.queue) > 0 {
		d := ps.queue[0]
		ps.queue = ps.queue[1:]
		f := d.field

		if f.kind == kindPointer {
			blk, err := ps.alloc(f, f.inner.size)
			if err != nil {
				return err
			}
			ps.put(d.slot, layout.RefSize, blk)
			if _, err := ps.container(f.inner, d.pos, blk); err != nil {
				return err
			}
			continue
		}

		t, err := ps.lookup(f, d.pos)
		if err != nil {
			return err
		}
		if _, err := ps.block(f, d.pos, d.slot, t.count); err != nil {
			return err
		}
		ps.count(f, d.base, t.count)
	}
	return nil
}
