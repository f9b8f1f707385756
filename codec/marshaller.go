package codec

import (
	"encoding/binary"

	"github.com/wippyai/protogen/internal/abi"
)

// Marshaller accumulates the wire bytes of a message. Pointer members get
// a sub-marshaller whose content is appended after the main body when the
// message is linearized; the pointer slot then receives the content's
// message-relative offset. A sub-marshaller nobody writes to stays null.
type Marshaller struct {
	root    *Marshaller
	parent  *Marshaller
	order   ByteOrder
	buf     []byte
	subs    []*Marshaller // root only, creation order
	at      int
	width   int
	present bool
}

// NewMarshaller creates an empty root marshaller. A nil order selects
// little-endian.
func NewMarshaller(order ByteOrder) *Marshaller {
	if order == nil {
		order = binary.LittleEndian
	}
	m := &Marshaller{order: order, present: true}
	m.root = m
	return m
}

// AddUint appends a size-byte integer.
func (m *Marshaller) AddUint(size int, v uint64) {
	m.buf = abi.AppendUint(m.order, m.buf, size, v)
	m.present = true
}

// AddBytes appends raw bytes.
func (m *Marshaller) AddBytes(b []byte) {
	m.buf = append(m.buf, b...)
	m.present = true
}

// Reserve appends n zero bytes and returns their offset for SetUint.
func (m *Marshaller) Reserve(n int) int {
	at := len(m.buf)
	m.buf = append(m.buf, make([]byte, n)...)
	m.present = true
	return at
}

// SetUint overwrites a previously reserved integer.
func (m *Marshaller) SetUint(at, size int, v uint64) {
	abi.PutUint(m.order, m.buf[at:], size, v)
}

// Len returns the bytes written to this marshaller, excluding sub-marshallers.
func (m *Marshaller) Len() int { return len(m.buf) }

// PtrSubmarshaller reserves a width-byte pointer slot and returns the
// marshaller for its target.
func (m *Marshaller) PtrSubmarshaller(width int) *Marshaller {
	at := m.Reserve(width)
	sub := &Marshaller{root: m.root, parent: m, order: m.order, at: at, width: width}
	m.root.subs = append(m.root.subs, sub)
	return sub
}

// MarkPresent makes an empty sub-marshaller produce a non-null pointer.
func (m *Marshaller) MarkPresent() { m.present = true }

// TotalSize returns the linearized size of the whole message.
func (m *Marshaller) TotalSize() int {
	root := m.root
	n := len(root.buf)
	for _, s := range root.subs {
		if s.present {
			n += len(s.buf)
		}
	}
	return n
}

// Linearize patches every pointer slot and returns the message bytes:
// the root body followed by sub-marshaller contents in creation order.
func (m *Marshaller) Linearize() []byte {
	root := m.root
	offsets := make([]int, len(root.subs))
	total := len(root.buf)
	for i, s := range root.subs {
		if s.present {
			offsets[i] = total
			total += len(s.buf)
		}
	}
	for i, s := range root.subs {
		s.parent.SetUint(s.at, s.width, uint64(offsets[i]))
	}

	out := make([]byte, 0, total)
	out = append(out, root.buf...)
	for _, s := range root.subs {
		if s.present {
			out = append(out, s.buf...)
		}
	}
	return out
}
