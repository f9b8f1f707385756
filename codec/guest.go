package codec

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/protogen/errors"
)

// DecodeGuest decodes a message held in a wasm guest's linear memory.
// Wire-backed members of the result alias guest memory.
func (p *Plan) DecodeGuest(mem api.Memory, offset, length uint32, minor int) (*Message, error) {
	wire, ok := mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds([]string{p.Name}, uint64(offset), uint64(length), int(mem.Size()))
	}
	return p.Decode(wire, minor)
}

// WriteGuest copies an encoded message into guest memory at offset.
func WriteGuest(mem api.Memory, offset uint32, data []byte) error {
	if !mem.Write(offset, data) {
		return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
			Detail("%d bytes at offset %d exceed guest memory of %d bytes", len(data), offset, mem.Size()).
			Build()
	}
	return nil
}
