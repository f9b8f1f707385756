package codec

import (
	"encoding/binary"

	"github.com/wippyai/protogen/internal/abi"
)

// ByteOrder reads, writes and appends fixed-width integers.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Options controls the codec runtime.
type Options struct {
	// ByteOrder is the protocol-wide wire byte order. Memory images are
	// always little-endian.
	ByteOrder ByteOrder
	// MaxAlloc bounds the arena of one decoded message.
	MaxAlloc uint64
	// MaxDepth bounds pointer nesting followed while decoding.
	MaxDepth int
}

// DefaultOptions returns little-endian wire order and the package limits.
func DefaultOptions() Options {
	return Options{
		ByteOrder: binary.LittleEndian,
		MaxAlloc:  abi.MaxAlloc,
		MaxDepth:  abi.MaxDepth,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ByteOrder == nil {
		o.ByteOrder = def.ByteOrder
	}
	if o.MaxAlloc == 0 {
		o.MaxAlloc = def.MaxAlloc
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = def.MaxDepth
	}
	return o
}

// Local wrappers for abi package functions
var (
	typeName     = abi.TypeName
	safeAdd      = abi.SafeAdd
	safeMul      = abi.SafeMul
	alignTo      = abi.AlignTo
	coerceToWire = abi.CoerceToWire
)
