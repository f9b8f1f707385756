package abi

import "encoding/binary"

// ReadUint reads a size-byte unsigned integer. size is 1, 2, 4 or 8 and buf
// must hold at least size bytes.
func ReadUint(order binary.ByteOrder, buf []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	default:
		return order.Uint64(buf)
	}
}

// PutUint writes the low size bytes of v.
func PutUint(order binary.ByteOrder, buf []byte, size int, v uint64) {
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	default:
		order.PutUint64(buf, v)
	}
}

// AppendUint appends the low size bytes of v.
func AppendUint(order binary.AppendByteOrder, buf []byte, size int, v uint64) []byte {
	switch size {
	case 1:
		return append(buf, byte(v))
	case 2:
		return order.AppendUint16(buf, uint16(v))
	case 4:
		return order.AppendUint32(buf, uint32(v))
	default:
		return order.AppendUint64(buf, v)
	}
}

// SignExtend interprets the low size bytes of v as a two's complement integer.
func SignExtend(v uint64, size int) int64 {
	shift := 64 - 8*uint(size)
	return int64(v<<shift) >> shift
}
