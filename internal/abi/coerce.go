package abi

import "math"

func CoerceToUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int8:
		if v >= 0 {
			return uint64(v), true
		}
	case int16:
		if v >= 0 {
			return uint64(v), true
		}
	case int32:
		if v >= 0 {
			return uint64(v), true
		}
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case float64:
		if v >= 0 && v < float64(math.MaxUint64) && v == float64(uint64(v)) {
			return uint64(v), true
		}
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func CoerceToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case float64:
		if v >= float64(math.MinInt64) && v < float64(math.MaxInt64) && v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// CoerceToWire converts value to the bit pattern of a size-byte integer,
// rejecting values the width cannot represent.
func CoerceToWire(value any, size int, signed bool) (uint64, bool) {
	bits := 8 * uint(size)
	if signed {
		v, ok := CoerceToInt64(value)
		if !ok {
			// large unsigned inputs are accepted as raw bit patterns
			u, uok := CoerceToUint64(value)
			if !uok || (bits < 64 && u >= 1<<bits) {
				return 0, false
			}
			return u, true
		}
		if bits < 64 {
			lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
			if v < lo || v > hi {
				return 0, false
			}
			return uint64(v) & (1<<bits - 1), true
		}
		return uint64(v), true
	}
	u, ok := CoerceToUint64(value)
	if !ok {
		return 0, false
	}
	if bits < 64 && u >= 1<<bits {
		return 0, false
	}
	return u, true
}
