package abi

import (
	"math"
	"reflect"
)

const (
	MaxAlloc      = 1 << 30 // 1 GB max arena
	MaxListLength = 1 << 27 // 128M max elements
	MaxDepth      = 256     // max pointer nesting followed by the decoder
)

func SafeMul(a, b uint64) (uint64, bool) {
	if b != 0 && a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

func SafeAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// AlignTo rounds offset up to a multiple of align. align must be a power of two.
func AlignTo(offset, align uint64) uint64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}
