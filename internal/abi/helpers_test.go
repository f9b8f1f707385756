package abi

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestSafeMul(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint64
		want   uint64
		wantOK bool
	}{
		{"zero * zero", 0, 0, 0, true},
		{"zero * max", 0, math.MaxUint64, 0, true},
		{"max * one", math.MaxUint64, 1, math.MaxUint64, true},
		{"small * small", 100, 200, 20000, true},
		{"overflow", math.MaxUint64, 2, 0, false},
		{"large overflow", 1 << 33, 1 << 33, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SafeMul(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Errorf("SafeMul(%d, %d) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("SafeMul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSafeAdd(t *testing.T) {
	if got, ok := SafeAdd(1, 2); !ok || got != 3 {
		t.Errorf("SafeAdd(1, 2) = %d, %v", got, ok)
	}
	if _, ok := SafeAdd(math.MaxUint64, 1); ok {
		t.Error("SafeAdd(max, 1) should overflow")
	}
}

func TestAlignTo(t *testing.T) {
	tests := []struct {
		offset, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{7, 1, 7},
		{7, 0, 7},
	}
	for _, tt := range tests {
		if got := AlignTo(tt.offset, tt.align); got != tt.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tt.offset, tt.align, got, tt.want)
		}
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(nil); got != "nil" {
		t.Errorf("got %q, want nil", got)
	}
	if got := TypeName([]any{}); got != "[]interface {}" {
		t.Errorf("got %q", got)
	}
}

func TestUintAccess(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, size := range []int{1, 2, 4, 8} {
			buf := make([]byte, 8)
			v := uint64(0x0102030405060708) & (1<<(8*uint(size)) - 1)
			if size == 8 {
				v = 0x0102030405060708
			}
			PutUint(order, buf, size, v)
			if got := ReadUint(order, buf, size); got != v {
				t.Errorf("%v size %d: got %#x, want %#x", order, size, got, v)
			}
		}
	}

	got := AppendUint(binary.LittleEndian, nil, 4, 1)
	if string(got) != "\x01\x00\x00\x00" {
		t.Errorf("AppendUint = %x", got)
	}
	got = AppendUint(binary.BigEndian, got[:0], 2, 0x0102)
	if string(got) != "\x01\x02" {
		t.Errorf("AppendUint big endian = %x", got)
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		v    uint64
		size int
		want int64
	}{
		{0xff, 1, -1},
		{0x7f, 1, 127},
		{0xfffe, 2, -2},
		{0x80000000, 4, math.MinInt32},
		{math.MaxUint64, 8, -1},
	}
	for _, tt := range tests {
		if got := SignExtend(tt.v, tt.size); got != tt.want {
			t.Errorf("SignExtend(%#x, %d) = %d, want %d", tt.v, tt.size, got, tt.want)
		}
	}
}
