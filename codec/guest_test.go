package codec

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/protogen/errors"
)

// guestModule is a wasm module exporting one page of memory as "memory".
var guestModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

func TestGuestMemory(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, guestModule)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	mem := mod.Memory()
	if mem == nil {
		t.Fatal("module has no memory")
	}

	p := compile(t, shapeSource, "Shape")
	wire := encode(t, p, shapeRecord(), 0)
	if err := WriteGuest(mem, 128, wire); err != nil {
		t.Fatalf("WriteGuest: %v", err)
	}

	msg, err := p.DecodeGuest(mem, 128, uint32(len(wire)), 0)
	if err != nil {
		t.Fatalf("DecodeGuest: %v", err)
	}
	if diff := cmp.Diff(shapeRecord(), msg.Value()); diff != "" {
		t.Errorf("Value (-want +got):\n%s", diff)
	}
	if !bytes.Equal(msg.Wire, wire) {
		t.Errorf("guest wire = % x", msg.Wire)
	}

	if _, err := p.DecodeGuest(mem, 65530, 64, 0); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
	if err := WriteGuest(mem, 65535, []byte{1, 2}); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
}
