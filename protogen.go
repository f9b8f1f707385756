package protogen

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/wippyai/protogen/codec"
	"github.com/wippyai/protogen/dsl"
	"github.com/wippyai/protogen/dsl/ast"
	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

// Options configures a compilation.
type Options struct {
	// PointerWidth is the wire width of pointers without @ptr32 (4 or 8).
	PointerWidth int
	// ExtraAlign aligns every out-of-line block of a decoded message.
	ExtraAlign uint64
	// MaxAlloc bounds the memory image of one decoded message. Zero keeps
	// the codec default.
	MaxAlloc uint64
	// BigEndian selects big-endian wire order.
	BigEndian bool
	// AllowDuplicateIDs logs colliding message or channel ids instead of
	// failing.
	AllowDuplicateIDs bool
}

// DefaultOptions returns 4-byte pointers, 4-byte block alignment and
// little-endian wire order.
func DefaultOptions() Options {
	lo := layout.DefaultOptions()
	return Options{PointerWidth: lo.PointerWidth, ExtraAlign: lo.ExtraAlign}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PointerWidth == 0 {
		o.PointerWidth = def.PointerWidth
	}
	if o.ExtraAlign == 0 {
		o.ExtraAlign = def.ExtraAlign
	}
	return o
}

func (o Options) layout() layout.Options {
	lo := layout.DefaultOptions()
	lo.PointerWidth = o.PointerWidth
	lo.ExtraAlign = o.ExtraAlign
	return lo
}

func (o Options) codec() codec.Options {
	co := codec.DefaultOptions()
	if o.BigEndian {
		co.ByteOrder = binary.BigEndian
	}
	if o.MaxAlloc != 0 {
		co.MaxAlloc = o.MaxAlloc
	}
	return co
}

// Result is a compiled protocol source.
type Result struct {
	// Source is the protocol text the result was compiled from.
	Source   string
	File     *ast.File
	Context  *model.Context
	Protocol *model.Protocol
	Compiler *codec.Compiler
	Plans    *codec.Plans
	Options  Options
}

// Compile parses, resolves and sizes source and compiles a codec plan for
// every message reachable from its protocol.
func Compile(ctx context.Context, name, source string, opts Options) (*Result, error) {
	f, err := dsl.Parse(name, source)
	if err != nil {
		return nil, err
	}
	res, err := compile(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	res.Source = source
	return res, nil
}

// CompileFile compiles the protocol source at path.
func CompileFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "read "+path)
	}
	return Compile(ctx, path, string(data), opts)
}

func compile(ctx context.Context, f *ast.File, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	lo := opts.layout()
	if err := lo.Validate(); err != nil {
		return nil, err
	}

	mctx := model.NewContext()
	mctx.AllowDuplicateIDs = opts.AllowDuplicateIDs
	proto, err := model.Resolve(mctx, f)
	if err != nil {
		return nil, err
	}

	comp := codec.NewCompiler(layout.NewCalculator(lo), opts.codec())
	plans, err := comp.CompileProtocol(ctx, proto)
	if err != nil {
		return nil, err
	}
	return &Result{
		File:     f,
		Context:  mctx,
		Protocol: proto,
		Compiler: comp,
		Plans:    plans,
		Options:  opts,
	}, nil
}

// Dispatcher returns the message dispatcher of one protocol side.
func (r *Result) Dispatcher(side codec.Side) (*codec.Dispatcher, error) {
	return codec.NewDispatcher(r.Protocol, r.Plans, side)
}

// Type compiles the plan of a named struct or message.
func (r *Result) Type(name string) (*codec.Plan, error) {
	t, ok := r.Context.Lookup(name)
	if !ok {
		return nil, errors.UnknownType(0, name)
	}
	return r.Compiler.Compile(t)
}

// ChannelMessage returns the plan of a channel member. client selects the
// client-to-server direction.
func (r *Result) ChannelMessage(channel, name string, client bool) (*codec.Plan, error) {
	t, ok := r.Context.Lookup(channel)
	if !ok {
		return nil, errors.UnknownType(0, channel)
	}
	ch, ok := t.(*model.Channel)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
			Type(channel).Detail("not a channel").Build()
	}
	for _, cm := range ch.Messages(client) {
		if cm.Name != name {
			continue
		}
		if p, ok := r.Plans.Get(cm.Message); ok {
			return p, nil
		}
		return r.Compiler.Compile(cm.Message)
	}
	return nil, errors.UnknownMember(channel, name)
}
