// Package protogen compiles protocol descriptions into binary codecs.
//
// A protocol source declares integer typedefs, enums and flag sets,
// structs, messages, channels and one protocol. Compile turns it into
// executable decode and encode plans for every message.
//
// # Architecture Overview
//
//	protogen/            Root package with Compile glue
//	├── dsl/             Tokenizer and parser producing the AST
//	├── model/           Type registry, name resolution and channel assembly
//	├── layout/          Wire size formulas and memory layout
//	├── codec/           Decode and encode plans, dispatch by channel and id
//	├── gen/             Go and WIT artifact generators
//	├── errors/          Structured error types
//	└── cmd/protogen/    Command-line driver
//
// # Quick Start
//
//	res, err := protogen.Compile(ctx, "demo.proto", source, protogen.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d, err := res.Dispatcher(codec.Server)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	msg, err := d.Parse(channel, msgType, minor, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(msg.Value())
//
// # Pipeline
//
//   - dsl.Parse produces an ast.File.
//   - model.Resolve registers every named type in a model.Context, resolves
//     references and assigns channel and message ids.
//   - layout.Calculator derives size formulas and the memory image layout.
//   - codec.Compiler builds one Plan per message, in parallel.
//
// Plans and the registry are immutable once compiled. Decoding and
// encoding share nothing between calls.
package protogen
