// Package model resolves a parsed protocol description into a typed graph.
//
// # Main Types
//
//   - Context: per-compilation type registry
//   - Type: Integer, Pointer, Array, Struct, Message, Enum, Flags, Alias,
//     Channel, Protocol
//   - Member, Switch: the containees of a struct or message
//
// Resolve runs in two passes. Every definition is declared first, so a
// member may name a type defined further down the file. Sibling references
// (array sizes, switch discriminants) must name a field declared earlier in
// the same container.
//
// Channels copy their base channel's message slots and continue numbering
// from 1 in each direction. An explicit id moves the counter to id+1.
//
// # Example
//
//	f, _ := dsl.Parse("demo.proto", src)
//	ctx := model.NewContext()
//	proto, err := model.Resolve(ctx, f)
package model
