// Package codec encodes and decodes protocol messages.
//
// A Compiler turns resolved structs and messages into Plans. Decoding is
// two-pass: validation walks the wire, checks bounds, pointers and switch
// discriminants, and evaluates the size formulas of package layout to get
// the exact size of the memory image; parsing then allocates that image
// once and fills it front to back, following pointers in discovery order.
// The wire buffer is never modified.
//
// # Memory Image
//
// Primitives are stored at their natural size and alignment. Nested
// structs and constant arrays without out-of-line content are stored in
// place. Pointers and @to_ptr structs hold an 8-byte arena offset (0 for
// null). Other arrays hold a 16-byte {offset, count} header; @nocopy and
// @as_ptr offsets index the wire. @chunk members point at a {wire offset,
// length} descriptor. All integers in the image are little-endian.
//
// # Encoding
//
// A Marshaller appends wire bytes and hands out sub-marshallers for pointer
// targets; Linearize lays the targets out after the body and patches the
// pointer slots. Plan.Marshal walks a Record; Plan.Encode is the
// everything-inline shortcut.
//
// # Dispatch
//
// A Dispatcher maps (channel, message type) to plans for one side of the
// connection.
//
// Example:
//
//	c := codec.NewCompiler(layout.NewCalculator(layout.DefaultOptions()), codec.DefaultOptions())
//	plans, err := c.CompileProtocol(ctx, proto)
//	if err != nil {
//		return err
//	}
//	d, err := codec.NewDispatcher(proto, plans, codec.Server)
//	msg, err := d.Parse(channelID, msgType, minor, body)
//	fmt.Println(msg.Value())
package codec
