// Package layout derives wire and memory sizes for a resolved protocol model.
//
// Every container gets a size triple:
//
//   - Nw: bytes on the wire
//   - Mem: bytes of the decoded memory image, sizeof + Extra
//   - Extra: out-of-line bytes (pointer targets, variable arrays, chunk
//     descriptors) bump-allocated after the root
//
// Sizes are Expr trees over sibling field values (Field), named sub-results
// bound by the decoder (Ref) and minor-version conditions (Cond). Members
// whose wire size never depends on field values fold into a FixedSize.
//
// Memory layout is C-like: members are placed in declaration order at their
// natural alignment. Pointers and out-of-line blocks occupy 8-byte slots,
// variable arrays a 16-byte {offset, count} header, switches a union sized
// to the widest case.
package layout
