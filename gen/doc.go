// Package gen renders source artifacts from a compiled protocol.
//
// # Go Artifacts
//
// Generate writes one gofmt-formatted Go file holding any of:
//
//   - Enum and flag types with one constant per label, an EnumEnd marker
//     for enums and a Mask for flag sets
//   - Channel ids with an EndChannel marker, and message ids per channel
//     direction with an End marker per named channel
//   - Demarshallers: a Parse function per incoming message plus a
//     dispatcher constructor for the side
//   - Marshallers: a Marshal function per outgoing message, unexported with
//     Options.Private
//   - Struct marshallers for named structs
//
// Wrappers embed the protocol source and compile it on first use; their
// doc comments carry the message's symbolic wire and memory size.
//
// Constant names follow <prefix>_<enum>_<label>, <prefix>_msg_<channel>_<name>
// and <prefix>_msgc_<channel>_<name>, camel-cased into Go identifiers.
// Two declarations that map to one identifier fail generation.
//
// # WIT
//
// WIT renders the message catalogue as a WIT interface: enums, flags,
// records for structs and messages, variants for switches and a variant per
// channel direction whose cases are its messages. Pointers become options
// and arrays lists, except strings. WITTypes returns the same catalogue as
// go.bytecodealliance.org/wit type definitions.
package gen
