// Package dsl parses protocol description source into an AST.
//
// The language declares integer typedefs, enums and flag sets, structs,
// messages, channels and one protocol:
//
//	enum8 Kind { NONE, POINT, RECT = 5 };
//
//	struct Point {
//	    int32 x;
//	    int32 y;
//	};
//
//	channel MainChannel {
//	  server:
//	    message {
//	        uint32 len @bytes_count(data);
//	        uint8 data[bytes(len)];
//	    } notify = 3;
//	  client:
//	    message {
//	        Point *pos @nonnull;
//	    } move;
//	};
//
//	protocol Demo {
//	    MainChannel main = 1;
//	};
//
// Comments use // and /* */. Keywords are matched on whole words, so type
// names such as channel_type or uint8x are ordinary identifiers.
package dsl
