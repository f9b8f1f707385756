// Package abi provides internal utilities shared by the size analyzer and
// the codec runtime.
//
// # Contents
//
//   - coerce.go: dynamic value coercion for the encoder
//   - helpers.go: checked arithmetic, alignment and allocation limits
//   - endian.go: width-parameterized integer access in either byte order
//
// This package is internal to protogen.
package abi
