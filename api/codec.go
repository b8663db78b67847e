// File: api/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pluggable packet header codec contract.

package api

// Codec converts a payload length to and from a fixed-size header.
// Implementations must be pure and safe for concurrent use.
type Codec interface {
	// HeaderSize is the fixed number of header bytes preceding every payload.
	HeaderSize() int
	// EncodeHeader returns a HeaderSize()-byte header describing length.
	EncodeHeader(length int) []byte
	// DecodeHeader returns the payload length encoded in header.
	// Values <= 0 are treated as protocol violations by the server.
	DecodeHeader(header []byte) int
}
