// Package server implements a length-prefixed TCP server base.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Server accepts connections on a dedicated goroutine, frames every inbound
// stream into header||payload packets using an api.Codec, and serializes
// outbound packets per client through a FIFO queue with a single in-flight
// writer. All events are reported to an api.Handler.
//
// Lifecycle: Stopped -> Starting -> Running -> Stopping -> Stopped.
// Start and Close are serialized against each other; Close is idempotent.
// One client's failure only ever disconnects that client.
package server
