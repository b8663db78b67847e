// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-tcp: size-classed byte slice pooling for
// framed outbound packets. Buffers are recycled once their write completes.
package pool
