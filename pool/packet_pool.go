// File: pool/packet_pool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed byte slice pool for outbound packets.

package pool

import (
	"math/bits"
	"sync"
)

const (
	minClassShift = 6  // 64 B
	maxClassShift = 20 // 1 MiB
	numClasses    = maxClassShift - minClassShift + 1
)

// PacketPool hands out byte slices rounded up to a power-of-two class.
// Slices larger than the biggest class are allocated directly and never retained.
type PacketPool struct {
	classes [numClasses]sync.Pool
}

// NewPacketPool creates an empty pool.
func NewPacketPool() *PacketPool {
	return &PacketPool{}
}

// Get returns a slice of length size.
func (p *PacketPool) Get(size int) []byte {
	idx := classIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	if v := p.classes[idx].Get(); v != nil {
		buf := *(v.(*[]byte))
		return buf[:size]
	}
	return make([]byte, size, 1<<(idx+minClassShift))
}

// Put recycles buf. buf must not be used afterwards.
func (p *PacketPool) Put(buf []byte) {
	c := cap(buf)
	idx := classIndex(c)
	if idx < 0 || 1<<(idx+minClassShift) != c {
		return
	}
	buf = buf[:0]
	p.classes[idx].Put(&buf)
}

// classIndex returns the pool class for size, or -1 if size is out of range.
func classIndex(size int) int {
	if size <= 0 || size > 1<<maxClassShift {
		return -1
	}
	shift := bits.Len(uint(size - 1))
	if shift < minClassShift {
		shift = minClassShift
	}
	return shift - minClassShift
}

var defaultPacketPool = NewPacketPool()

// DefaultPacketPool returns the process-wide packet pool.
func DefaultPacketPool() *PacketPool {
	return defaultPacketPool
}
