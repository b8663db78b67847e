// File: internal/session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe registry of live connections keyed by connection id.

package session

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

const defaultShards = 16

// Registry maps connection ids to values. Every mutation is atomic per id;
// Snapshot returns a copy so callers never hold a shard lock during I/O.
type Registry[V any] struct {
	shards []*shard[V]
	mask   uint64
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[uint64]V
}

// NewRegistry constructs a registry with shardCount shards rounded up to a power of two.
func NewRegistry[V any](shardCount int) *Registry[V] {
	if shardCount <= 0 {
		shardCount = defaultShards
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*shard[V], m)
	for i := range shards {
		shards[i] = &shard[V]{items: make(map[uint64]V)}
	}
	return &Registry[V]{shards: shards, mask: uint64(m - 1)}
}

// shard picks the correct shard for a given id.
func (r *Registry[V]) shard(id uint64) *shard[V] {
	return r.shards[fnv64(id)&r.mask]
}

// Insert adds v under id. It reports false if id is already present.
func (r *Registry[V]) Insert(id uint64, v V) bool {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.items[id]; ok {
		return false
	}
	sh.items[id] = v
	return true
}

// Get fetches the value for id if present.
func (r *Registry[V]) Get(id uint64) (V, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.items[id]
	return v, ok
}

// Remove deletes id and returns the removed value. Only the first caller
// for a given id observes ok == true.
func (r *Registry[V]) Remove(id uint64) (V, bool) {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.items[id]
	if ok {
		delete(sh.items, id)
	}
	return v, ok
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshot copies all values.
func (r *Registry[V]) Snapshot() []V {
	out := make([]V, 0, r.Len())
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, v := range sh.items {
			out = append(out, v)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Drain removes every entry and returns them.
func (r *Registry[V]) Drain() []V {
	var out []V
	for _, sh := range r.shards {
		sh.mu.Lock()
		for id, v := range sh.items {
			out = append(out, v)
			delete(sh.items, id)
		}
		sh.mu.Unlock()
	}
	return out
}

// fnv64 hashes an id to spread sequential ids across shards.
func fnv64(id uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	h := fnv.New64a()
	h.Write(b[:])
	return h.Sum64()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
