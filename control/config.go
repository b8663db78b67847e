// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe runtime settings store with per-key change propagation.

package control

import (
	"sync"
)

// ConfigStore holds settings that may change while a server runs.
// Listeners registered for a key run synchronously on every Set of that key.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners map[string][]func(any)
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make(map[string][]func(any)),
	}
}

// Get returns the current value for key.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// Set stores value under key and notifies that key's listeners.
// Listeners run outside the store lock and may call back into it.
func (cs *ConfigStore) Set(key string, value any) {
	cs.mu.Lock()
	cs.config[key] = value
	hooks := append(([]func(any))(nil), cs.listeners[key]...)
	cs.mu.Unlock()

	for _, fn := range hooks {
		fn(value)
	}
}

// OnChange registers fn for changes to key. A nil fn is ignored.
func (cs *ConfigStore) OnChange(key string, fn func(any)) {
	if fn == nil {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners[key] = append(cs.listeners[key], fn)
}
