// control/config.go
//
// Thread-safe configuration store with dynamic update and hot-reload
// propagation, repointed at the scheduler's own tunables (thread_count,
// stack_size) instead of WS/transport settings.

package control

import "github.com/Majianb/Mjber/rwmutex"

// ConfigStore is a dynamic key/value map with snapshot and listener
// support. Its read path (GetSnapshot, called by the scheduler's
// reload listener) uses the writer-priority rwmutex.RWMutex instead of
// sync.RWMutex, so a steady stream of readers cannot delay a pending
// SetConfig indefinitely.
type ConfigStore struct {
	mu        *rwmutex.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		mu:        rwmutex.New(),
		config:    make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	g := cs.mu.ReadGuard()
	defer g.Unlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	g := cs.mu.WriteGuard()
	defer g.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	g := cs.mu.WriteGuard()
	defer g.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
