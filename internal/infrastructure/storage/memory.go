package storage

import "sync"

// MemoryScope is the session-lifetime scope: it lives exactly as long as
// the widget instance, mirroring storage cleared when the browsing
// context closes.
type MemoryScope struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryScope creates an empty session-lifetime scope
func NewMemoryScope() *MemoryScope {
	return &MemoryScope{values: make(map[string]string)}
}

func (m *MemoryScope) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *MemoryScope) Set(key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return true
}

func (m *MemoryScope) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return true
}

// Clear drops every key. Used when the visitor explicitly ends the
// conversation.
func (m *MemoryScope) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
}
