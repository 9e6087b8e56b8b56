// Package storage provides the key-value port behind persisted dashboard preferences.
package storage

import "sync"

// Keys of the persisted values
const (
	KeyRecentSearches = "recentSearches"
	KeyUnits          = "weatherUnits"
)

// KV is a small persistent key-value store
type KV interface {
	// Get returns the value stored under key; ok is false when the key is absent
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Clear(key string) error
}

// Memory is an in-process KV, used for ephemeral runs and tests
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the stored value
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Clear removes key
func (m *Memory) Clear(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var _ KV = (*Memory)(nil)
