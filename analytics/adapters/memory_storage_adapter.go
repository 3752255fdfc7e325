package adapters

import "sync"

// MemoryStorageAdapter keeps values in process memory. State does not
// survive a restart; useful for tests and short-lived processes.
type MemoryStorageAdapter struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ StorageAdapter = (*MemoryStorageAdapter)(nil)

// NewMemoryStorageAdapter creates an empty MemoryStorageAdapter.
func NewMemoryStorageAdapter() *MemoryStorageAdapter {
	return &MemoryStorageAdapter{values: make(map[string][]byte)}
}

// Load retrieves the value stored under key.
func (m *MemoryStorageAdapter) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Save persists the value under key.
func (m *MemoryStorageAdapter) Save(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	return nil
}

// Delete removes the value stored under key.
func (m *MemoryStorageAdapter) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
