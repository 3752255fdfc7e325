package adapters

import (
	"encoding/json"
	"os"
	"sync"
)

// FileStorageAdapter persists values as a single JSON document on disk.
// It is the default durable store for server and CLI hosts.
type FileStorageAdapter struct {
	filepath string
	mu       sync.Mutex
}

var _ StorageAdapter = (*FileStorageAdapter)(nil)

// NewFileStorageAdapter creates a FileStorageAdapter writing to filepath.
func NewFileStorageAdapter(filepath string) *FileStorageAdapter {
	return &FileStorageAdapter{filepath: filepath}
}

// Load retrieves the value stored under key.
func (f *FileStorageAdapter) Load(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return nil, err
	}
	value, ok := values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Save persists the value under key.
func (f *FileStorageAdapter) Save(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

// Delete removes the value stored under key.
func (f *FileStorageAdapter) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	delete(values, key)
	return f.write(values)
}

func (f *FileStorageAdapter) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}

	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupted file reads as empty state rather than an error.
		return map[string]json.RawMessage{}, nil
	}
	return values, nil
}

func (f *FileStorageAdapter) write(values map[string]json.RawMessage) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(f.filepath, data, 0644)
}
