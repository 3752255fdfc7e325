package adapters

import "errors"

// ErrNotFound is returned by Load when no value is stored under a key.
var ErrNotFound = errors.New("storage: key not found")

// StorageAdapter is an interface for client-side persistence of identity
// and queued events. Implement this interface to back the SDK with a
// custom store (browser storage bridge, mobile async storage, a file).
type StorageAdapter interface {
	// Load retrieves the raw value stored under key.
	// Returns ErrNotFound when nothing is stored.
	Load(key string) ([]byte, error)

	// Save persists the raw value under key, replacing any previous value.
	Save(key string, value []byte) error

	// Delete removes the value stored under key. Deleting a missing key
	// is not an error.
	Delete(key string) error
}
