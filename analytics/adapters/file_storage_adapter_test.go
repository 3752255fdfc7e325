package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	storage := NewFileStorageAdapter(path)

	require.NoError(t, storage.Save("device", []byte(`"abc-123"`)))

	value, err := storage.Load("device")
	require.NoError(t, err)
	require.Equal(t, `"abc-123"`, string(value))
}

func TestFileStorageMissingKey(t *testing.T) {
	storage := NewFileStorageAdapter(filepath.Join(t.TempDir(), "state.json"))

	_, err := storage.Load("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorageDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	storage := NewFileStorageAdapter(path)

	require.NoError(t, storage.Save("session", []byte(`"s1"`)))
	require.NoError(t, storage.Delete("session"))

	_, err := storage.Load("session")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, NewFileStorageAdapter(path).Save("device", []byte(`"abc"`)))

	value, err := NewFileStorageAdapter(path).Load("device")
	require.NoError(t, err)
	require.Equal(t, `"abc"`, string(value))
}

func TestFileStorageCorruptedFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0644))

	storage := NewFileStorageAdapter(path)
	_, err := storage.Load("device")
	require.ErrorIs(t, err, ErrNotFound)

	// Writes recover the file.
	require.NoError(t, storage.Save("device", []byte(`"new"`)))
	value, err := storage.Load("device")
	require.NoError(t, err)
	require.Equal(t, `"new"`, string(value))
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	storage := NewMemoryStorageAdapter()

	require.NoError(t, storage.Save("user", []byte(`"u1"`)))
	value, err := storage.Load("user")
	require.NoError(t, err)
	require.Equal(t, `"u1"`, string(value))

	require.NoError(t, storage.Delete("user"))
	_, err = storage.Load("user")
	require.ErrorIs(t, err, ErrNotFound)
}
