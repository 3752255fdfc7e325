package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/better-analytics/better-analytics-go/analytics/adapters"
)

// failingStorage errors on every operation, simulating quota or
// private-browsing restrictions.
type failingStorage struct{}

func (failingStorage) Load(key string) ([]byte, error)  { return nil, errors.New("storage unavailable") }
func (failingStorage) Save(key string, v []byte) error  { return errors.New("storage unavailable") }
func (failingStorage) Delete(key string) error          { return errors.New("storage unavailable") }

func newTestIdentityStore(t *testing.T) (*IdentityStore, *adapters.MemoryStorageAdapter) {
	t.Helper()
	storage := adapters.NewMemoryStorageAdapter()
	return NewIdentityStore(storage, RuntimeDescriptor{}), storage
}

func TestSessionReuseWithinWindow(t *testing.T) {
	store, _ := newTestIdentityStore(t)

	base := time.Now()
	store.now = func() time.Time { return base }

	first := store.SessionID()
	require.NotEmpty(t, first)

	// 29 minutes later the session is still open and gets refreshed.
	store.now = func() time.Time { return base.Add(29 * time.Minute) }
	require.Equal(t, first, store.SessionID())

	// The refresh moved the window: another 29 minutes is still valid.
	store.now = func() time.Time { return base.Add(58 * time.Minute) }
	require.Equal(t, first, store.SessionID())
}

func TestSessionExpiresAfterWindow(t *testing.T) {
	store, _ := newTestIdentityStore(t)

	base := time.Now()
	store.now = func() time.Time { return base }
	first := store.SessionID()

	store.now = func() time.Time { return base.Add(31 * time.Minute) }
	second := store.SessionID()
	require.NotEqual(t, first, second)
}

func TestDevicePermanence(t *testing.T) {
	store, storage := newTestIdentityStore(t)

	first := store.DeviceID()
	require.NotEmpty(t, first)

	for i := 0; i < 50; i++ {
		require.Equal(t, first, store.DeviceID())
	}

	// A fresh store over the same storage sees the same device.
	again := NewIdentityStore(storage, RuntimeDescriptor{})
	require.Equal(t, first, again.DeviceID())
}

func TestIdentitySurvivesStorageFailure(t *testing.T) {
	store := NewIdentityStore(failingStorage{}, RuntimeDescriptor{})

	require.NotEmpty(t, store.SessionID())
	require.NotEmpty(t, store.DeviceID())

	// Writes failed, so each call mints a fresh in-memory id, but no
	// call ever propagates the storage error.
	require.NotPanics(t, func() {
		store.SetUserID("u1")
		_ = store.UserID()
	})
}

func TestServerRuntimeSentinel(t *testing.T) {
	store := NewIdentityStore(nil, RuntimeDescriptor{})

	require.Equal(t, "ssr", store.SessionID())
	require.Equal(t, "ssr", store.DeviceID())
	require.Empty(t, store.UserID())
}

func TestUserIDRoundTrip(t *testing.T) {
	store, _ := newTestIdentityStore(t)

	require.Empty(t, store.UserID())
	store.SetUserID("user-42")
	require.Equal(t, "user-42", store.UserID())
}
