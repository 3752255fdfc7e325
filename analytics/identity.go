package analytics

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/better-analytics/better-analytics-go/analytics/adapters"
)

// Persisted state keys, namespaced to avoid collisions with host storage.
const (
	sessionKey = "ba_session"
	deviceKey  = "ba_device"
	userKey    = "ba_user"
	queueKey   = "ba_queue"
)

// serverSentinel is returned for both identifiers when no persistence
// mechanism exists, i.e. during server-side rendering.
const serverSentinel = "ssr"

// sessionWindow is the sliding inactivity window after which a session
// expires and is replaced rather than extended.
const sessionWindow = 30 * time.Minute

type sessionRecord struct {
	ID           string `json:"id"`
	LastActivity int64  `json:"lastActivity"`
}

// IdentityStore owns the persisted session and device identifiers.
// Every operation is exception-safe: a failing storage layer degrades to
// an in-memory identifier for the current call, never an error.
type IdentityStore struct {
	storage adapters.StorageAdapter
	runtime RuntimeDescriptor
	now     func() time.Time
}

// NewIdentityStore creates an IdentityStore backed by storage. A nil
// storage means the host has no persistence (server runtime); both
// identifier getters then return the "ssr" sentinel.
func NewIdentityStore(storage adapters.StorageAdapter, rt RuntimeDescriptor) *IdentityStore {
	return &IdentityStore{
		storage: storage,
		runtime: rt,
		now:     time.Now,
	}
}

// SessionID returns the current session identifier, reusing a stored
// session while its sliding 30-minute window is open. A reused session
// has its activity timestamp rewritten; an expired one is replaced.
func (s *IdentityStore) SessionID() string {
	if s.storage == nil {
		return serverSentinel
	}

	now := s.now()
	if raw, err := s.storage.Load(sessionKey); err == nil {
		var rec sessionRecord
		if json.Unmarshal(raw, &rec) == nil && rec.ID != "" {
			age := now.UnixMilli() - rec.LastActivity
			if age >= 0 && age < sessionWindow.Milliseconds() {
				rec.LastActivity = now.UnixMilli()
				s.saveSession(rec)
				return rec.ID
			}
		}
	}

	rec := sessionRecord{ID: newSessionID(now), LastActivity: now.UnixMilli()}
	s.saveSession(rec)
	return rec.ID
}

// DeviceID returns the permanent device identifier, generating and
// persisting one on first use.
func (s *IdentityStore) DeviceID() string {
	if s.storage == nil {
		return serverSentinel
	}

	if raw, err := s.storage.Load(deviceKey); err == nil {
		var id string
		if json.Unmarshal(raw, &id) == nil && id != "" {
			return id
		}
	}

	id := s.newDeviceID()
	if data, err := json.Marshal(id); err == nil {
		// Persistence failures degrade to an in-memory id for this call.
		_ = s.storage.Save(deviceKey, data)
	}
	return id
}

// SetUserID persists the caller-supplied user identifier for reuse.
func (s *IdentityStore) SetUserID(userID string) {
	if s.storage == nil || userID == "" {
		return
	}
	if data, err := json.Marshal(userID); err == nil {
		_ = s.storage.Save(userKey, data)
	}
}

// UserID returns the persisted user identifier, empty when none is set.
func (s *IdentityStore) UserID() string {
	if s.storage == nil {
		return ""
	}
	raw, err := s.storage.Load(userKey)
	if err != nil {
		return ""
	}
	var id string
	if json.Unmarshal(raw, &id) != nil {
		return ""
	}
	return id
}

func (s *IdentityStore) saveSession(rec sessionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = s.storage.Save(sessionKey, data)
}

// newSessionID builds a time-prefixed identifier with a random suffix.
func newSessionID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + strconv.FormatInt(rand.Int63(), 36)
}

// newDeviceID prefers a cryptographically strong UUID, falling back to a
// fingerprint hash of stable runtime signals plus a time suffix when the
// random source is unavailable.
func (s *IdentityStore) newDeviceID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}

	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%dx%d|%s",
		s.runtime.UserAgent,
		s.runtime.ScreenWidth, s.runtime.ScreenHeight,
		s.runtime.Timezone,
	)
	return strconv.FormatUint(uint64(h.Sum32()), 36) + "-" + strconv.FormatInt(s.now().UnixMilli(), 36)
}
