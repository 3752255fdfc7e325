package analytics

import (
	"encoding/json"
	"sync"

	"github.com/better-analytics/better-analytics-go/analytics/adapters"
)

// offlineCapacity bounds the persisted buffer; the oldest entries are
// evicted first when the cap is exceeded.
const offlineCapacity = 100

// OfflineBuffer is the capacity-bounded persisted event queue, giving
// durability across restarts and page reloads. A corrupted or absent
// stored buffer reads as empty, never as an error.
type OfflineBuffer struct {
	storage adapters.StorageAdapter
	mu      sync.Mutex
}

// NewOfflineBuffer creates an OfflineBuffer over storage.
func NewOfflineBuffer(storage adapters.StorageAdapter) *OfflineBuffer {
	return &OfflineBuffer{storage: storage}
}

// Append stores a call at the back of the buffer, evicting the oldest
// entries beyond capacity. Persistence failures are swallowed.
func (b *OfflineBuffer) Append(call TrackCall) {
	b.mu.Lock()
	defer b.mu.Unlock()

	calls := b.load()
	calls = append(calls, call)
	if len(calls) > offlineCapacity {
		calls = calls[len(calls)-offlineCapacity:]
	}
	b.save(calls)
}

// Drain attempts delivery of each buffered call in order. Delivered
// calls are removed; failed ones stay buffered for a later drain.
func (b *OfflineBuffer) Drain(handler func(TrackCall) error) {
	b.mu.Lock()
	calls := b.load()
	b.save(nil)
	b.mu.Unlock()

	var remaining []TrackCall
	for _, call := range calls {
		if err := handler(call); err != nil {
			remaining = append(remaining, call)
		}
	}

	if len(remaining) > 0 {
		b.mu.Lock()
		// Calls queued during the drain keep their position behind the
		// failed ones.
		remaining = append(remaining, b.load()...)
		if len(remaining) > offlineCapacity {
			remaining = remaining[len(remaining)-offlineCapacity:]
		}
		b.save(remaining)
		b.mu.Unlock()
	}
}

// Len returns the number of buffered calls.
func (b *OfflineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.load())
}

func (b *OfflineBuffer) load() []TrackCall {
	raw, err := b.storage.Load(queueKey)
	if err != nil {
		return nil
	}
	var calls []TrackCall
	if json.Unmarshal(raw, &calls) != nil {
		return nil
	}
	return calls
}

func (b *OfflineBuffer) save(calls []TrackCall) {
	if len(calls) == 0 {
		_ = b.storage.Delete(queueKey)
		return
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return
	}
	_ = b.storage.Save(queueKey, data)
}
