package analytics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// batchRecorder captures batches passed to the dispatcher's send func.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]*Event
	fail    bool
}

func (r *batchRecorder) send(events []*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("delivery failed")
	}
	batch := make([]*Event, len(events))
	copy(batch, events)
	r.batches = append(r.batches, batch)
	return nil
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *batchRecorder) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func TestDispatcherFlushesOnSize(t *testing.T) {
	rec := &batchRecorder{}
	d := NewDispatcher(BatchConfig{Size: 3, Interval: time.Hour}, rec.send)

	d.Enqueue(&Event{Event: "a"})
	d.Enqueue(&Event{Event: "b"})
	require.Equal(t, 0, rec.count())

	d.Enqueue(&Event{Event: "c"})

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Len(t, rec.batches[0], 3)
	require.Equal(t, 0, d.Len())
}

func TestDispatcherFlushesOnInterval(t *testing.T) {
	rec := &batchRecorder{}
	d := NewDispatcher(BatchConfig{Size: 100, Interval: 20 * time.Millisecond}, rec.send)

	d.Enqueue(&Event{Event: "lonely"})

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Len(t, rec.batches[0], 1)
}

func TestDispatcherRequeuesFailedBatchInFront(t *testing.T) {
	rec := &batchRecorder{}
	rec.setFail(true)
	d := NewDispatcher(BatchConfig{Size: 10, Interval: time.Hour, MaxRetries: 1}, rec.send)

	d.Enqueue(&Event{Event: "first"})
	d.Enqueue(&Event{Event: "second"})
	d.Flush()

	// Delivery failed: both events are back in the buffer.
	require.Equal(t, 2, d.Len())

	// New events line up behind the requeued ones.
	d.Enqueue(&Event{Event: "third"})
	rec.setFail(false)
	d.Flush()

	require.Equal(t, 1, rec.count())
	require.Equal(t, "first", rec.batches[0][0].Event)
	require.Equal(t, "second", rec.batches[0][1].Event)
	require.Equal(t, "third", rec.batches[0][2].Event)
	require.Equal(t, 0, d.Len())
}

func TestDispatcherCloseDrains(t *testing.T) {
	rec := &batchRecorder{}
	d := NewDispatcher(BatchConfig{Size: 100, Interval: time.Hour}, rec.send)

	d.Enqueue(&Event{Event: "pending"})
	d.Close()

	require.Equal(t, 1, rec.count())
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	rec := &batchRecorder{}
	d := NewDispatcher(BatchConfig{Size: 100, Interval: 20 * time.Millisecond}, rec.send)

	d.Enqueue(&Event{Event: "pending"})
	d.Close()

	require.NotPanics(t, func() { d.Close() })
	require.Equal(t, 1, rec.count())
}

func TestDispatcherEmptyFlushIsNoop(t *testing.T) {
	rec := &batchRecorder{}
	d := NewDispatcher(BatchConfig{}, rec.send)

	d.Flush()
	require.Equal(t, 0, rec.count())
}
