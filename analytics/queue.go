package analytics

import (
	"sync"
	"time"
)

// Call types recorded by the queuing sink.
const (
	CallTrack    = "track"
	CallPageview = "pageview"
	CallIdentify = "identify"
)

// maxCallRetries bounds redelivery of a queued call: one initial attempt
// plus three retries, after which the call is discarded silently.
const maxCallRetries = 3

// TrackCall is a captured SDK invocation: the minimal durable form of an
// event, tagged with the time it was raised.
type TrackCall struct {
	Type      string                 `json:"type"`
	Event     string                 `json:"event,omitempty"`
	Props     map[string]interface{} `json:"props,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Retries   int                    `json:"retries,omitempty"`
}

// EventSink accepts SDK invocations. Callers hold a stable sink
// reference across the two initialization phases instead of swapping a
// global callable.
type EventSink interface {
	Submit(call TrackCall)
}

// QueuingSink buffers calls raised before the real client is ready and
// replays them once ProcessQueue runs. After the first drain the sink is
// live: subsequent submissions bypass the buffer and invoke the handler
// directly.
type QueuingSink struct {
	mu      sync.Mutex
	calls   []TrackCall
	ready   bool
	handler func(TrackCall) error
}

var _ EventSink = (*QueuingSink)(nil)

// NewQueuingSink creates an empty QueuingSink.
func NewQueuingSink() *QueuingSink {
	return &QueuingSink{}
}

// Submit records a call, or dispatches it immediately once the sink is
// live.
func (q *QueuingSink) Submit(call TrackCall) {
	if call.Timestamp == 0 {
		call.Timestamp = time.Now().UnixMilli()
	}

	q.mu.Lock()
	if q.ready && q.handler != nil {
		handler := q.handler
		q.mu.Unlock()
		// Failures of live calls follow the handler's own policy.
		_ = handler(call)
		return
	}
	q.calls = append(q.calls, call)
	q.mu.Unlock()
}

// Track buffers a track invocation.
func (q *QueuingSink) Track(event string, props map[string]interface{}) {
	q.Submit(TrackCall{Type: CallTrack, Event: event, Props: props})
}

// Pageview buffers a pageview invocation.
func (q *QueuingSink) Pageview() {
	q.Submit(TrackCall{Type: CallPageview, Event: "pageview"})
}

// Identify buffers an identify invocation.
func (q *QueuingSink) Identify(userID string, traits map[string]interface{}) {
	props := map[string]interface{}{"userId": userID}
	for k, v := range traits {
		props[k] = v
	}
	q.Submit(TrackCall{Type: CallIdentify, Event: "identify", Props: props})
}

// ProcessQueue drains buffered calls in FIFO order, invoking handler
// once per entry. A failing call is re-queued at the back with its retry
// count incremented and is discarded after exceeding the retry budget.
// The sink is live afterwards and dispatches directly through handler.
func (q *QueuingSink) ProcessQueue(handler func(TrackCall) error) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.calls) == 0 {
			q.ready = true
			q.mu.Unlock()
			return
		}
		call := q.calls[0]
		q.calls = q.calls[1:]
		q.mu.Unlock()

		if err := handler(call); err != nil {
			if call.Retries < maxCallRetries {
				call.Retries++
				q.mu.Lock()
				q.calls = append(q.calls, call)
				q.mu.Unlock()
			}
			// Over budget: dropped silently, best-effort delivery.
		}
	}
}

// Len returns the number of buffered calls.
func (q *QueuingSink) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Ready reports whether the sink has been drained at least once.
func (q *QueuingSink) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready
}
