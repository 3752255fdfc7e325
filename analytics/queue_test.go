package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueDrainsFIFO(t *testing.T) {
	sink := NewQueuingSink()
	sink.Track("first", nil)
	sink.Track("second", nil)
	sink.Pageview()
	require.Equal(t, 3, sink.Len())

	var order []string
	sink.ProcessQueue(func(call TrackCall) error {
		order = append(order, call.Event)
		return nil
	})

	require.Equal(t, []string{"first", "second", "pageview"}, order)
	require.Equal(t, 0, sink.Len())
	require.True(t, sink.Ready())
}

func TestQueueTimestampsEntries(t *testing.T) {
	sink := NewQueuingSink()
	sink.Track("one", nil)

	var ts int64
	sink.ProcessQueue(func(call TrackCall) error {
		ts = call.Timestamp
		return nil
	})
	require.NotZero(t, ts)
}

func TestQueueRetryCeiling(t *testing.T) {
	sink := NewQueuingSink()
	sink.Track("doomed", nil)

	attempts := 0
	sink.ProcessQueue(func(call TrackCall) error {
		attempts++
		return errors.New("handler always fails")
	})

	// One initial attempt plus three retries, then dropped silently.
	require.Equal(t, 4, attempts)
	require.Equal(t, 0, sink.Len())
}

func TestQueueRetryRequeuesAtBack(t *testing.T) {
	sink := NewQueuingSink()
	sink.Track("flaky", nil)
	sink.Track("stable", nil)

	var order []string
	failedOnce := false
	sink.ProcessQueue(func(call TrackCall) error {
		order = append(order, call.Event)
		if call.Event == "flaky" && !failedOnce {
			failedOnce = true
			return errors.New("transient")
		}
		return nil
	})

	// The failed entry retries behind the rest of the queue.
	require.Equal(t, []string{"flaky", "stable", "flaky"}, order)
}

func TestQueueBypassesAfterReady(t *testing.T) {
	sink := NewQueuingSink()

	var handled []string
	sink.ProcessQueue(func(call TrackCall) error {
		handled = append(handled, call.Event)
		return nil
	})
	require.True(t, sink.Ready())

	// A live sink dispatches directly without buffering.
	sink.Track("direct", nil)
	require.Equal(t, []string{"direct"}, handled)
	require.Equal(t, 0, sink.Len())
}

func TestQueueIdentifyCarriesUserID(t *testing.T) {
	sink := NewQueuingSink()
	sink.Identify("u9", map[string]interface{}{"plan": "pro"})

	var call TrackCall
	sink.ProcessQueue(func(c TrackCall) error {
		call = c
		return nil
	})

	require.Equal(t, CallIdentify, call.Type)
	require.Equal(t, "u9", call.Props["userId"])
	require.Equal(t, "pro", call.Props["plan"])
}
