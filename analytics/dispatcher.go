package analytics

import (
	"sync"
	"time"
)

// Dispatcher accumulates server-side events and flushes them as batched
// requests, either when the buffer reaches the size threshold or when
// the flush interval elapses. A failed batch is re-queued in front of
// the buffer: delivery is at-least-once, head-of-line.
type Dispatcher struct {
	size       int
	interval   time.Duration
	maxRetries int
	send       func([]*Event) error

	mu  sync.Mutex
	buf []*Event

	flushMu sync.Mutex

	timerOnce sync.Once
	closeOnce sync.Once
	ticker    *time.Ticker
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher delivering through send.
func NewDispatcher(cfg BatchConfig, send func([]*Event) error) *Dispatcher {
	if cfg.Size <= 0 {
		cfg.Size = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Dispatcher{
		size:       cfg.Size,
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
		send:       send,
		stop:       make(chan struct{}),
	}
}

// Enqueue buffers an event and triggers a flush once the size threshold
// is reached. The interval timer starts lazily on the first event.
func (d *Dispatcher) Enqueue(ev *Event) {
	d.mu.Lock()
	d.buf = append(d.buf, ev)
	full := len(d.buf) >= d.size
	d.mu.Unlock()

	d.startTimer()

	if full {
		go d.Flush()
	}
}

// Flush delivers all buffered events in size-bounded batches. A batch
// that exhausts its retry budget is returned to the front of the buffer.
func (d *Dispatcher) Flush() {
	// One flush at a time; a concurrent call waits rather than racing
	// for the same buffer.
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	events := d.buf
	d.buf = nil
	d.mu.Unlock()

	if len(events) == 0 {
		return
	}

	for start := 0; start < len(events); start += d.size {
		end := start + d.size
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		if err := d.sendWithRetry(batch); err != nil {
			// Requeue this batch and everything behind it, in front of
			// anything enqueued meanwhile.
			d.mu.Lock()
			d.buf = append(append([]*Event{}, events[start:]...), d.buf...)
			d.mu.Unlock()
			return
		}
	}
}

// Len returns the number of buffered events.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

// Close stops the interval timer and flushes remaining events. Calling
// Close more than once is safe.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.timerOnce.Do(func() {}) // prevent a timer from starting after Close
		if d.ticker != nil {
			d.ticker.Stop()
		}
		close(d.stop)
		d.wg.Wait()
	})
	d.Flush()
}

func (d *Dispatcher) startTimer() {
	d.timerOnce.Do(func() {
		d.ticker = time.NewTicker(d.interval)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-d.ticker.C:
					d.Flush()
				case <-d.stop:
					return
				}
			}
		}()
	})
}

func (d *Dispatcher) sendWithRetry(batch []*Event) error {
	var err error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if err = d.send(batch); err == nil {
			return nil
		}
		if attempt < d.maxRetries-1 {
			time.Sleep(time.Duration(1<<attempt) * 100 * time.Millisecond)
		}
	}
	return err
}
