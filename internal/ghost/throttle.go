// Package ghost implements both ends of ghost replication: the sender's
// trailing-edge throttle and the receiver's last-write-wins ghost table.
package ghost

import (
	"sync"
	"time"
)

// DefaultInterval bounds outbound ghost updates to ten per second.
const DefaultInterval = 100 * time.Millisecond

// Throttler coalesces calls so that at most one value per interval reaches
// send. Only the trailing edge fires: the first call in a quiet period arms a
// timer and the latest value seen when it expires is sent.
type Throttler[T any] struct {
	interval time.Duration
	send     func(T)

	mu      sync.Mutex
	pending T
	has     bool
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// NewThrottler creates a throttler that delivers to send.
func NewThrottler[T any](interval time.Duration, send func(T)) *Throttler[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttler[T]{interval: interval, send: send}
}

// Call records v as the latest value.
func (t *Throttler[T]) Call(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.pending = v
	t.has = true
	if t.timer == nil {
		gen := t.gen
		t.timer = time.AfterFunc(t.interval, func() { t.fire(gen) })
	}
}

func (t *Throttler[T]) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.gen++
	v, ok := t.take()
	t.mu.Unlock()

	if ok {
		t.send(v)
	}
}

// Flush sends any pending value now and disarms the timer.
func (t *Throttler[T]) Flush() {
	t.mu.Lock()
	t.disarm()
	v, ok := t.take()
	t.mu.Unlock()

	if ok {
		t.send(v)
	}
}

// Cancel drops any pending value and disarms the timer.
func (t *Throttler[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarm()
	t.take()
}

// Close flushes the pending value and permanently stops the throttler. Calls
// after Close are ignored and no timer fires afterwards.
func (t *Throttler[T]) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.disarm()
	v, ok := t.take()
	t.mu.Unlock()

	if ok {
		t.send(v)
	}
}

// Pending reports whether a value is waiting for the trailing edge.
func (t *Throttler[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.has
}

// disarm must be called with mu held.
func (t *Throttler[T]) disarm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// take must be called with mu held.
func (t *Throttler[T]) take() (T, bool) {
	var zero T
	if !t.has {
		return zero, false
	}
	v := t.pending
	t.pending = zero
	t.has = false
	return v, true
}
