package preview

import (
	"sync"
	"time"
)

// Debouncer delivers the last value triggered within delay, once. There is
// never more than one pending timer.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	has     bool
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer calling fn after delay of quiet.
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Trigger replaces the pending value and restarts the timer.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending = v
	d.has = true
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
	}

	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// fire runs fn if no newer trigger has superseded seq.
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || !d.has || d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.has = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Flush runs fn immediately with the pending value, if any.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.has || d.stopped {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	v := d.pending
	d.has = false
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Pending reports whether a value is waiting to be delivered.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.has
}

// Stop cancels the pending timer and ignores later triggers.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.has = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
