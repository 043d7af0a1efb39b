package errors

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the coalescing window for notifications
const DefaultDebounceWindow = time.Second

// Debouncer coalesces bursts of calls into one trailing call carrying the
// last payload. Every Schedule inside the window restarts it.
type Debouncer[T any] struct {
	mu      sync.Mutex
	clock   Clock
	window  time.Duration
	fn      func(T)
	timer   Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a debouncer that calls fn once the window has
// elapsed without another Schedule.
func NewDebouncer[T any](clock Clock, window time.Duration, fn func(T)) *Debouncer[T] {
	if clock == nil {
		clock = SystemClock{}
	}
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer[T]{
		clock:  clock,
		window: window,
		fn:     fn,
	}
}

// Schedule cancels any pending call and arms a new one with v
func (d *Debouncer[T]) Schedule(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() {
		d.fire(gen, v)
	})
}

// fire runs fn only if no newer Schedule or Stop happened since gen was armed.
// A timer that already fired cannot be stopped, so the generation is the
// authority on which payload wins.
func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Pending reports whether a call is armed
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending call and ignores further Schedule calls
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Reset re-enables a stopped debouncer
func (d *Debouncer[T]) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = false
}

// Window returns the coalescing window
func (d *Debouncer[T]) Window() time.Duration {
	return d.window
}
