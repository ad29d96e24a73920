package engine

import (
	"sync"
	"time"
)

// Handle identifies one scheduled task of a Debouncer
type Handle struct {
	d   *Debouncer
	seq uint64
}

// Cancel stops the task if it has not run yet. It reports whether the
// task was still pending.
func (h *Handle) Cancel() bool {
	if h == nil || h.d == nil {
		return false
	}
	return h.d.cancel(h.seq)
}

// Debouncer runs at most one pending task. Scheduling a new task cancels
// the previous one.
type Debouncer struct {
	clock Clock

	mu    sync.Mutex
	timer Timer
	seq   uint64
}

// NewDebouncer creates a Debouncer driven by clock
func NewDebouncer(clock Clock) *Debouncer {
	if clock == nil {
		clock = SystemClock
	}
	return &Debouncer{clock: clock}
}

// Schedule runs task after delay unless another task is scheduled first
func (d *Debouncer) Schedule(delay time.Duration, task func()) *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.seq != seq || d.timer == nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		task()
	})
	return &Handle{d: d, seq: seq}
}

// Stop cancels the pending task, if any
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

func (d *Debouncer) cancel(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq != seq || d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}
