package controller

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without another Trigger.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultReloadDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the countdown, dropping any run that was pending.
func (d *Debouncer) Trigger() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Cancel drops the pending run, if any. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
