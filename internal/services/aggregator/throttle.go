package aggregator

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle coalesces bursts of dirty triggers into at most one run of
// fn per interval. The first trigger in a burst runs immediately (the
// leading edge); triggers landing inside the interval collapse into a
// single trailing run, so the final settled state always gets
// rendered.
type throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

func newThrottle(interval time.Duration, fn func()) *throttle {
	return &throttle{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		fn:       fn,
	}
}

// trigger requests a run. It never blocks beyond scheduling.
func (t *throttle) trigger() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	if t.limiter.Allow() {
		t.mu.Unlock()
		t.fn()
		return
	}

	if !t.pending {
		t.pending = true
		t.timer = time.AfterFunc(t.interval, t.flush)
	}
	t.mu.Unlock()
}

// flush performs the trailing run.
func (t *throttle) flush() {
	t.mu.Lock()
	t.pending = false
	if t.stopped {
		t.mu.Unlock()
		return
	}
	// consume the refilled token so the trailing run counts against
	// the rate like any other
	_ = t.limiter.Allow()
	t.mu.Unlock()

	t.fn()
}

// stop cancels any pending trailing run. Idempotent.
func (t *throttle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
}
