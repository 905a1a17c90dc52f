package session

import (
	"sync"
	"time"
)

// Timer fires a callback once after a duration unless stopped first.
// It is safe for concurrent use.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	fired   bool
}

// NewTimer creates and starts a timer that calls onFire after d.
// onFire runs in its own goroutine.
//
// Precondition: d > 0; onFire must not be nil.
// Postcondition: onFire is called at most once, and never after Stop has returned
// unless it had already begun.
func NewTimer(d time.Duration, onFire func()) *Timer {
	t := &Timer{}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()
		onFire()
	})
	return t
}

// Stop prevents the callback from firing. Safe to call multiple times and
// after the timer has fired.
//
// Postcondition: Returns true only for the call that cancelled a pending timer.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// Fired reports whether the callback has started.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
