// Package debounce coalesces bursts of rebuild requests.
package debounce

import (
	"sync"
	"time"

	"github.com/yaklabco/unistack/internal/rebuild"
)

// DefaultWindow is the quiet period used when none is configured.
const DefaultWindow = 3 * time.Second

// FireFunc receives the merged request once the window elapses.
type FireFunc func(rebuild.Request)

// Throttle merges every request added during a window and fires once the
// window passes without a new request. Each Add restarts the window.
type Throttle struct {
	window time.Duration
	fire   FireFunc

	mu      sync.Mutex
	pending rebuild.Request
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New returns a Throttle that calls fire after window of quiet.
func New(window time.Duration, fire FireFunc) *Throttle {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Throttle{window: window, fire: fire}
}

// Window returns the configured quiet period.
func (t *Throttle) Window() time.Duration {
	return t.window
}

// Add merges req into the pending request and restarts the window. Empty
// requests and requests after Stop are ignored.
func (t *Throttle) Add(req rebuild.Request) {
	if req.Empty() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.pending = t.pending.Merge(req)
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
	gen := t.gen
	t.timer = time.AfterFunc(t.window, func() { t.expire(gen) })
}

// Pending returns the request accumulated in the current window.
func (t *Throttle) Pending() rebuild.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Stop cancels the window and drops the pending request. Add is a no-op
// afterwards.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	_, _ = t.takeLocked()
}

func (t *Throttle) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.stopped {
		t.mu.Unlock()
		return
	}
	req, ok := t.takeLocked()
	t.mu.Unlock()

	if ok {
		t.fire(req)
	}
}

// takeLocked clears the window and returns what was pending.
func (t *Throttle) takeLocked() (rebuild.Request, bool) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	req := t.pending
	t.pending = rebuild.Request{}
	return req, !req.Empty()
}
