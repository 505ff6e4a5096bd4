package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yaklabco/unistack/internal/rebuild"
)

type recorder struct {
	mu    sync.Mutex
	fired []rebuild.Request
	ch    chan rebuild.Request
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan rebuild.Request, 8)}
}

func (r *recorder) fire(req rebuild.Request) {
	r.mu.Lock()
	r.fired = append(r.fired, req)
	r.mu.Unlock()
	r.ch <- req
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func (r *recorder) wait(t *testing.T) rebuild.Request {
	t.Helper()
	select {
	case req := <-r.ch:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("throttle did not fire")
	}
	return rebuild.Request{}
}

func TestThrottle_MergesBurst(t *testing.T) {
	rec := newRecorder()
	th := New(50*time.Millisecond, rec.fire)
	t.Cleanup(th.Stop)

	th.Add(rebuild.Request{Browser: true})
	th.Add(rebuild.Request{Node: true, ExplicitNode: true})
	th.Add(rebuild.Request{Browser: true})

	got := rec.wait(t)
	assert.Equal(t, rebuild.Request{Node: true, Browser: true, ExplicitNode: true}, got)
	assert.True(t, th.Pending().Empty())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestThrottle_AddRestartsWindow(t *testing.T) {
	rec := newRecorder()
	th := New(150*time.Millisecond, rec.fire)
	t.Cleanup(th.Stop)

	start := time.Now()
	th.Add(rebuild.Request{Browser: true})
	time.Sleep(100 * time.Millisecond)
	th.Add(rebuild.Request{Node: true})

	rec.wait(t)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestThrottle_SeparateWindows(t *testing.T) {
	rec := newRecorder()
	th := New(30*time.Millisecond, rec.fire)
	t.Cleanup(th.Stop)

	th.Add(rebuild.Request{Browser: true})
	first := rec.wait(t)
	th.Add(rebuild.Request{Node: true})
	second := rec.wait(t)

	assert.Equal(t, rebuild.Request{Browser: true}, first)
	assert.Equal(t, rebuild.Request{Node: true}, second)
}

func TestThrottle_IgnoresEmpty(t *testing.T) {
	rec := newRecorder()
	th := New(20*time.Millisecond, rec.fire)
	t.Cleanup(th.Stop)

	th.Add(rebuild.Request{})
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestThrottle_StopDropsPending(t *testing.T) {
	rec := newRecorder()
	th := New(30*time.Millisecond, rec.fire)

	th.Add(rebuild.Request{Browser: true})
	th.Stop()
	th.Add(rebuild.Request{Node: true})

	time.Sleep(90 * time.Millisecond)
	assert.Zero(t, rec.count())
	assert.True(t, th.Pending().Empty())
}

func TestNew_DefaultWindow(t *testing.T) {
	th := New(0, func(rebuild.Request) {})
	assert.Equal(t, DefaultWindow, th.Window())
}
