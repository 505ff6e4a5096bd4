package reload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBufferSize  = 32
	defaultSendTimeout = 2 * time.Second
)

// Event is one broadcast.
type Event struct {
	ID        string
	Type      string
	Data      string
	Timestamp time.Time
}

type subscriber struct {
	events chan Event
	gone   <-chan struct{}
}

// broker fans events out to subscribers. Publishing waits for a subscriber
// with a full queue up to sendTimeout; a subscriber still full after that is
// disconnected, never skipped.
type broker struct {
	subs        map[chan Event]subscriber
	mu          sync.RWMutex
	done        chan struct{}
	closeOnce   sync.Once
	bufferSize  int
	sendTimeout time.Duration
	onChange    func(subscribers int)
}

func newBroker(bufferSize int, sendTimeout time.Duration, onChange func(int)) *broker {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if onChange == nil {
		onChange = func(int) {}
	}
	return &broker{
		subs:        make(map[chan Event]subscriber),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
		sendTimeout: sendTimeout,
		onChange:    onChange,
	}
}

// subscribe registers a subscriber until ctx is cancelled. The channel is
// closed on cancellation, on close, and when the subscriber is dropped for
// falling behind.
func (b *broker) subscribe(ctx context.Context) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event)
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event, b.bufferSize)
	b.subs[sub] = subscriber{events: sub, gone: ctx.Done()}
	b.onChange(len(b.subs))

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(sub)
	}()

	return sub
}

// publish reports how many subscribers received the event and how many were
// disconnected because they could not keep up.
func (b *broker) publish(eventType, data string) (delivered, dropped int) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	select {
	case <-b.done:
		b.mu.RUnlock()
		return 0, 0
	default:
	}

	var slow []chan Event
	for _, sub := range b.subs {
		switch b.send(sub, event) {
		case sendDelivered:
			delivered++
		case sendTimedOut:
			slow = append(slow, sub.events)
		case sendGone:
		}
	}
	b.mu.RUnlock()

	if len(slow) == 0 {
		return delivered, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range slow {
		if b.removeLocked(sub) {
			dropped++
		}
	}
	return delivered, dropped
}

type sendResult int

const (
	sendDelivered sendResult = iota
	sendTimedOut
	sendGone
)

func (b *broker) send(sub subscriber, event Event) sendResult {
	select {
	case sub.events <- event:
		return sendDelivered
	default:
	}

	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()
	select {
	case sub.events <- event:
		return sendDelivered
	case <-sub.gone:
		return sendGone
	case <-b.done:
		return sendGone
	case <-timer.C:
		return sendTimedOut
	}
}

// removeLocked closes sub if it is still registered.
func (b *broker) removeLocked(sub chan Event) bool {
	if _, ok := b.subs[sub]; !ok {
		return false
	}
	delete(b.subs, sub)
	close(sub)
	b.onChange(len(b.subs))
	return true
}

func (b *broker) close() {
	// done is closed before taking the lock so that publishers waiting on a
	// full subscriber give up and release theirs.
	first := false
	b.closeOnce.Do(func() {
		close(b.done)
		first = true
	})
	if !first {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
	b.onChange(0)
}

func (b *broker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
