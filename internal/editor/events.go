package editor

import (
	"sync"
	"time"
)

// EventType names a session event pushed to subscribers.
type EventType string

const (
	EventSource       EventType = "source"
	EventHistory      EventType = "history"
	EventPreview      EventType = "preview"
	EventPreviewError EventType = "preview_error"
	EventEditor       EventType = "editor"
	EventStream       EventType = "stream"
	EventStreamCode   EventType = "stream_code"
	EventWarning      EventType = "warning"
	EventError        EventType = "error"
)

// Event is one notification about a session.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// subscriberBuffer is how many events a slow subscriber may lag behind before
// events are dropped for it.
const subscriberBuffer = 64

type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
