// Package events is a small in-process publish/subscribe bus used to
// signal sync progress to interested frontends without wiring them to
// the engines directly.
package events

import "sync"

// Event names published by the sync pipeline.
const (
	SyncStarted      = "sync.started"
	SyncFinished     = "sync.finished"
	ArticlesInserted = "articles.inserted"
	ContentExtracted = "content.extracted"
)

type Event struct {
	Name      string
	AccountID int64
	Data      any
}

type Stream <-chan Event

type Bus struct {
	mu        sync.Mutex
	listeners []chan Event
	closed    bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Dispatch delivers the event to every listener. Slow listeners drop
// events rather than block the sync pipeline.
func (b *Bus) Dispatch(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Listener registers and returns a new event stream.
func (b *Bus) Listener() Stream {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
	} else {
		b.listeners = append(b.listeners, ch)
	}
	return ch
}

// Close closes every listener stream.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
}
