package recommend

import "sync"

// EventType labels a pipeline lifecycle event.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventCompleted EventType = "completed"
	EventFallback  EventType = "fallback"
)

// Event describes one stage transition of a recommendation build. RequestID
// ties the events of a single build together.
type Event struct {
	Type      EventType
	RequestID string
	Detail    string
}

// Broker is a small synchronous pub/sub hub for pipeline events. The TUI and
// server subscribe to surface progress; handlers run inline on the publishing
// goroutine and should return quickly.
type Broker struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(Event)
}

func NewBroker() *Broker {
	return &Broker{handlers: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns a function that removes exactly
// that handler.
func (b *Broker) Subscribe(handler func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers the event to every subscribed handler. Handlers are
// snapshotted under the lock and invoked outside it so a handler may
// subscribe or unsubscribe without deadlocking.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	snapshot := make([]func(Event), 0, len(b.handlers))
	for _, handler := range b.handlers {
		snapshot = append(snapshot, handler)
	}
	b.mu.Unlock()

	for _, handler := range snapshot {
		handler(event)
	}
}
