package pubsub

import (
	"context"
	"sync"
)

// Mock is a mock pubsub client that stores published events in memory.
// Convenient for testing.
type Mock struct {
	mu        sync.Mutex
	published map[string][]Message
	subs      map[string][]EventHandler
}

// NewMock returns a mock pubsub client
func NewMock() *Mock {
	return &Mock{
		published: make(map[string][]Message),
		subs:      make(map[string][]EventHandler),
	}
}

// Publish stores the event and synchronously delivers it to subscribers
func (m *Mock) Publish(ctx context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.published[topic] = append(m.published[topic], msg)
	handlers := append([]EventHandler(nil), m.subs[topic]...)
	m.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a callback for a topic
func (m *Mock) Subscribe(_ context.Context, topic string, callback EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = append(m.subs[topic], callback)
}

// Published returns the messages published on a topic
func (m *Mock) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published[topic]...)
}
