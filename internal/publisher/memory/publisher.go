// Package memory keeps published lead events in process. It backs the
// publisher when no Pub/Sub topic is configured and is inspected by tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultCapacity bounds how many events are retained.
const DefaultCapacity = 256

// Message is one recorded publish.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher records the most recent events up to its capacity.
type Publisher struct {
	mu       sync.RWMutex
	capacity int
	seq      int
	messages []Message
}

// New returns a Publisher retaining at most capacity events.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Publisher{capacity: capacity}
}

// Publish records the event, dropping the oldest once full.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	msg := Message{ID: fmt.Sprintf("memory-%d", p.seq), Topic: topic, Payload: payload}
	if len(p.messages) == p.capacity {
		copy(p.messages, p.messages[1:])
		p.messages = p.messages[:len(p.messages)-1]
	}
	p.messages = append(p.messages, msg)
	return msg.ID, nil
}

// Messages returns a copy of the retained events, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Close is a no-op.
func (p *Publisher) Close() error { return nil }
