package testutil

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-catering-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher records envelopes.
type Publisher struct {
	mu     sync.Mutex
	Events []orders.Envelope
}

func (p *Publisher) Publish(_ context.Context, env orders.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, env)
}

// Count reports how many events of eventType were published.
func (p *Publisher) Count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.Events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// Sink records raw broker writes.
type Sink struct {
	mu       sync.Mutex
	Messages []kafkago.Message
}

func (s *Sink) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, kafkago.Message{Topic: topic, Key: key, Value: value, Headers: headers})
}

// Cache records invalidated order ids.
type Cache struct {
	mu          sync.Mutex
	Invalidated []string
}

func (c *Cache) Invalidate(_ context.Context, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidated = append(c.Invalidated, orderID)
}
