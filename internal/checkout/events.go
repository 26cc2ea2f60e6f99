package checkout

import (
	"context"
	"errors"

	kafkax "github.com/ariefcatur/go-catering-orders/internal/kafka"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

var errIncompleteSession = errors.New("processor returned a session without id or url")

// Publisher receives lifecycle events after the ledger has committed them.
type Publisher interface {
	Publish(ctx context.Context, env orders.Envelope)
}

// MessageSink is the raw broker writer. *kafka.Producer implements it.
type MessageSink interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// KafkaPublisher routes envelopes to their topic, keyed by order id.
type KafkaPublisher struct {
	Sink MessageSink
}

func (p KafkaPublisher) Publish(_ context.Context, env orders.Envelope) {
	p.Sink.Publish(
		orders.TopicFor(env.EventType),
		orders.PartitionKey(env.CorrelationID),
		kafkax.MustMarshal(env),
		kafkago.Header{Key: kafkax.HeaderEventType, Value: []byte(env.EventType)},
		kafkago.Header{Key: kafkax.HeaderEventVersion, Value: []byte("1")},
	)
}

func (s *Service) publish(ctx context.Context, eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ctx, orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.Config.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	})
}
