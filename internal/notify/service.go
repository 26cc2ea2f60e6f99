// Package notify turns order lifecycle events into customer notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-catering-orders/internal/kafka"
	"github.com/ariefcatur/go-catering-orders/internal/metrics"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	KindPaymentReceipt = "payment_receipt"
	KindOrderAccepted  = "order_accepted"
	KindOrderRejected  = "order_rejected"
	KindOrderCancelled = "order_cancelled"
)

type Notification struct {
	Kind    string
	OrderID string
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Deduper remembers which event ids were already handled. redisx.Dedup implements it.
type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Service struct {
	Dedup   Deduper
	Sender  Sender
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// HandleMessage is installed as the consumer handler. A nil return commits the offset.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// poison message: log and commit so the partition keeps moving
		s.log().ErrorContext(ctx, "decode envelope", "topic", m.Topic, "offset", m.Offset, "err", err)
		s.Metrics.EventProcessed("unknown", "malformed")
		return nil
	}

	n, ok, err := build(env)
	if err != nil {
		s.log().ErrorContext(ctx, "decode payload", "event_id", env.EventID, "event_type", env.EventType, "err", err)
		s.Metrics.EventProcessed(env.EventType, "malformed")
		return nil
	}
	if !ok {
		s.Metrics.EventProcessed(env.EventType, "ignored")
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.First(ctx, env.EventID)
		if err != nil {
			s.log().WarnContext(ctx, "dedup unavailable, sending anyway", "event_id", env.EventID, "err", err)
		} else if !first {
			s.Metrics.EventProcessed(env.EventType, "duplicate")
			return nil
		}
	}

	lg := s.log().With("event_id", env.EventID, "order_id", n.OrderID, "kind", n.Kind, "trace_id", env.TraceID)
	if err := s.Sender.Send(ctx, n); err != nil {
		if s.Dedup != nil {
			_ = s.Dedup.Forget(ctx, env.EventID)
		}
		s.Metrics.EventProcessed(env.EventType, "error")
		return fmt.Errorf("send %s for order %s: %w", n.Kind, n.OrderID, err)
	}
	lg.InfoContext(ctx, "notification sent")
	s.Metrics.NotificationSent(n.Kind)
	s.Metrics.EventProcessed(env.EventType, "sent")
	return nil
}

// build maps an event to the notification it triggers. ok is false for events
// that need none.
func build(env orders.Envelope) (Notification, bool, error) {
	switch env.EventType {
	case orders.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		if p.CustomerEmail == "" {
			return Notification{}, false, nil
		}
		ref := p.OrderNumber
		if ref == "" {
			ref = p.OrderID
		}
		body := fmt.Sprintf("Hi %s, we received your payment of %s %s for order %s.", p.CustomerName, p.TotalAmount, p.Currency, ref)
		if p.TestMode {
			body += " (test order, no charge was made)"
		}
		return Notification{
			Kind:    KindPaymentReceipt,
			OrderID: p.OrderID,
			To:      p.CustomerEmail,
			Subject: "Payment received for order " + ref,
			Body:    body,
		}, true, nil

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		var kind, subject string
		switch p.To {
		case orders.StatusAccepted:
			kind, subject = KindOrderAccepted, "Your catering order is confirmed"
		case orders.StatusRejected:
			kind, subject = KindOrderRejected, "We could not take your catering order"
		case orders.StatusCancelled:
			kind, subject = KindOrderCancelled, "Your catering order was cancelled"
		default:
			return Notification{}, false, nil
		}
		if p.CustomerEmail == "" {
			return Notification{}, false, nil
		}
		body := fmt.Sprintf("Hi %s, your order %s is now %s.", p.CustomerName, p.OrderID, p.To)
		if p.AdminNote != "" {
			body += " Note from the kitchen: " + p.AdminNote
		}
		return Notification{Kind: kind, OrderID: p.OrderID, To: p.CustomerEmail, Subject: subject, Body: body}, true, nil
	}
	return Notification{}, false, nil
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	Log *slog.Logger
}

func (l LogSender) Send(ctx context.Context, n Notification) error {
	lg := l.Log
	if lg == nil {
		lg = slog.Default()
	}
	lg.InfoContext(ctx, "notification", "kind", n.Kind, "to", n.To, "subject", n.Subject, "body", n.Body)
	return nil
}
