// Package payment is the boundary to the hosted payment processor.
package payment

import "context"

// MetadataOrderID is the session metadata key carrying our order id.
const MetadataOrderID = "orderId"

// PaymentStatusPaid is the only status that counts as money collected.
const PaymentStatusPaid = "paid"

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // minor units
	Quantity    int64
}

type SessionRequest struct {
	OrderID    string
	Currency   string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

// SessionStatus is the processor's ground truth for a session.
type SessionStatus struct {
	ID               string
	PaymentStatus    string
	PaymentReference string
	Metadata         map[string]string
}

func (s SessionStatus) Paid() bool { return s.PaymentStatus == PaymentStatusPaid }

func (s SessionStatus) OrderID() string { return s.Metadata[MetadataOrderID] }

type Processor interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, id string) (SessionStatus, error)
}
