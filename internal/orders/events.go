package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderPaid          = "OrderPaid"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string `json:"order_id"`
	Status      Status `json:"status"`
	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency"`
	LineCount   int    `json:"line_count"`
}

type OrderPaidPayload struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	TotalAmount   string `json:"total_amount"`
	Currency      string `json:"currency"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	TestMode      bool   `json:"test_mode"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	AdminNote     string `json:"admin_note,omitempty"`
}

func CreatedPayload(o Order) OrderCreatedPayload {
	return OrderCreatedPayload{
		OrderID:     o.ID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Currency:    o.Currency,
		LineCount:   len(o.Items),
	}
}

func PaidPayload(o Order) OrderPaidPayload {
	p := OrderPaidPayload{
		OrderID:       o.ID,
		CustomerName:  o.Customer.FirstName + " " + o.Customer.LastName,
		CustomerEmail: o.Customer.Email,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Currency:      o.Currency,
		TestMode:      o.TestMode,
	}
	if o.OrderNumber != nil {
		p.OrderNumber = *o.OrderNumber
	}
	if o.ExternalPaymentRef != nil {
		p.PaymentRef = *o.ExternalPaymentRef
	}
	return p
}

func StatusChangedPayload(from Status, o Order) OrderStatusChangedPayload {
	p := OrderStatusChangedPayload{
		OrderID:       o.ID,
		From:          from,
		To:            o.Status,
		CustomerEmail: o.Customer.Email,
		CustomerName:  o.Customer.FirstName + " " + o.Customer.LastName,
	}
	if o.AdminNote != nil {
		p.AdminNote = *o.AdminNote
	}
	return p
}
