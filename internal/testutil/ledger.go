// Package testutil provides in-memory stand-ins for the ledger, the payment
// processor and the event stream, for service and handler tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger mirrors orders.Repo: conditional writes under one lock stand in for
// row locks, so concurrent tests see the same outcomes.
type Ledger struct {
	mu      sync.Mutex
	items   map[int64]catalog.Item
	orders  map[string]orders.Order
	numbers map[string]bool
	seq     int

	// Injected failures, returned as-is when set.
	CreateErr error
	AttachErr error
}

func NewLedger(items ...catalog.Item) *Ledger {
	l := &Ledger{
		items:   map[int64]catalog.Item{},
		orders:  map[string]orders.Order{},
		numbers: map[string]bool{},
	}
	for _, it := range items {
		l.items[it.ID] = it
	}
	return l
}

// Item builds an active catalog item.
func Item(id int64, title, category, price string) catalog.Item {
	return catalog.Item{
		ID:        id,
		Title:     title,
		Category:  category,
		UnitPrice: decimal.RequireFromString(price),
		Active:    true,
	}
}

func (l *Ledger) Create(_ context.Context, nw orders.NewOrder) (orders.Order, error) {
	if l.CreateErr != nil {
		return orders.Order{}, l.CreateErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, total, err := orders.PriceCart(nw, l.items)
	if err != nil {
		return orders.Order{}, err
	}
	l.seq++
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(l.seq) * time.Second)
	o := orders.Order{
		ID:            uuid.NewString(),
		Status:        nw.Status,
		Customer:      nw.Customer.Normalized(),
		Items:         lines,
		TotalAmount:   total,
		Currency:      nw.Currency,
		PaymentMethod: nw.PaymentMethod,
		TestMode:      nw.TestMode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nw.NumberFn != nil {
		var n string
		for attempt := 0; attempt < 3; attempt++ {
			n = nw.NumberFn()
			if !l.numbers[n] {
				break
			}
		}
		if l.numbers[n] {
			return orders.Order{}, apperr.Persistence("create order", errDuplicateNumber)
		}
		l.numbers[n] = true
		o.OrderNumber = &n
	}
	l.orders[o.ID] = o
	return o, nil
}

func (l *Ledger) Get(_ context.Context, id string) (orders.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order not found")
	}
	return o, nil
}

func (l *Ledger) List(_ context.Context, status *orders.Status) ([]orders.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]orders.Order, 0, len(l.orders))
	for _, o := range l.orders {
		if status == nil || o.Status == *status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *Ledger) AttachSession(_ context.Context, orderID, sessionRef string) error {
	if l.AttachErr != nil {
		return l.AttachErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[orderID]
	if !ok {
		return apperr.NotFound("order not found")
	}
	if o.ExternalSessionRef != nil {
		if *o.ExternalSessionRef == sessionRef {
			return nil
		}
		return orders.ErrSessionAlreadyAttached
	}
	for _, other := range l.orders {
		if other.ExternalSessionRef != nil && *other.ExternalSessionRef == sessionRef {
			return apperr.Persistence("attach session", errDuplicateSession)
		}
	}
	ref := sessionRef
	o.ExternalSessionRef = &ref
	l.orders[orderID] = o
	return nil
}

func (l *Ledger) MarkPaid(_ context.Context, c orders.Confirmation) (orders.Order, orders.Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[c.OrderID]
	if !ok && c.SessionRef != "" {
		for _, cand := range l.orders {
			if cand.ExternalSessionRef != nil && *cand.ExternalSessionRef == c.SessionRef {
				o, ok = cand, true
				break
			}
		}
	}
	if !ok {
		return orders.Order{}, "", apperr.NotFound("order not found")
	}

	prev := o.Status
	if orders.Payable(prev) {
		o.Status = orders.StatusPaid
	}
	if o.ExternalPaymentRef == nil && c.PaymentRef != "" {
		ref := c.PaymentRef
		o.ExternalPaymentRef = &ref
	}
	if o.ExternalSessionRef == nil && c.SessionRef != "" {
		ref := c.SessionRef
		o.ExternalSessionRef = &ref
	}
	l.orders[o.ID] = o
	return o, prev, nil
}

func (l *Ledger) Update(_ context.Context, id string, p orders.Patch, guard orders.Guard) (orders.Order, orders.Status, error) {
	if err := p.Validate(); err != nil {
		return orders.Order{}, "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return orders.Order{}, "", apperr.NotFound("order not found")
	}
	from := o.Status
	if p.Status != nil && guard != nil {
		if err := guard(from, *p.Status); err != nil {
			return orders.Order{}, "", err
		}
	}
	p.Apply(&o)
	l.orders[id] = o
	return o, from, nil
}

// Put stores o directly, bypassing pricing. Tests use it to seed odd states.
func (l *Ledger) Put(o orders.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders[o.ID] = o
}

// Len reports how many orders exist.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}
