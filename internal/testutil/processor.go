package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-catering-orders/internal/payment"
)

var (
	errDuplicateNumber  = errors.New("duplicate order number")
	errDuplicateSession = errors.New("duplicate session reference")
	errNoSuchSession    = errors.New("no such checkout session")
)

// Processor is a scripted payment processor. Sessions start unpaid.
type Processor struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]payment.SessionStatus

	Requests    []payment.SessionRequest
	CreateErr   error
	RetrieveErr error
	Retrievals  int // RetrieveSession calls
}

func NewProcessor() *Processor {
	return &Processor{sessions: map[string]payment.SessionStatus{}}
}

func (p *Processor) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.CreateErr != nil {
		return payment.Session{}, p.CreateErr
	}
	p.seq++
	id := fmt.Sprintf("cs_test_%d", p.seq)
	p.sessions[id] = payment.SessionStatus{
		ID:            id,
		PaymentStatus: "unpaid",
		Metadata:      map[string]string{payment.MetadataOrderID: req.OrderID},
	}
	return payment.Session{ID: id, URL: "https://checkout.test/pay/" + id}, nil
}

func (p *Processor) RetrieveSession(_ context.Context, id string) (payment.SessionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Retrievals++
	if p.RetrieveErr != nil {
		return payment.SessionStatus{}, p.RetrieveErr
	}
	st, ok := p.sessions[id]
	if !ok {
		return payment.SessionStatus{}, errNoSuchSession
	}
	return st, nil
}

// Pay marks a session paid with the given payment reference.
func (p *Processor) Pay(id, paymentRef string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.sessions[id]
	st.ID = id
	st.PaymentStatus = payment.PaymentStatusPaid
	st.PaymentReference = paymentRef
	p.sessions[id] = st
}

// SetSession installs a session the processor did not create itself.
func (p *Processor) SetSession(st payment.SessionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[st.ID] = st
}

// LastRequest returns the most recent CreateSession request.
func (p *Processor) LastRequest() payment.SessionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return payment.SessionRequest{}
	}
	return p.Requests[len(p.Requests)-1]
}
