// Package checkout runs the order lifecycle: starting hosted checkouts,
// reconciling processor-confirmed payments, the test-mode bypass, and admin
// decisions.
package checkout

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/ariefcatur/go-catering-orders/internal/metrics"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/ariefcatur/go-catering-orders/internal/payment"
	"github.com/shopspring/decimal"
)

// Ledger is the order store. *orders.Repo implements it.
type Ledger interface {
	Create(ctx context.Context, nw orders.NewOrder) (orders.Order, error)
	Get(ctx context.Context, id string) (orders.Order, error)
	List(ctx context.Context, status *orders.Status) ([]orders.Order, error)
	AttachSession(ctx context.Context, orderID, sessionRef string) error
	MarkPaid(ctx context.Context, c orders.Confirmation) (orders.Order, orders.Status, error)
	Update(ctx context.Context, id string, p orders.Patch, guard orders.Guard) (orders.Order, orders.Status, error)
}

// StatusCache is told when an order changed so cached reads can be dropped.
type StatusCache interface {
	Invalidate(ctx context.Context, orderID string)
}

type Config struct {
	ServiceName              string
	Currency                 string
	SuccessURL               string // may contain {CHECKOUT_SESSION_ID}
	CancelURL                string // may contain {ORDER_ID}
	PaymentTimeout           time.Duration
	TestModeEnabled          bool
	TestModeZeroPriceUnknown bool
}

type Service struct {
	Ledger    Ledger
	Processor payment.Processor // nil when no credentials are configured
	Events    Publisher
	Cache     StatusCache
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Config    Config
	Now       func() time.Time
}

type OrderInput struct {
	Customer orders.Customer
	Items    []catalog.CartEntry
}

type CheckoutResult struct {
	RedirectURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
	SessionID   string `json:"-"`
}

type ConfirmResult struct {
	OrderID     string  `json:"orderId"`
	OrderNumber *string `json:"orderNumber,omitempty"`
}

type TestOrderResult struct {
	OrderID     string          `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
}

func (s *Service) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) paymentCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Config.PaymentTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Config.PaymentTimeout)
}

func validateInput(in OrderInput) ([]catalog.CartEntry, error) {
	if err := in.Customer.Validate(); err != nil {
		return nil, err
	}
	cart := catalog.Normalize(in.Items)
	if len(cart) == 0 {
		return nil, apperr.Validation("select at least one menu item")
	}
	return cart, nil
}

// CreateCheckout persists a pending order and opens a hosted payment session for it.
// The order is durable before the processor is called; if the session cannot be
// created or recorded the order stays pending without a session reference.
func (s *Service) CreateCheckout(ctx context.Context, in OrderInput) (CheckoutResult, error) {
	cart, err := validateInput(in)
	if err != nil {
		return CheckoutResult{}, err
	}
	if s.Processor == nil {
		return CheckoutResult{}, apperr.NotConfigured("payment system not configured")
	}

	o, err := s.Ledger.Create(ctx, orders.NewOrder{
		Customer:      in.Customer,
		Cart:          cart,
		Policy:        catalog.DropUnknown,
		Status:        orders.StatusPendingPayment,
		PaymentMethod: orders.PaymentMethodStripe,
		Currency:      s.Config.Currency,
	})
	if err != nil {
		s.logFailure(ctx, "create pending order", err)
		return CheckoutResult{}, err
	}
	s.Metrics.OrderCreated("checkout")
	s.publish(ctx, orders.EventOrderCreated, o.ID, orders.CreatedPayload(o))

	lg := s.log().With("order_id", o.ID)
	pctx, cancel := s.paymentCtx(ctx)
	defer cancel()
	sess, err := s.Processor.CreateSession(pctx, payment.SessionRequest{
		OrderID:    o.ID,
		Currency:   o.Currency,
		LineItems:  lineItems(o.Items),
		SuccessURL: s.Config.SuccessURL,
		CancelURL:  strings.ReplaceAll(s.Config.CancelURL, "{ORDER_ID}", o.ID),
	})
	if err == nil && (sess.ID == "" || sess.URL == "") {
		err = errIncompleteSession
	}
	if err != nil {
		lg.ErrorContext(ctx, "checkout session not created, order left pending", "err", err)
		s.Metrics.CheckoutFailed("session")
		return CheckoutResult{OrderID: o.ID}, apperr.Upstream("payment could not be started", err)
	}

	if err := s.Ledger.AttachSession(ctx, o.ID, sess.ID); err != nil {
		lg.ErrorContext(ctx, "checkout session not recorded, order left pending", "session_ref", sess.ID, "err", err)
		s.Metrics.CheckoutFailed("attach")
		return CheckoutResult{OrderID: o.ID}, apperr.Upstream("payment could not be started", err)
	}
	s.invalidate(ctx, o.ID)
	lg.InfoContext(ctx, "checkout started", "session_ref", sess.ID, "total", o.TotalAmount.StringFixed(2))
	return CheckoutResult{RedirectURL: sess.URL, OrderID: o.ID, SessionID: sess.ID}, nil
}

// ConfirmPayment asks the processor whether the session was paid and, if so,
// moves the matching order to paid. Repeated or concurrent calls with the same
// session converge on one transition and keep the first payment reference.
// An order cancelled before the payment landed is reopened as paid.
func (s *Service) ConfirmPayment(ctx context.Context, sessionRef string) (ConfirmResult, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return ConfirmResult{}, apperr.Validation("sessionId is required")
	}
	if s.Processor == nil {
		return ConfirmResult{}, apperr.NotConfigured("payment system not configured")
	}

	lg := s.log().With("session_ref", sessionRef)
	pctx, cancel := s.paymentCtx(ctx)
	defer cancel()
	st, err := s.Processor.RetrieveSession(pctx, sessionRef)
	if err != nil {
		lg.ErrorContext(ctx, "retrieve checkout session", "err", err)
		s.Metrics.Confirmation("upstream_error")
		return ConfirmResult{}, apperr.Upstream("payment could not be verified", err)
	}
	if !st.Paid() {
		lg.InfoContext(ctx, "session not paid", "payment_status", st.PaymentStatus)
		s.Metrics.Confirmation("not_paid")
		return ConfirmResult{}, apperr.Validation("payment not verified")
	}

	o, prev, err := s.Ledger.MarkPaid(ctx, orders.Confirmation{
		OrderID:    st.OrderID(),
		SessionRef: sessionRef,
		PaymentRef: st.PaymentReference,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			lg.WarnContext(ctx, "paid session matches no order", "metadata_order_id", st.OrderID())
			s.Metrics.Confirmation("not_found")
		} else {
			s.logFailure(ctx, "mark order paid", err)
			s.Metrics.Confirmation("error")
		}
		return ConfirmResult{}, err
	}

	switch {
	case prev == orders.StatusCancelled && o.Status == orders.StatusPaid:
		lg.ErrorContext(ctx, "payment received for cancelled order, order reopened as paid",
			"order_id", o.ID, "payment_ref", st.PaymentReference)
		s.Metrics.Confirmation("paid_after_cancel")
		s.invalidate(ctx, o.ID)
		s.publish(ctx, orders.EventOrderPaid, o.ID, orders.PaidPayload(o))
	case prev != o.Status:
		lg.InfoContext(ctx, "order paid", "order_id", o.ID, "payment_ref", st.PaymentReference)
		s.Metrics.Confirmation("paid")
		s.invalidate(ctx, o.ID)
		s.publish(ctx, orders.EventOrderPaid, o.ID, orders.PaidPayload(o))
	default:
		lg.InfoContext(ctx, "payment already reconciled", "order_id", o.ID, "status", o.Status)
		s.Metrics.Confirmation("duplicate")
	}
	return ConfirmResult{OrderID: o.ID, OrderNumber: o.OrderNumber}, nil
}

// CreateTestOrder records a paid order without contacting the processor.
// Prices are still resolved from the catalog; client prices are ignored.
func (s *Service) CreateTestOrder(ctx context.Context, in OrderInput) (TestOrderResult, error) {
	if !s.Config.TestModeEnabled {
		return TestOrderResult{}, apperr.NotConfigured("test mode disabled")
	}
	cart, err := validateInput(in)
	if err != nil {
		return TestOrderResult{}, err
	}

	policy := catalog.DropUnknown
	if s.Config.TestModeZeroPriceUnknown {
		policy = catalog.ZeroUnknown
	}
	o, err := s.Ledger.Create(ctx, orders.NewOrder{
		Customer:      in.Customer,
		Cart:          cart,
		Policy:        policy,
		Status:        orders.StatusPaid,
		PaymentMethod: orders.PaymentMethodTestMode,
		TestMode:      true,
		Currency:      s.Config.Currency,
		NumberFn:      orders.OrderNumberGenerator(s.now),
	})
	if err != nil {
		s.logFailure(ctx, "create test order", err)
		return TestOrderResult{}, err
	}

	claimed := 0
	for _, e := range cart {
		if e.ClaimedPrice != nil {
			claimed++
		}
	}
	s.log().DebugContext(ctx, "test order priced from catalog", "order_id", o.ID, "client_prices_ignored", claimed)
	s.Metrics.OrderCreated("test_mode")
	s.publish(ctx, orders.EventOrderPaid, o.ID, orders.PaidPayload(o))

	res := TestOrderResult{OrderID: o.ID, Total: o.TotalAmount}
	if o.OrderNumber != nil {
		res.OrderNumber = *o.OrderNumber
	}
	return res, nil
}

// ListOrders returns every order, or only those in status when it is non-empty.
func (s *Service) ListOrders(ctx context.Context, status string) ([]orders.Order, error) {
	var filter *orders.Status
	if status = strings.TrimSpace(status); status != "" && status != "all" {
		st, ok := orders.ParseStatus(status)
		if !ok {
			return nil, apperr.Validation("unknown status " + status)
		}
		filter = &st
	}
	out, err := s.Ledger.List(ctx, filter)
	if err != nil {
		s.logFailure(ctx, "list orders", err)
	}
	return out, err
}

func (s *Service) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return s.Ledger.Get(ctx, id)
}

// UpdateOrder applies an admin patch through the transition gate.
func (s *Service) UpdateOrder(ctx context.Context, id string, p orders.Patch) (orders.Order, error) {
	o, from, err := orders.Gate{Ledger: s.Ledger}.Update(ctx, id, p)
	if err != nil {
		s.logFailure(ctx, "update order", err)
		return orders.Order{}, err
	}
	s.invalidate(ctx, o.ID)
	if from != o.Status {
		s.log().InfoContext(ctx, "order status changed", "order_id", o.ID, "from", from, "to", o.Status)
		s.Metrics.AdminTransition(string(o.Status))
		s.publish(ctx, orders.EventOrderStatusChanged, o.ID, orders.StatusChangedPayload(from, o))
	}
	return o, nil
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, orderID)
	}
}

// logFailure logs infrastructure failures; client mistakes are not logged.
func (s *Service) logFailure(ctx context.Context, op string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		return
	}
	s.log().ErrorContext(ctx, op, "err", err)
}

func lineItems(lines []orders.LineItem) []payment.LineItem {
	out := make([]payment.LineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, payment.LineItem{
			Name:        l.Title,
			Description: l.Description,
			UnitAmount:  catalog.MinorUnits(l.UnitPrice),
			Quantity:    int64(l.Quantity),
		})
	}
	return out
}
