package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/ariefcatur/go-catering-orders/internal/checkout"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/ariefcatur/go-catering-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

const IdempotencyHeader = "Idempotency-Key"

// Lifecycle is the order engine behind the handlers. *checkout.Service implements it.
type Lifecycle interface {
	CreateCheckout(ctx context.Context, in checkout.OrderInput) (checkout.CheckoutResult, error)
	ConfirmPayment(ctx context.Context, sessionRef string) (checkout.ConfirmResult, error)
	CreateTestOrder(ctx context.Context, in checkout.OrderInput) (checkout.TestOrderResult, error)
	ListOrders(ctx context.Context, status string) ([]orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	UpdateOrder(ctx context.Context, id string, p orders.Patch) (orders.Order, error)
}

type MenuLister interface {
	List(ctx context.Context, category string) ([]catalog.Item, error)
}

// BodyCache stores rendered JSON bodies. redisx.OrderCache and redisx.MenuCache implement it.
type BodyCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, body []byte)
}

// Idempotency replays checkout responses per Idempotency-Key. redisx.Idempotency implements it.
type Idempotency interface {
	Begin(ctx context.Context, key, fingerprint string) (redisx.IdemState, []byte, error)
	Complete(ctx context.Context, key, fingerprint string, body []byte) error
	Abort(ctx context.Context, key string) error
}

type OrdersHandler struct {
	Service    Lifecycle
	Menu       MenuLister
	MenuCache  BodyCache   // optional
	OrderCache BodyCache   // optional
	Idem       Idempotency // optional
	Auth       Authenticator
	Log        *slog.Logger
}

type orderRequest struct {
	orders.Customer
	SelectedItems []catalog.CartEntry `json:"selectedItems"`
}

func (req orderRequest) input() checkout.OrderInput {
	return checkout.OrderInput{Customer: req.Customer, Items: req.SelectedItems}
}

type confirmRequest struct {
	SessionID string `json:"sessionId"`
}

type errorResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type menuResp struct {
	Success bool           `json:"success"`
	Items   []catalog.Item `json:"items"`
}

type checkoutResp struct {
	Success     bool   `json:"success"`
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
}

type confirmResp struct {
	Success     bool    `json:"success"`
	OrderID     string  `json:"orderId"`
	OrderNumber *string `json:"orderNumber,omitempty"`
}

type testOrder struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
}

type testOrderResp struct {
	Success bool      `json:"success"`
	Order   testOrder `json:"order"`
}

type ordersResp struct {
	Success bool           `json:"success"`
	Orders  []orders.Order `json:"orders"`
}

type orderResp struct {
	Success bool         `json:"success"`
	Order   orders.Order `json:"order"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/menu", h.listMenu)
	r.Post("/checkout", h.createCheckout)
	r.Post("/orders/confirm", h.confirmPayment)
	r.Post("/orders/test-mode", h.createTestOrder)

	r.Group(func(r chi.Router) {
		r.Use(AdminOnly(h.Auth))
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}", h.updateOrder)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (h *OrdersHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// writeError maps an apperr kind to a status. Only client-safe text is returned.
func (h *OrdersHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.log().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeJSON(w, code, errorResp{Success: false, Message: apperr.PublicMessage(err)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid json")
	}
	return nil
}

func (h *OrdersHandler) listMenu(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if h.MenuCache != nil {
		if b, ok := h.MenuCache.Get(r.Context(), category); ok {
			writeRaw(w, http.StatusOK, b)
			return
		}
	}
	items, err := h.Menu.List(r.Context(), category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := json.Marshal(menuResp{Success: true, Items: items})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.MenuCache != nil {
		h.MenuCache.Put(r.Context(), category, b)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *OrdersHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	var fp string
	if key != "" && h.Idem != nil {
		canonical, _ := json.Marshal(req)
		fp = redisx.Fingerprint(canonical)
		st, body, err := h.Idem.Begin(r.Context(), key, fp)
		switch {
		case err != nil:
			// redis down: proceed without replay protection
			h.log().WarnContext(r.Context(), "idempotency unavailable", "err", err)
			key = ""
		case st == redisx.IdemDone:
			writeRaw(w, http.StatusOK, body)
			return
		case st == redisx.IdemInFlight:
			writeJSON(w, http.StatusConflict, errorResp{Success: false, Message: "checkout already in progress"})
			return
		case st == redisx.IdemMismatch:
			writeJSON(w, http.StatusUnprocessableEntity, errorResp{Success: false, Message: IdempotencyHeader + " was already used with a different request"})
			return
		}
	} else {
		key = ""
	}

	res, err := h.Service.CreateCheckout(r.Context(), req.input())
	if err != nil {
		if key != "" {
			_ = h.Idem.Abort(r.Context(), key)
		}
		h.writeError(w, r, err)
		return
	}
	b, _ := json.Marshal(checkoutResp{Success: true, CheckoutURL: res.RedirectURL, OrderID: res.OrderID})
	if key != "" {
		if err := h.Idem.Complete(r.Context(), key, fp, b); err != nil {
			h.log().WarnContext(r.Context(), "idempotency store", "order_id", res.OrderID, "err", err)
		}
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Service.ConfirmPayment(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResp{Success: true, OrderID: res.OrderID, OrderNumber: res.OrderNumber})
}

func (h *OrdersHandler) createTestOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Service.CreateTestOrder(r.Context(), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, testOrderResp{
		Success: true,
		Order:   testOrder{ID: res.OrderID, OrderNumber: res.OrderNumber, Total: res.Total},
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, ordersResp{Success: true, Orders: list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 1) cache
	if h.OrderCache != nil {
		if b, ok := h.OrderCache.Get(r.Context(), id); ok {
			writeRaw(w, http.StatusOK, b)
			return
		}
	}

	// 2) ledger
	o, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := json.Marshal(orderResp{Success: true, Order: o})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.OrderCache != nil {
		h.OrderCache.Put(r.Context(), id, b)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var p orders.Patch
	if err := decode(w, r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp{Success: true, Order: o})
}
