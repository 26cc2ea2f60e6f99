package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/ariefcatur/go-catering-orders/internal/checkout"
	"github.com/ariefcatur/go-catering-orders/internal/metrics"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/ariefcatur/go-catering-orders/internal/redisx"
	"github.com/ariefcatur/go-catering-orders/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "s3cret-admin"

// MockMenu implements MenuLister for testing
type MockMenu struct {
	ListFunc func(ctx context.Context, category string) ([]catalog.Item, error)
	calls    int
}

func (m *MockMenu) List(ctx context.Context, category string) ([]catalog.Item, error) {
	m.calls++
	if m.ListFunc != nil {
		return m.ListFunc(ctx, category)
	}
	return nil, nil
}

type env struct {
	router *chi.Mux
	ledger *testutil.Ledger
	proc   *testutil.Processor
	menu   *MockMenu
	redis  *miniredis.Miniredis
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	e := &env{
		ledger: testutil.NewLedger(
			testutil.Item(1, "Meatball Sandwich (Kofte)", "Sandwiches", "8.50"),
			testutil.Item(2, "Baklava Tray", "Desserts", "12.99"),
		),
		proc:  testutil.NewProcessor(),
		menu:  &MockMenu{},
		redis: mr,
	}
	svc := &checkout.Service{
		Ledger:    e.ledger,
		Processor: e.proc,
		Cache:     redisx.OrderCache{RDB: rdb},
		Config: checkout.Config{
			Currency:        "GBP",
			SuccessURL:      "https://shop.test/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:       "https://shop.test/cancel?order_id={ORDER_ID}",
			PaymentTimeout:  time.Second,
			TestModeEnabled: true,
		},
	}
	e.router = NewRouter(metrics.New("api_test"))
	h := &OrdersHandler{
		Service:    svc,
		Menu:       e.menu,
		MenuCache:  redisx.MenuCache{RDB: rdb},
		OrderCache: redisx.OrderCache{RDB: rdb},
		Idem:       redisx.Idempotency{RDB: rdb},
		Auth:       TokenAuth{Token: adminToken},
	}
	h.Register(e.router)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func checkoutBody(items ...map[string]any) map[string]any {
	return map[string]any{
		"firstName":     "Ada",
		"lastName":      "Lovelace",
		"phone":         "07700 900123",
		"email":         "ada@example.com",
		"address":       "12 Analytical Row, London",
		"selectedItems": items,
	}
}

func bearer() []string { return []string{"Authorization", "Bearer " + adminToken} }

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMenuIsCached(t *testing.T) {
	e := newEnv(t)
	e.menu.ListFunc = func(_ context.Context, category string) ([]catalog.Item, error) {
		assert.Equal(t, "Desserts", category)
		return []catalog.Item{testutil.Item(2, "Baklava Tray", "Desserts", "12.99")}, nil
	}

	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodGet, "/menu?category=Desserts", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Len(t, body["items"], 1)
	}
	assert.Equal(t, 1, e.menu.calls)
}

func TestMenuUpstreamError(t *testing.T) {
	e := newEnv(t)
	e.menu.ListFunc = func(context.Context, string) ([]catalog.Item, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	rec := e.do(t, http.MethodGet, "/menu", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody(t, rec)["message"])
}

func TestCheckoutFlow(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 1, "qty": 2, "price": "0.01"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	orderID := body["orderId"].(string)
	assert.Contains(t, body["checkoutUrl"], "https://checkout.test/pay/cs_test_1")

	e.proc.Pay("cs_test_1", "pi_1")
	rec = e.do(t, http.MethodPost, "/orders/confirm", map[string]string{"sessionId": "cs_test_1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, decodeBody(t, rec)["orderId"])

	rec = e.do(t, http.MethodGet, "/orders/"+orderID, nil, bearer()...)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "paid", order["status"])
	assert.Equal(t, "17", order["totalAmount"])
}

func TestCheckoutValidationAndConfig(t *testing.T) {
	e := newEnv(t)

	body := checkoutBody(map[string]any{"id": 1, "qty": 1})
	body["email"] = ""
	rec := e.do(t, http.MethodPost, "/checkout", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])

	rec = e.do(t, http.MethodPost, "/checkout", checkoutBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutProcessorFailureHidesCause(t *testing.T) {
	e := newEnv(t)
	e.proc.CreateErr = errors.New("Invalid API Key provided: sk_live_****")

	rec := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 1, "qty": 1}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk_live")
	assert.Equal(t, 1, e.ledger.Len())
}

func TestCheckoutIdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	hdr := []string{IdempotencyHeader, "idem-123"}

	first := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 1, "qty": 1}), hdr...)
	require.Equal(t, http.StatusOK, first.Code)
	second := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 1, "qty": 1}), hdr...)
	require.Equal(t, http.StatusOK, second.Code)

	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, e.ledger.Len())
	assert.Len(t, e.proc.Requests, 1)
}

func TestCheckoutIdempotencyInFlight(t *testing.T) {
	e := newEnv(t)
	body := checkoutBody(map[string]any{"id": 1, "qty": 1})
	rdb := redisx.New(e.redis.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	_, _, err := redisx.Idempotency{RDB: rdb}.Begin(context.Background(), "busy", requestFingerprint(t, body))
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/checkout", body, IdempotencyHeader, "busy")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, e.ledger.Len())
}

func TestCheckoutIdempotencyKeyReusedWithDifferentCart(t *testing.T) {
	e := newEnv(t)
	hdr := []string{IdempotencyHeader, "idem-456"}

	first := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 1, "qty": 1}), hdr...)
	require.Equal(t, http.StatusOK, first.Code)

	second := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 2, "qty": 5}), hdr...)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Contains(t, second.Body.String(), IdempotencyHeader)
	assert.NotContains(t, second.Body.String(), "checkoutUrl")
	assert.Equal(t, 1, e.ledger.Len())
	assert.Len(t, e.proc.Requests, 1)

	// the original body still replays
	again := e.do(t, http.MethodPost, "/checkout", checkoutBody(map[string]any{"id": 1, "qty": 1}), hdr...)
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, first.Body.String(), again.Body.String())
}

// requestFingerprint mirrors how the handler fingerprints a decoded checkout body.
func requestFingerprint(t *testing.T, body any) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var req orderRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	canonical, err := json.Marshal(req)
	require.NoError(t, err)
	return redisx.Fingerprint(canonical)
}

func TestConfirmErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/orders/confirm", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.proc.SetSession(paidSession("sess_123"))
	rec = e.do(t, http.MethodPost, "/orders/confirm", map[string]string{"sessionId": "sess_123"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestModeOrder(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/orders/test-mode", checkoutBody(map[string]any{"id": "2", "qty": "3"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Regexp(t, orders.OrderNumberPattern, order["orderNumber"])
	assert.Equal(t, "38.97", order["total"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/orders", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/orders", nil, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPatch, "/orders/x", map[string]string{"status": "accepted"}).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/orders", nil, bearer()...).Code)
}

func TestAdminListAndUpdate(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/orders/test-mode", checkoutBody(map[string]any{"id": 1, "qty": 1}))
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["order"].(map[string]any)["id"].(string)

	// warm the cache, then make sure the update drops it
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/orders/"+id, nil, bearer()...).Code)
	assert.True(t, e.redis.Exists("order:"+id))

	rec = e.do(t, http.MethodPatch, "/orders/"+id, map[string]string{"status": "accepted", "adminNote": "noon"}, bearer()...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, e.redis.Exists("order:"+id))

	rec = e.do(t, http.MethodGet, "/orders/"+id, nil, bearer()...)
	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "accepted", order["status"])
	assert.Equal(t, "noon", order["adminNote"])
	assert.Equal(t, "Ada", order["customer"].(map[string]any)["firstName"])

	rec = e.do(t, http.MethodPatch, "/orders/"+id, map[string]string{"status": "pending_payment"}, bearer()...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders?status=accepted", nil, bearer()...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["orders"], 1)

	rec = e.do(t, http.MethodGet, "/orders?status=bogus", nil, bearer()...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders/does-not-exist", nil, bearer()...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, TokenAuth{}.Admin(req))

	req.Header.Set("Authorization", "bearer "+adminToken)
	assert.True(t, TokenAuth{Token: adminToken}.Admin(req))

	req.Header.Set("Authorization", adminToken)
	assert.False(t, TokenAuth{Token: adminToken}.Admin(req))
}
