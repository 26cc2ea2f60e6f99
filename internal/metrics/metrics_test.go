package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated("checkout")
		m.Confirmation("paid")
		m.ObserveRequest("GET /menu", 200, time.Millisecond)
	})
}

func TestCountersAndHandler(t *testing.T) {
	m := New("api")
	m.OrderCreated("checkout")
	m.OrderCreated("checkout")
	m.Confirmation("duplicate")
	m.ObserveRequest("POST /checkout", http.StatusCreated, 12*time.Millisecond)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.OrdersCreated.WithLabelValues("checkout")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Confirmations.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("POST /checkout", "201")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "catering_orders_created_total")
	assert.Contains(t, string(body), "catering_api_http_requests_total")
}

func TestNewIsIsolated(t *testing.T) {
	assert.NotPanics(t, func() {
		New("api")
		New("api")
	})
}
