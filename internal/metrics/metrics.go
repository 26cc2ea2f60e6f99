package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catering"

// Metrics owns its registry so tests and multiple binaries never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	OrdersCreated   *prometheus.CounterVec
	CheckoutErrors  *prometheus.CounterVec
	Confirmations   *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	EventsProcessed *prometheus.CounterVec
}

func New(service string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted, by creation path.",
		}, []string{"path"}),
		CheckoutErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failures_total",
			Help:      "Checkouts whose order was stored but whose payment session failed.",
		}, []string{"stage"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmation attempts, by outcome.",
		}, []string{"result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_transitions_total",
			Help:      "Admin status changes, by target status.",
		}, []string{"to"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Customer and kitchen notifications dispatched.",
		}, []string{"kind"}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Consumed lifecycle events, by type and result.",
		}, []string{"event_type", "result"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.LatencyMS, m.OrdersCreated, m.CheckoutErrors,
		m.Confirmations, m.Transitions, m.Notifications, m.EventsProcessed,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveRequest(handler string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) OrderCreated(path string) {
	if m != nil {
		m.OrdersCreated.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) CheckoutFailed(stage string) {
	if m != nil {
		m.CheckoutErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) Confirmation(result string) {
	if m != nil {
		m.Confirmations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AdminTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) NotificationSent(kind string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) EventProcessed(eventType, result string) {
	if m != nil {
		m.EventsProcessed.WithLabelValues(eventType, result).Inc()
	}
}
