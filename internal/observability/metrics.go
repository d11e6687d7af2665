package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors exported by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	ticketsCreated    *prometheus.CounterVec
	auditFailures     *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	loginAttempts     *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. Passing nil creates a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_errors_total",
			Help: "HTTP requests that ended in an error envelope",
		}, []string{"method", "route", "code"}),
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_ticket_transitions_total",
			Help: "Ticket status transitions applied",
		}, []string{"from", "to", "role"}),
		ticketsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_tickets_created_total",
			Help: "Tickets created by type",
		}, []string{"type"}),
		auditFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_audit_write_failures_total",
			Help: "Audit entries that could not be persisted",
		}, []string{"action"}),
		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_notifications_total",
			Help: "Outbound notifications by channel and result",
		}, []string{"channel", "result"}),
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_login_attempts_total",
			Help: "Verification code checks by result",
		}, []string{"result"}),
	}
}

// RegisterRuntime adds the Go runtime and process collectors.
func (m *Metrics) RegisterRuntime() {
	if m == nil {
		return
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, route, code).Inc()
}

// RecordTransition counts an applied status change.
func (m *Metrics) RecordTransition(from, to, role string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, role).Inc()
}

// RecordTicketCreated counts a new ticket.
func (m *Metrics) RecordTicketCreated(ticketType string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(ticketType).Inc()
}

// RecordAuditFailure counts a dropped audit entry.
func (m *Metrics) RecordAuditFailure(action string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(action).Inc()
}

// RecordNotification counts a notification attempt.
func (m *Metrics) RecordNotification(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notificationsSent.WithLabelValues(channel, result).Inc()
}

// RecordLogin counts a verification result such as "ok", "mismatch" or "locked".
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}
