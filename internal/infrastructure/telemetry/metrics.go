package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gamekeys/backend/internal/infrastructure/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every metric name
const MetricsNamespace = "gamekeys"

// Metrics holds the Prometheus collectors of the service. It implements the
// observer interfaces of the event bus, the scheduler and the DB instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	dbQueryDuration  *prometheus.HistogramVec
	dbQueryErrors    *prometheus.CounterVec
	eventsHandled    *prometheus.CounterVec
	eventDuration    *prometheus.HistogramVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	ordersCreated    prometheus.Counter
	ordersClosed     *prometheus.CounterVec
	paymentStatus    *prometheus.CounterVec
	keysDelivered    prometheus.Counter
	revenueCents     prometheus.Counter
	webhooksReceived *prometheus.CounterVec
	gatewayRequests  *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a private registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace, Subsystem: "http", Name: "requests_in_flight",
		Help: "HTTP requests currently being served.",
	})
	m.dbQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: "db", Name: "query_duration_seconds",
		Help:    "Database operation latency.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation", "table"})
	m.dbQueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "db", Name: "query_errors_total",
		Help: "Failed database operations.",
	}, []string{"operation", "table"})
	m.eventsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "events", Name: "handled_total",
		Help: "Domain events dispatched to handlers by outcome.",
	}, []string{"event_type", "result"})
	m.eventDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: "events", Name: "handler_duration_seconds",
		Help: "Time spent in event handlers.", Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	m.jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "scheduler", Name: "job_runs_total",
		Help: "Background job runs by status.",
	}, []string{"job", "status"})
	m.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: "scheduler", Name: "job_duration_seconds",
		Help: "Background job run time.", Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	m.ordersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "orders", Name: "created_total",
		Help: "Orders created.",
	})
	m.ordersClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "orders", Name: "closed_total",
		Help: "Orders that left the unpaid states, by final status.",
	}, []string{"status"})
	m.paymentStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "payments", Name: "status_changes_total",
		Help: "Provider statuses applied to orders, by provider and status.",
	}, []string{"provider", "status"})
	m.keysDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "orders", Name: "keys_delivered_total",
		Help: "Game keys delivered to customers.",
	})
	m.revenueCents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "orders", Name: "revenue_cents_total",
		Help: "Revenue of delivered orders in BRL cents.",
	})
	m.webhooksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "payments", Name: "webhooks_total",
		Help: "Provider notifications by provider and outcome.",
	}, []string{"provider", "result"})
	m.gatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "payments", Name: "gateway_requests_total",
		Help: "Calls to the PIX provider by operation and outcome.",
	}, []string{"provider", "operation", "result"})
	m.gatewayDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: "payments", Name: "gateway_request_duration_seconds",
		Help: "PIX provider call latency.", Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.httpInFlight,
		m.dbQueryDuration, m.dbQueryErrors,
		m.eventsHandled, m.eventDuration,
		m.jobRuns, m.jobDuration,
		m.ordersCreated, m.ordersClosed, m.paymentStatus, m.keysDelivered, m.revenueCents,
		m.webhooksReceived, m.gatewayRequests, m.gatewayDuration,
	)
	return m
}

// Registry exposes the registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HTTPRequestStarted tracks an in-flight request and returns the func that
// records its outcome
func (m *Metrics) HTTPRequestStarted() func(method, route string, status int, duration time.Duration) {
	m.httpInFlight.Inc()
	return func(method, route string, status int, duration time.Duration) {
		m.httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// ObserveQuery implements QueryObserver
func (m *Metrics) ObserveQuery(operation, table string, duration time.Duration, err error) {
	if table == "" {
		table = "unknown"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.dbQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveEventHandled implements event.Observer
func (m *Metrics) ObserveEventHandled(eventType string, duration time.Duration, err error) {
	m.eventsHandled.WithLabelValues(eventType, result(err)).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ObserveJobRun implements scheduler.Observer
func (m *Metrics) ObserveJobRun(job string, status scheduler.JobStatus, duration time.Duration) {
	m.jobRuns.WithLabelValues(job, string(status)).Inc()
	if status != scheduler.JobStatusSkipped {
		m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// OrderCreated counts a new order
func (m *Metrics) OrderCreated() {
	m.ordersCreated.Inc()
}

// OrderClosed counts an order that was cancelled or expired
func (m *Metrics) OrderClosed(status string) {
	m.ordersClosed.WithLabelValues(status).Inc()
}

// PaymentStatusApplied counts a provider status mapped onto an order
func (m *Metrics) PaymentStatusApplied(provider, status string) {
	m.paymentStatus.WithLabelValues(provider, status).Inc()
}

// OrderDelivered counts delivered keys and revenue
func (m *Metrics) OrderDelivered(keys int, totalCents int64) {
	m.keysDelivered.Add(float64(keys))
	m.revenueCents.Add(float64(totalCents))
}

// WebhookReceived counts a provider notification by outcome
func (m *Metrics) WebhookReceived(provider, outcome string) {
	m.webhooksReceived.WithLabelValues(provider, outcome).Inc()
}

// ObserveGatewayCall records one call to a PIX provider
func (m *Metrics) ObserveGatewayCall(provider, operation string, duration time.Duration, err error) {
	m.gatewayRequests.WithLabelValues(provider, operation, result(err)).Inc()
	m.gatewayDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
