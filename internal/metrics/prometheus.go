// Package metrics exposes Prometheus metrics for the draw service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Draw outcomes used as label values.
const (
	OutcomeCommitted           = "committed"
	OutcomeReplayed            = "replayed"
	OutcomeOutOfStock          = "out_of_stock"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeRejected            = "rejected"
	OutcomeUnavailable         = "unavailable"
)

type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	draws              *prometheus.CounterVec
	drawDuration       prometheus.Histogram
	ledgerRetries      prometheus.Counter
	reservationRelease *prometheus.CounterVec
	invalidTables      prometheus.Counter
	eventsConsumed     *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "blindbox",
		subsystem: "draw",
		buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.init()
	return m
}

func (m *Manager) init() {
	auto := promauto.With(m.registry)

	m.draws = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "requests_total",
		Help:      "Draw requests by outcome",
	}, []string{"outcome"})

	m.drawDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duration_seconds",
		Help:      "End to end draw latency",
		Buckets:   m.buckets,
	})

	m.ledgerRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_retries_total",
		Help:      "Order ledger append attempts that had to be retried",
	})

	m.reservationRelease = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reservations_released_total",
		Help:      "Reservations rolled back after RESERVED, by reason",
	}, []string{"reason"})

	m.invalidTables = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invalid_probability_tables_total",
		Help:      "Boxes taken offline because their prize weights were unusable",
	})

	m.eventsConsumed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fulfillment",
		Name:      "events_total",
		Help:      "Fulfillment events handled, by result",
	}, []string{"result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.buckets,
	}, []string{"route", "method"})
}

func (m *Manager) RecordDraw(outcome string, d time.Duration) {
	m.draws.WithLabelValues(outcome).Inc()
	m.drawDuration.Observe(d.Seconds())
}

func (m *Manager) RecordLedgerRetry() { m.ledgerRetries.Inc() }

func (m *Manager) RecordReservationRelease(reason string) {
	m.reservationRelease.WithLabelValues(reason).Inc()
}

func (m *Manager) RecordInvalidTable() { m.invalidTables.Inc() }

func (m *Manager) RecordFulfillmentEvent(result string) {
	m.eventsConsumed.WithLabelValues(result).Inc()
}

func (m *Manager) RecordHTTPRequest(route, method, statusCode string, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Manager) Registry() *prometheus.Registry { return m.registry }

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var (
	globalOnce    sync.Once
	globalManager *Manager
)

// Default returns the process-wide manager, which also carries Go runtime
// and process collectors.
func Default() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalManager.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return globalManager
}

func RecordDraw(outcome string, d time.Duration) { Default().RecordDraw(outcome, d) }
func RecordLedgerRetry()                         { Default().RecordLedgerRetry() }
func RecordReservationRelease(reason string)     { Default().RecordReservationRelease(reason) }
func RecordInvalidTable()                        { Default().RecordInvalidTable() }
func RecordFulfillmentEvent(result string)       { Default().RecordFulfillmentEvent(result) }

func RecordHTTPRequest(route, method, statusCode string, d time.Duration) {
	Default().RecordHTTPRequest(route, method, statusCode, d)
}

func Handler() http.Handler { return Default().Handler() }
