package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type Metrics struct {
	holdOps      *prometheus.CounterVec
	bookingOps   *prometheus.CounterVec
	refunds      *prometheus.CounterVec
	holdsExpired prometheus.Counter
	tasks        *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

var (
	once     sync.Once
	registry *Metrics
)

// Default returns the lazily registered process-wide metrics.
func Default() *Metrics {
	once.Do(func() {
		registry = newMetrics()
		prometheus.MustRegister(
			registry.holdOps,
			registry.bookingOps,
			registry.refunds,
			registry.holdsExpired,
			registry.tasks,
			registry.httpRequests,
			registry.httpLatency,
		)
	})
	return registry
}

func newMetrics() *Metrics {
	return &Metrics{
		holdOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "holds",
			Name:      "operations_total",
			Help:      "Hold operations segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		bookingOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Booking transitions segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "payments",
			Name:      "refunds_total",
			Help:      "Refund attempts segmented by provider and outcome.",
		}, []string{"provider", "outcome"}),
		holdsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "holds",
			Name:      "expired_swept_total",
			Help:      "Holds the sweeper persisted as EXPIRED.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "ops_tasks",
			Name:      "transitions_total",
			Help:      "Ops task status changes segmented by target status.",
		}, []string{"to"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests segmented by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reservations",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for HTTP handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Outcome maps an operation error onto a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, reservations.ErrConflict):
		return "conflict"
	case errors.Is(err, reservations.ErrHoldExpired):
		return "hold_expired"
	case errors.Is(err, reservations.ErrHoldAlreadyConsumed):
		return "hold_consumed"
	case errors.Is(err, reservations.ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, reservations.ErrAlreadyTerminal):
		return "already_terminal"
	case errors.Is(err, reservations.ErrNotFound):
		return "not_found"
	case errors.Is(err, reservations.ErrPaymentFailed):
		return "payment_failed"
	}
	return "error"
}

func (m *Metrics) HoldOp(op string, err error) {
	if m == nil {
		return
	}
	m.holdOps.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) BookingOp(op string, err error) {
	if m == nil {
		return
	}
	m.bookingOps.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) Refund(provider reservations.Provider, err error) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(string(provider), Outcome(err)).Inc()
}

func (m *Metrics) HoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsExpired.Add(float64(n))
}

func (m *Metrics) TaskTransition(to reservations.TaskStatus) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(d.Seconds())
}
