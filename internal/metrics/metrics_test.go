package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":                nil,
		"conflict":          &reservations.ConflictError{PropertyID: "p1"},
		"hold_expired":      fmt.Errorf("confirm: %w", reservations.ErrHoldExpired),
		"already_terminal":  reservations.ErrHoldReleased,
		"not_found":         reservations.ErrBookingNotFound,
		"payment_failed":    fmt.Errorf("%w: declined", reservations.ErrPaymentFailed),
		"already_cancelled": reservations.ErrAlreadyCancelled,
		"error":             errors.New("disk full"),
	}
	for want, err := range cases {
		require.Equal(t, want, Outcome(err), want)
	}
}

func TestCounters(t *testing.T) {
	m := newMetrics()
	m.HoldOp("create", nil)
	m.HoldOp("create", reservations.ErrConflict)
	m.HoldOp("create", reservations.ErrConflict)
	m.HoldsExpired(3)
	m.HoldsExpired(0)
	m.ObserveHTTP("", "GET", 404, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.holdOps.WithLabelValues("create", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.holdOps.WithLabelValues("create", "conflict")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.holdsExpired))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")))

	var nilMetrics *Metrics
	nilMetrics.BookingOp("confirm", nil)
}
