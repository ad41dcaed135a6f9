package refunds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-rental-reservations/internal/kafka"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type fakeRefunder struct {
	mu       sync.Mutex
	calls    []string
	err      error
	sweeps   int
	sweepErr error
}

func (f *fakeRefunder) RetryRefund(_ context.Context, bookingID string) (reservations.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bookingID)
	if f.err != nil {
		return reservations.Payment{}, f.err
	}
	return reservations.Payment{ID: "pay-" + bookingID, Status: reservations.PaymentRefunded}, nil
}

func (f *fakeRefunder) RetryPendingRefunds(context.Context, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 1, f.sweepErr
}

func (f *fakeRefunder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type invalidations struct {
	mu  sync.Mutex
	ids []string
}

func (i *invalidations) Invalidate(_ context.Context, bookingID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, bookingID)
	return nil
}

func cancelledMessage(t *testing.T, eventType string, status reservations.RefundStatus) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(reservations.BookingCancelledPayload{BookingID: "b-1", RefundStatus: status})
	require.NoError(t, err)
	env := reservations.Envelope{EventID: "ev-1", EventType: eventType, EventVersion: 1, Payload: payload}
	return kafkago.Message{Key: []byte("b-1"), Value: kafkax.MustMarshal(env)}
}

func TestHandleBookingCancelled(t *testing.T) {
	ctx := context.Background()

	t.Run("retries a failed refund", func(t *testing.T) {
		f := &fakeRefunder{}
		s := NewService(f, nil, nil)
		require.NoError(t, s.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingCancelled, reservations.RefundFailed)))
		require.Equal(t, []string{"b-1"}, f.calls)
	})

	t.Run("settled refund drops the cached status", func(t *testing.T) {
		inv := &invalidations{}
		s := NewService(&fakeRefunder{}, nil, nil, WithStatusCache(inv))
		require.NoError(t, s.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingCancelled, reservations.RefundFailed)))
		require.Equal(t, []string{"b-1"}, inv.ids)

		failing := NewService(&fakeRefunder{err: reservations.ErrPaymentFailed}, nil, nil, WithStatusCache(inv))
		require.Error(t, failing.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingCancelled, reservations.RefundFailed)))
		require.Len(t, inv.ids, 1, "nothing changed, nothing to drop")
	})

	t.Run("ignores succeeded and none", func(t *testing.T) {
		f := &fakeRefunder{}
		s := NewService(f, nil, nil)
		for _, st := range []reservations.RefundStatus{reservations.RefundSucceeded, reservations.RefundNone} {
			require.NoError(t, s.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingCancelled, st)))
		}
		require.Zero(t, f.callCount())
	})

	t.Run("ignores other event types and garbage", func(t *testing.T) {
		f := &fakeRefunder{}
		s := NewService(f, nil, nil)
		require.NoError(t, s.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingConfirmed, reservations.RefundFailed)))
		require.NoError(t, s.HandleBookingCancelled(ctx, kafkago.Message{Value: []byte("not json")}))
		require.Zero(t, f.callCount())
	})

	t.Run("gateway failure keeps the offset", func(t *testing.T) {
		f := &fakeRefunder{err: fmt.Errorf("%w: gateway down", reservations.ErrPaymentFailed)}
		s := NewService(f, nil, nil)
		err := s.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingCancelled, reservations.RefundFailed))
		require.ErrorIs(t, err, reservations.ErrPaymentFailed)
	})

	t.Run("missing booking is dropped", func(t *testing.T) {
		f := &fakeRefunder{err: reservations.ErrBookingNotFound}
		s := NewService(f, nil, nil)
		require.NoError(t, s.HandleBookingCancelled(ctx, cancelledMessage(t, reservations.EventBookingCancelled, reservations.RefundFailed)))
	})
}

func TestReconcile(t *testing.T) {
	f := &fakeRefunder{sweepErr: errors.New("booking b-9: payment failed")}
	s := NewService(f, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Reconcile(ctx, 5*time.Millisecond, 10) }()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.sweeps >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
