package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (s *recordingSink) Publish(_ context.Context, key, value []byte, headers ...kafka.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, kafka.Message{Key: key, Value: value, Headers: headers})
	return nil
}

func TestBookingPublisher(t *testing.T) {
	confirmed, cancelled := &recordingSink{}, &recordingSink{}
	p := NewBookingPublisher(confirmed, cancelled, "reservations-api")
	at := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	holdID := "h-1"
	b := reservations.Booking{
		ID:         "b-1",
		PropertyID: "P1",
		Interval:   reservations.MustInterval("2025-06-01", "2025-06-04"),
		HoldID:     &holdID,
		Status:     reservations.BookingStatusConfirmed,
		PaymentRef: "manual:capture:TRX-1",
	}
	ctx := WithTraceID(context.Background(), "req-42")

	t.Run("confirmed", func(t *testing.T) {
		err := p.OnBookingConfirmed(ctx, reservations.BookingConfirmed{
			Booking: b,
			Payment: reservations.Payment{AmountCents: 45000, Currency: "EUR"},
			ServiceConfig: reservations.ServiceConfig{Flags: map[string]bool{"linen": false}},
			ServicePlan: reservations.ServicePlan{Code: "standard", Tasks: []reservations.TaskTemplate{
				{Kind: reservations.TaskInspection}, {Kind: reservations.TaskCleaning},
				{Kind: reservations.TaskLinenChange, RequiresFlag: "linen"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, confirmed.msgs, 1)
		m := confirmed.msgs[0]
		require.Equal(t, "b-1", string(m.Key))
		require.Equal(t, reservations.EventBookingConfirmed, Header(m, HeaderEventType))
		require.Equal(t, "1", Header(m, HeaderEventVersion))

		env, err := DecodeEnvelope(m)
		require.NoError(t, err)
		require.NotEmpty(t, env.EventID)
		require.Equal(t, "reservations-api", env.Producer)
		require.Equal(t, "req-42", env.TraceID)
		require.Equal(t, "b-1", env.CorrelationID)
		require.True(t, at.Equal(env.OccurredAt))

		pl, err := UnwrapPayload[reservations.BookingConfirmedPayload](env.Payload)
		require.NoError(t, err)
		require.Equal(t, "2025-06-01", pl.CheckIn)
		require.Equal(t, "h-1", pl.HoldID)
		require.Equal(t, []string{"inspection", "cleaning"}, pl.TaskKinds, "flag-gated kinds the property lacks are not announced")
		require.Equal(t, "standard", pl.PlanCode)
	})

	t.Run("cancelled carries refund outcome", func(t *testing.T) {
		b := b
		b.Status = reservations.BookingStatusCancelled
		err := p.OnBookingCancelled(context.Background(), reservations.BookingCancelled{
			Booking: b,
			Reason:  "guest request",
			Refund:  &reservations.RefundOutcome{PaymentID: "pay-1", Status: reservations.RefundFailed, Error: "gateway down"},
		})
		require.NoError(t, err)
		require.Len(t, cancelled.msgs, 1)
		env, err := DecodeEnvelope(cancelled.msgs[0])
		require.NoError(t, err)
		require.Empty(t, env.TraceID)
		pl, err := UnwrapPayload[reservations.BookingCancelledPayload](env.Payload)
		require.NoError(t, err)
		require.Equal(t, reservations.RefundFailed, pl.RefundStatus)
		require.Equal(t, "pay-1", pl.PaymentID)
		require.Equal(t, "guest request", pl.Reason)
	})
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope(kafka.Message{Value: []byte("{")})
	require.Error(t, err)
}
