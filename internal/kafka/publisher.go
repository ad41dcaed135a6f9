package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const eventVersion = 1

// Sink is what BookingPublisher writes to; *Producer in production.
type Sink interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// BookingPublisher turns booking transitions into envelope v1 events, one
// topic per event type, keyed by booking id.
type BookingPublisher struct {
	confirmed Sink
	cancelled Sink
	service   string
	now       func() time.Time
}

var _ reservations.BookingHooks = (*BookingPublisher)(nil)

func NewBookingPublisher(confirmed, cancelled Sink, service string) *BookingPublisher {
	return &BookingPublisher{
		confirmed: confirmed,
		cancelled: cancelled,
		service:   service,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *BookingPublisher) OnBookingConfirmed(ctx context.Context, ev reservations.BookingConfirmed) error {
	return p.publish(ctx, p.confirmed, reservations.EventBookingConfirmed, ev.Booking.ID,
		reservations.NewBookingConfirmedPayload(ev))
}

func (p *BookingPublisher) OnBookingCancelled(ctx context.Context, ev reservations.BookingCancelled) error {
	return p.publish(ctx, p.cancelled, reservations.EventBookingCancelled, ev.Booking.ID,
		reservations.NewBookingCancelledPayload(ev))
}

func (p *BookingPublisher) publish(ctx context.Context, sink Sink, eventType, bookingID string, payload any) error {
	env := reservations.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    p.now(),
		Producer:      p.service,
		TraceID:       traceID(ctx),
		CorrelationID: bookingID,
		Payload:       MustMarshal(payload),
	}
	return sink.Publish(ctx, reservations.PartitionKey(bookingID), MustMarshal(env),
		kafka.Header{Key: HeaderEventType, Value: []byte(eventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(eventVersion))},
	)
}

type traceKey struct{}

// WithTraceID carries a request id into published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
