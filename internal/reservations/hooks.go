package reservations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BookingHooks is implemented by anything reacting to booking transitions.
type BookingHooks interface {
	OnBookingConfirmed(ctx context.Context, ev BookingConfirmed) error
	OnBookingCancelled(ctx context.Context, ev BookingCancelled) error
}

// ServiceConfigSource looks up a property's service configuration.
type ServiceConfigSource interface {
	ServiceConfig(ctx context.Context, propertyID string) (ServiceConfig, error)
}

const defaultListenerTimeout = 5 * time.Second

// Dispatcher fans events out to optional listeners. Listeners run in their
// own goroutines on a context detached from the caller; their errors are
// logged and never reach the transition that produced the event.
type Dispatcher struct {
	listeners []BookingHooks
	logger    *slog.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, listeners ...BookingHooks) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{listeners: listeners, logger: logger, timeout: defaultListenerTimeout}
}

func (d *Dispatcher) Confirmed(ctx context.Context, ev BookingConfirmed) {
	d.fanOut(ctx, EventBookingConfirmed, ev.Booking.ID, func(ctx context.Context, l BookingHooks) error {
		return l.OnBookingConfirmed(ctx, ev)
	})
}

func (d *Dispatcher) Cancelled(ctx context.Context, ev BookingCancelled) {
	d.fanOut(ctx, EventBookingCancelled, ev.Booking.ID, func(ctx context.Context, l BookingHooks) error {
		return l.OnBookingCancelled(ctx, ev)
	})
}

// Wait blocks until every in-flight listener call has returned.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) fanOut(ctx context.Context, event, bookingID string, call func(context.Context, BookingHooks) error) {
	if d == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, l := range d.listeners {
		d.wg.Add(1)
		go func(l BookingHooks) {
			defer d.wg.Done()
			lctx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()
			if err := safeCall(lctx, l, call); err != nil {
				d.logger.Warn("booking listener failed",
					slog.String("event", event),
					slog.String("booking_id", bookingID),
					slog.String("listener", fmt.Sprintf("%T", l)),
					slog.String("error", err.Error()),
				)
			}
		}(l)
	}
}

func safeCall(ctx context.Context, l BookingHooks, call func(context.Context, BookingHooks) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return call(ctx, l)
}
