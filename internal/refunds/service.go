package refunds

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-rental-reservations/internal/kafka"
	"github.com/ariefcatur/go-rental-reservations/internal/redisx"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// Refunder is the slice of booking.Machine the worker drives.
type Refunder interface {
	RetryRefund(ctx context.Context, bookingID string) (reservations.Payment, error)
	RetryPendingRefunds(ctx context.Context, limit int) (int, error)
}

// StatusInvalidator drops a cached booking status whose refund outcome just
// changed.
type StatusInvalidator interface {
	Invalidate(ctx context.Context, bookingID string) error
}

// Service retries refunds that failed when a booking was cancelled. Kafka
// redelivery covers the event path, Reconcile covers everything the event
// path missed.
type Service struct {
	refunder Refunder
	dedup    *redisx.Dedup
	status   StatusInvalidator
	logger   *slog.Logger
}

type Option func(*Service)

func WithStatusCache(c StatusInvalidator) Option {
	return func(s *Service) { s.status = c }
}

func NewService(r Refunder, dedup *redisx.Dedup, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{refunder: r, dedup: dedup, logger: logger.With(slog.String("component", "refunds"))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleBookingCancelled is installed as the booking.cancelled consumer
// handler. A non-nil return leaves the offset uncommitted.
func (s *Service) HandleBookingCancelled(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		s.logger.Warn("dropping undecodable message", slog.String("error", err.Error()))
		return nil
	}
	if env.EventType != reservations.EventBookingCancelled {
		return nil
	}

	if seen, err := s.dedup.Seen(ctx, env.EventID); err == nil && seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[reservations.BookingCancelledPayload](env.Payload)
	if err != nil {
		s.logger.Warn("dropping bad payload", slog.String("event_id", env.EventID), slog.String("error", err.Error()))
		return nil
	}
	log := s.logger.With(slog.String("event_id", env.EventID), slog.String("booking_id", p.BookingID))

	if p.RefundStatus == reservations.RefundFailed {
		pay, err := s.refunder.RetryRefund(ctx, p.BookingID)
		switch {
		case err == nil:
			log.Info("refund completed", slog.String("payment_id", pay.ID), slog.String("status", string(pay.Status)))
			if s.status != nil {
				if err := s.status.Invalidate(ctx, p.BookingID); err != nil {
					log.Warn("status cache invalidate failed", slog.String("error", err.Error()))
				}
			}
		case errors.Is(err, reservations.ErrNotFound), errors.Is(err, reservations.ErrInvalidTransition):
			// nothing left to refund for this event
			log.Warn("refund not applicable", slog.String("error", err.Error()))
		default:
			log.Error("refund retry failed", slog.String("error", err.Error()))
			return err
		}
	}

	if err := s.dedup.Mark(ctx, env.EventID); err != nil {
		log.Warn("dedup mark failed", slog.String("error", err.Error()))
	}
	return nil
}

// Reconcile sweeps refundable payments every interval until ctx is done.
func (s *Service) Reconcile(ctx context.Context, interval time.Duration, batch int) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.reconcileOnce(ctx, batch)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (s *Service) reconcileOnce(ctx context.Context, batch int) {
	done, err := s.refunder.RetryPendingRefunds(ctx, batch)
	if done > 0 {
		s.logger.Info("reconciled refunds", slog.Int("refunded", done))
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Error("refund reconciliation", slog.String("error", err.Error()))
	}
}
