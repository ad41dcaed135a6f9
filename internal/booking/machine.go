// Package booking drives a booking from a hold to confirmation and on to
// cancellation, keeping payment and ops tasks in step.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/metrics"
	"github.com/ariefcatur/go-rental-reservations/internal/payments"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockProperty(ctx context.Context, propertyID string) error

	GetHold(ctx context.Context, id string) (reservations.Hold, error)
	UpdateHoldStatus(ctx context.Context, id string, from, to reservations.HoldStatus, now time.Time) (bool, error)

	CreateBooking(ctx context.Context, b reservations.Booking) error
	GetBooking(ctx context.Context, id string) (reservations.Booking, error)
	GetBookingForUpdate(ctx context.Context, id string) (reservations.Booking, error)
	UpdateBooking(ctx context.Context, b reservations.Booking) error

	CreatePayment(ctx context.Context, p reservations.Payment) error
	GetPaymentByBooking(ctx context.Context, bookingID string) (reservations.Payment, error)
	UpdatePayment(ctx context.Context, p reservations.Payment) error
	ListRefundablePayments(ctx context.Context, limit int) ([]reservations.Payment, error)
}

type Machine struct {
	repo       Repository
	clock      clock.Clock
	gateways   *payments.Registry
	configs    reservations.ServiceConfigSource
	cascade    reservations.BookingHooks
	dispatcher *reservations.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Machine)

// WithDispatcher attaches the fire-and-forget listeners that hear about a
// transition after it committed.
func WithDispatcher(d *reservations.Dispatcher) Option {
	return func(m *Machine) { m.dispatcher = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// NewMachine wires the state machine. cascade runs inside every transition's
// transaction; its failure fails the transition.
func NewMachine(repo Repository, clk clock.Clock, gateways *payments.Registry, configs reservations.ServiceConfigSource, cascade reservations.BookingHooks, opts ...Option) *Machine {
	m := &Machine{
		repo:     repo,
		clock:    clk,
		gateways: gateways,
		configs:  configs,
		cascade:  cascade,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ConfirmInput struct {
	HoldID  string
	Payment reservations.PaymentIntent
}

// Confirm turns an ACTIVE hold into a CONFIRMED booking paid through the
// intent's provider.
//
// The provider is charged before the transaction opens so no lock is held
// across a network call. Under the property lock the hold is read again: its
// dates must still be the ones that were charged for, and the conditional
// ACTIVE -> CONSUMED update decides freshness. The booking is built from that
// second read. If anything inside the transaction fails the charge is
// refunded.
func (m *Machine) Confirm(ctx context.Context, in ConfirmInput) (b reservations.Booking, err error) {
	defer func() { m.metrics.BookingOp("confirm", err) }()

	hold, err := m.repo.GetHold(ctx, in.HoldID)
	if err != nil {
		return reservations.Booking{}, err
	}
	if st := hold.EffectiveStatus(m.clock.Now()); st != reservations.HoldActive {
		return reservations.Booking{}, fmt.Errorf("confirm hold %s: %w", hold.ID, reservations.HoldStatusError(st))
	}

	intent := in.Payment
	if intent.Provider == "" {
		intent.Provider = reservations.ProviderManual
	}
	intent.Currency = strings.ToUpper(strings.TrimSpace(intent.Currency))
	gw, err := m.gateways.Get(intent.Provider)
	if err != nil {
		return reservations.Booking{}, err
	}
	cfg, err := m.configs.ServiceConfig(ctx, hold.PropertyID)
	if err != nil {
		return reservations.Booking{}, fmt.Errorf("service config for %s: %w", hold.PropertyID, err)
	}

	bookingID := uuid.NewString()
	req := payments.Request{
		Key:         attemptKey(intent.Reference, bookingID),
		BookingID:   bookingID,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
	}
	charge, err := gw.AuthorizeAndCapture(ctx, req)
	if err != nil {
		return reservations.Booking{}, fmt.Errorf("%w: %v", reservations.ErrPaymentFailed, err)
	}
	if charge.Status != reservations.PaymentCaptured {
		return reservations.Booking{}, fmt.Errorf("%w: provider left payment %s", reservations.ErrPaymentFailed, charge.Status)
	}

	var ev reservations.BookingConfirmed
	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := m.repo.LockProperty(txCtx, hold.PropertyID); err != nil {
			return fmt.Errorf("lock property: %w", err)
		}
		now := m.clock.Now()
		cur, err := m.repo.GetHold(txCtx, hold.ID)
		if err != nil {
			return err
		}
		if cur.PropertyID != hold.PropertyID || !cur.Interval.Equal(hold.Interval) {
			return fmt.Errorf("confirm hold %s (%s, charged for %s): %w", hold.ID, cur.Interval, hold.Interval, reservations.ErrHoldChanged)
		}
		ok, err := m.repo.UpdateHoldStatus(txCtx, hold.ID, reservations.HoldActive, reservations.HoldConsumed, now)
		if err != nil {
			return err
		}
		if !ok {
			cur, err = m.repo.GetHold(txCtx, hold.ID)
			if err != nil {
				return err
			}
			if lost := reservations.HoldStatusError(cur.EffectiveStatus(now)); lost != nil {
				return fmt.Errorf("confirm hold %s: %w", hold.ID, lost)
			}
			return fmt.Errorf("confirm hold %s: %w", hold.ID, reservations.ErrAlreadyTerminal)
		}

		holdID := cur.ID
		confirmedAt := now
		b = reservations.Booking{
			ID:          bookingID,
			PropertyID:  cur.PropertyID,
			Interval:    cur.Interval,
			HoldID:      &holdID,
			Status:      reservations.BookingStatusConfirmed,
			PaymentRef:  charge.ProviderRef,
			CreatedAt:   now,
			UpdatedAt:   now,
			ConfirmedAt: &confirmedAt,
		}
		if err := m.repo.CreateBooking(txCtx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		p := reservations.Payment{
			ID:          uuid.NewString(),
			BookingID:   bookingID,
			Provider:    intent.Provider,
			ProviderRef: charge.ProviderRef,
			Reference:   req.Key,
			Status:      reservations.PaymentCaptured,
			AmountCents: intent.AmountCents,
			Currency:    intent.Currency,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := m.repo.CreatePayment(txCtx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		ev = reservations.BookingConfirmed{Booking: b, Payment: p, ServiceConfig: cfg, ServicePlan: cfg.Plan}
		if err := m.cascade.OnBookingConfirmed(txCtx, ev); err != nil {
			return fmt.Errorf("ops task cascade: %w", err)
		}
		return nil
	})
	if err != nil {
		m.compensate(ctx, gw, req, charge, err)
		return reservations.Booking{}, err
	}

	m.logger.Info("booking confirmed",
		slog.String("booking_id", b.ID),
		slog.String("hold_id", hold.ID),
		slog.String("property_id", b.PropertyID),
		slog.String("payment_ref", b.PaymentRef),
	)
	m.dispatcher.Confirmed(ctx, ev)
	return b, nil
}

// attemptKey is the idempotency key sent to the provider. It is unique per
// confirmation attempt, so concurrent confirms paying with the same customer
// reference never share a provider charge.
func attemptKey(reference, bookingID string) string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ""
	}
	return reference + "." + bookingID
}

// compensate gives the money back after a charge whose booking never committed.
func (m *Machine) compensate(ctx context.Context, gw payments.Gateway, req payments.Request, charge payments.Result, cause error) {
	req.ProviderRef = charge.ProviderRef
	_, err := gw.Refund(context.WithoutCancel(ctx), req)
	m.metrics.Refund(gw.Provider(), err)
	if err != nil {
		m.logger.Error("compensating refund failed",
			slog.String("booking_id", req.BookingID),
			slog.String("provider_ref", charge.ProviderRef),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Warn("confirmation rolled back, charge refunded",
		slog.String("booking_id", req.BookingID),
		slog.String("cause", cause.Error()),
	)
}

type CancelInput struct {
	BookingID string
	Reason    string
}

// CancelResult reports a committed cancellation. RefundErr is set when the
// refund failed; the booking stays cancelled and the refund is retried out
// of band.
type CancelResult struct {
	Booking   reservations.Booking
	Payment   *reservations.Payment
	Refund    *reservations.RefundOutcome
	RefundErr error
}

func (m *Machine) Cancel(ctx context.Context, in CancelInput) (res CancelResult, err error) {
	defer func() { m.metrics.BookingOp("cancel", err) }()

	reason := strings.TrimSpace(in.Reason)
	var b reservations.Booking
	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := m.repo.GetBookingForUpdate(txCtx, in.BookingID)
		if err != nil {
			return err
		}
		if cur.Status == reservations.BookingStatusCancelled {
			return fmt.Errorf("cancel booking %s: %w", cur.ID, reservations.ErrAlreadyCancelled)
		}
		if !cur.Status.CanTransition(reservations.BookingStatusCancelled) {
			return fmt.Errorf("%w: booking %s -> %s", reservations.ErrInvalidTransition, cur.Status, reservations.BookingStatusCancelled)
		}
		now := m.clock.Now()
		cancelledAt := now
		cur.Status = reservations.BookingStatusCancelled
		cur.CancelledAt = &cancelledAt
		cur.CancelReason = reason
		cur.UpdatedAt = now
		if err := m.repo.UpdateBooking(txCtx, cur); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if err := m.cascade.OnBookingCancelled(txCtx, reservations.BookingCancelled{Booking: cur, Reason: reason}); err != nil {
			return fmt.Errorf("ops task cascade: %w", err)
		}
		b = cur
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	res.Booking = b
	m.logger.Info("booking cancelled", slog.String("booking_id", b.ID), slog.String("reason", reason))

	p, err := m.repo.GetPaymentByBooking(ctx, b.ID)
	switch {
	case errors.Is(err, reservations.ErrPaymentNotFound):
	case err != nil:
		res.RefundErr = fmt.Errorf("load payment: %w", err)
	default:
		res.Payment = &p
		if p.Status == reservations.PaymentCaptured {
			refunded, outcome, rerr := m.refund(ctx, p)
			res.Payment = &refunded
			res.Refund = outcome
			res.RefundErr = rerr
		}
	}
	if res.RefundErr != nil && res.Refund == nil {
		pid := ""
		if res.Payment != nil {
			pid = res.Payment.ID
		}
		res.Refund = &reservations.RefundOutcome{PaymentID: pid, Status: reservations.RefundFailed, Error: res.RefundErr.Error()}
	}
	if res.RefundErr != nil {
		m.logger.Warn("refund after cancellation failed",
			slog.String("booking_id", b.ID),
			slog.String("error", res.RefundErr.Error()),
		)
	}

	m.dispatcher.Cancelled(ctx, reservations.BookingCancelled{Booking: b, Reason: reason, Refund: res.Refund})
	return res, nil
}

// refund returns p as stored afterwards. A refund that raced another one and
// lost is reported as succeeded.
func (m *Machine) refund(ctx context.Context, p reservations.Payment) (reservations.Payment, *reservations.RefundOutcome, error) {
	gw, err := m.gateways.Get(p.Provider)
	if err != nil {
		return p, &reservations.RefundOutcome{PaymentID: p.ID, Status: reservations.RefundFailed, Error: err.Error()}, err
	}
	res, err := gw.Refund(ctx, payments.Request{
		Key:         p.Reference,
		BookingID:   p.BookingID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		ProviderRef: p.ProviderRef,
	})
	m.metrics.Refund(p.Provider, err)
	if err != nil {
		err = fmt.Errorf("refund payment %s: %w", p.ID, err)
		return p, &reservations.RefundOutcome{PaymentID: p.ID, Status: reservations.RefundFailed, Error: err.Error()}, err
	}

	out := p
	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := m.repo.GetPaymentByBooking(txCtx, p.BookingID)
		if err != nil {
			return err
		}
		if cur.Status == reservations.PaymentRefunded {
			out = cur
			return nil
		}
		if !cur.Status.CanTransition(reservations.PaymentRefunded) {
			return fmt.Errorf("%w: payment %s -> %s", reservations.ErrInvalidTransition, cur.Status, reservations.PaymentRefunded)
		}
		cur.Status = reservations.PaymentRefunded
		cur.ProviderRef = res.ProviderRef
		cur.UpdatedAt = m.clock.Now()
		out = cur
		return m.repo.UpdatePayment(txCtx, cur)
	})
	if err != nil {
		// the provider refunded; only our record is behind
		err = fmt.Errorf("record refund of payment %s (provider ref %s): %w", p.ID, res.ProviderRef, err)
		return p, &reservations.RefundOutcome{PaymentID: p.ID, Status: reservations.RefundFailed, Error: err.Error()}, err
	}
	return out, &reservations.RefundOutcome{PaymentID: p.ID, Status: reservations.RefundSucceeded}, nil
}

// RetryRefund refunds the captured payment of a cancelled booking. It is safe
// to call again after success.
func (m *Machine) RetryRefund(ctx context.Context, bookingID string) (reservations.Payment, error) {
	b, err := m.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return reservations.Payment{}, err
	}
	if b.Status != reservations.BookingStatusCancelled {
		return reservations.Payment{}, fmt.Errorf("%w: booking %s is %s, not cancelled", reservations.ErrInvalidTransition, b.ID, b.Status)
	}
	p, err := m.repo.GetPaymentByBooking(ctx, bookingID)
	if err != nil {
		return reservations.Payment{}, err
	}
	switch p.Status {
	case reservations.PaymentRefunded:
		return p, nil
	case reservations.PaymentCaptured:
	default:
		return p, fmt.Errorf("%w: payment %s is %s", reservations.ErrInvalidTransition, p.ID, p.Status)
	}

	refunded, _, err := m.refund(ctx, p)
	if err != nil {
		return p, fmt.Errorf("%w: %v", reservations.ErrPaymentFailed, err)
	}
	m.logger.Info("refund retried", slog.String("booking_id", bookingID), slog.String("payment_id", p.ID))
	return refunded, nil
}

// RetryPendingRefunds walks cancelled bookings whose payment is still
// captured. It returns how many it refunded and every failure joined.
func (m *Machine) RetryPendingRefunds(ctx context.Context, limit int) (int, error) {
	pending, err := m.repo.ListRefundablePayments(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list refundable payments: %w", err)
	}
	var (
		done int
		errs []error
	)
	for _, p := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := m.RetryRefund(ctx, p.BookingID); err != nil {
			errs = append(errs, fmt.Errorf("booking %s: %w", p.BookingID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (m *Machine) Get(ctx context.Context, id string) (reservations.Booking, error) {
	return m.repo.GetBooking(ctx, id)
}

func (m *Machine) Payment(ctx context.Context, bookingID string) (reservations.Payment, error) {
	if _, err := m.repo.GetBooking(ctx, bookingID); err != nil {
		return reservations.Payment{}, err
	}
	return m.repo.GetPaymentByBooking(ctx, bookingID)
}
