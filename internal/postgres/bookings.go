package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const bookingColumns = `id::text, property_id, check_in, check_out, hold_id::text, status, payment_ref, cancel_reason,
	created_at, updated_at, confirmed_at, cancelled_at`

func scanBooking(row pgx.Row) (reservations.Booking, error) {
	var b reservations.Booking
	err := row.Scan(&b.ID, &b.PropertyID, &b.Interval.CheckIn, &b.Interval.CheckOut, &b.HoldID, &b.Status,
		&b.PaymentRef, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt)
	return b, err
}

// CreateBooking maps the storage backstops onto domain errors: a second
// booking for one hold, an overlapping confirmed booking, and a live hold
// other than the booking's own on the same dates. The hold check relies on
// the caller holding the property lock.
func (s *Store) CreateBooking(ctx context.Context, b reservations.Booking) error {
	if b.Status == reservations.BookingStatusConfirmed {
		if err := s.checkLiveHolds(ctx, b); err != nil {
			return err
		}
	}

	const stmt = `
INSERT INTO bookings (id, property_id, check_in, check_out, hold_id, status, payment_ref, cancel_reason,
	created_at, updated_at, confirmed_at, cancelled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.exec(ctx, stmt, b.ID, b.PropertyID, b.Interval.CheckIn, b.Interval.CheckOut, b.HoldID, b.Status,
		b.PaymentRef, b.CancelReason, b.CreatedAt, b.UpdatedAt, b.ConfirmedAt, b.CancelledAt)
	if err != nil {
		switch {
		case isUniqueViolation(err) && constraintName(err) == "bookings_hold_id_key":
			return reservations.ErrHoldAlreadyConsumed
		case isExclusionViolation(err):
			return &reservations.ConflictError{PropertyID: b.PropertyID, Interval: b.Interval}
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (s *Store) checkLiveHolds(ctx context.Context, b reservations.Booking) error {
	const q = `
SELECT ` + holdColumns + `
FROM holds
WHERE property_id = $1 AND status = 'ACTIVE' AND expires_at > $4
  AND check_in < $3 AND $2 < check_out
  AND ($5::text IS NULL OR id::text <> $5::text)
ORDER BY check_in`

	rows, err := s.query(ctx, q, b.PropertyID, b.Interval.CheckIn, b.Interval.CheckOut, b.CreatedAt, b.HoldID)
	if err != nil {
		return fmt.Errorf("check live holds: %w", err)
	}
	defer rows.Close()
	var entries []reservations.Entry
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return fmt.Errorf("scan hold: %w", err)
		}
		entries = append(entries, reservations.HoldEntry(h))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("check live holds: %w", err)
	}
	if len(entries) > 0 {
		return &reservations.ConflictError{PropertyID: b.PropertyID, Interval: b.Interval, Entries: entries}
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (reservations.Booking, error) {
	return s.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (s *Store) GetBookingForUpdate(ctx context.Context, id string) (reservations.Booking, error) {
	return s.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (s *Store) getBooking(ctx context.Context, q, id string) (reservations.Booking, error) {
	b, err := scanBooking(s.queryRow(ctx, q, id))
	if err != nil {
		if isInvalidUUID(err) || errors.Is(err, pgx.ErrNoRows) {
			return reservations.Booking{}, reservations.ErrBookingNotFound
		}
		return reservations.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *Store) UpdateBooking(ctx context.Context, b reservations.Booking) error {
	const stmt = `
UPDATE bookings
SET status = $2, payment_ref = $3, cancel_reason = $4, updated_at = $5, confirmed_at = $6, cancelled_at = $7
WHERE id = $1`

	tag, err := s.exec(ctx, stmt, b.ID, b.Status, b.PaymentRef, b.CancelReason, b.UpdatedAt, b.ConfirmedAt, b.CancelledAt)
	if err != nil {
		if isInvalidUUID(err) {
			return reservations.ErrBookingNotFound
		}
		if isExclusionViolation(err) {
			return &reservations.ConflictError{PropertyID: b.PropertyID, Interval: b.Interval}
		}
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reservations.ErrBookingNotFound
	}
	return nil
}

// BookingsOverlapping filters by status unless status is empty.
func (s *Store) BookingsOverlapping(ctx context.Context, propertyID string, iv reservations.Interval, status reservations.BookingStatus) ([]reservations.Booking, error) {
	const q = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE property_id = $1 AND check_in < $3 AND $2 < check_out
  AND ($4::text = '' OR status = $4::text)
ORDER BY check_in`

	rows, err := s.query(ctx, q, propertyID, iv.CheckIn, iv.CheckOut, status)
	if err != nil {
		return nil, fmt.Errorf("bookings overlapping: %w", err)
	}
	defer rows.Close()
	var out []reservations.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
