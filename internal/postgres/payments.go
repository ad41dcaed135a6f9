package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const paymentColumns = `id::text, booking_id::text, provider, provider_ref, reference, status, amount_cents, currency, created_at, updated_at`

func scanPayment(row pgx.Row) (reservations.Payment, error) {
	var p reservations.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.Provider, &p.ProviderRef, &p.Reference, &p.Status,
		&p.AmountCents, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreatePayment(ctx context.Context, p reservations.Payment) error {
	const stmt = `
INSERT INTO payments (id, booking_id, provider, provider_ref, reference, status, amount_cents, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.exec(ctx, stmt, p.ID, p.BookingID, p.Provider, p.ProviderRef, p.Reference, p.Status,
		p.AmountCents, p.Currency, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create payment: booking %s already has a payment", p.BookingID)
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPaymentByBooking(ctx context.Context, bookingID string) (reservations.Payment, error) {
	p, err := scanPayment(s.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1`, bookingID))
	if err != nil {
		if isInvalidUUID(err) || errors.Is(err, pgx.ErrNoRows) {
			return reservations.Payment{}, reservations.ErrPaymentNotFound
		}
		return reservations.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p reservations.Payment) error {
	tag, err := s.exec(ctx, `UPDATE payments SET status = $2, provider_ref = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Status, p.ProviderRef, p.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return reservations.ErrPaymentNotFound
		}
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reservations.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListRefundablePayments(ctx context.Context, limit int) ([]reservations.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT p.id::text, p.booking_id::text, p.provider, p.provider_ref, p.reference, p.status, p.amount_cents, p.currency, p.created_at, p.updated_at
FROM payments p
JOIN bookings b ON b.id = p.booking_id
WHERE p.status = 'CAPTURED' AND b.status = 'CANCELLED'
ORDER BY p.updated_at
LIMIT $1`

	rows, err := s.query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list refundable payments: %w", err)
	}
	defer rows.Close()
	var out []reservations.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
