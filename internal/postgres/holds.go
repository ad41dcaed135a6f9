package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const holdColumns = `id::text, property_id, check_in, check_out, status, created_at, expires_at, closed_at`

func scanHold(row pgx.Row) (reservations.Hold, error) {
	var h reservations.Hold
	err := row.Scan(&h.ID, &h.PropertyID, &h.Interval.CheckIn, &h.Interval.CheckOut, &h.Status, &h.CreatedAt, &h.ExpiresAt, &h.ClosedAt)
	return h, err
}

func (s *Store) CreateHold(ctx context.Context, h reservations.Hold) error {
	const stmt = `
INSERT INTO holds (id, property_id, check_in, check_out, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.exec(ctx, stmt, h.ID, h.PropertyID, h.Interval.CheckIn, h.Interval.CheckOut, h.Status, h.CreatedAt, h.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create hold: %w", err)
	}
	return nil
}

func (s *Store) GetHold(ctx context.Context, id string) (reservations.Hold, error) {
	h, err := scanHold(s.queryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, id))
	if err != nil {
		if isInvalidUUID(err) || errors.Is(err, pgx.ErrNoRows) {
			return reservations.Hold{}, reservations.ErrHoldNotFound
		}
		return reservations.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

// UpdateHoldStatus is the conditional write freshness checks rely on: a hold
// leaves ACTIVE only while expires_at is still ahead of now.
func (s *Store) UpdateHoldStatus(ctx context.Context, id string, from, to reservations.HoldStatus, now time.Time) (bool, error) {
	const stmt = `
UPDATE holds SET status = $3, closed_at = $4
WHERE id = $1 AND status = $2::text AND ($2::text <> 'ACTIVE' OR expires_at > $4)`

	tag, err := s.exec(ctx, stmt, id, from, to, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, reservations.ErrHoldNotFound
		}
		return false, fmt.Errorf("update hold status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.GetHold(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) UpdateHoldWindow(ctx context.Context, id string, iv reservations.Interval, expiresAt time.Time) error {
	tag, err := s.exec(ctx, `UPDATE holds SET check_in = $2, check_out = $3, expires_at = $4 WHERE id = $1`,
		id, iv.CheckIn, iv.CheckOut, expiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return reservations.ErrHoldNotFound
		}
		return fmt.Errorf("update hold window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reservations.ErrHoldNotFound
	}
	return nil
}

func (s *Store) ActiveHoldsOverlapping(ctx context.Context, propertyID string, iv reservations.Interval, now time.Time) ([]reservations.Hold, error) {
	const q = `
SELECT ` + holdColumns + `
FROM holds
WHERE property_id = $1 AND status = 'ACTIVE' AND expires_at > $4
  AND check_in < $3 AND $2 < check_out
ORDER BY check_in`

	rows, err := s.query(ctx, q, propertyID, iv.CheckIn, iv.CheckOut, now)
	if err != nil {
		return nil, fmt.Errorf("active holds overlapping: %w", err)
	}
	defer rows.Close()
	var out []reservations.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ExpireHolds skips rows another transaction holds, so it never waits on a
// confirm or release in flight.
func (s *Store) ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 1000
	}
	const stmt = `
WITH due AS (
	SELECT id FROM holds
	WHERE status = 'ACTIVE' AND expires_at <= $1
	ORDER BY expires_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE holds h SET status = 'EXPIRED', closed_at = $1
FROM due
WHERE h.id = due.id AND h.status = 'ACTIVE'`

	tag, err := s.exec(ctx, stmt, now, limit)
	if err != nil {
		return 0, fmt.Errorf("expire holds: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
