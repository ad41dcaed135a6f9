package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func (s *Store) CreateHold(ctx context.Context, h reservations.Hold) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketHolds).Get([]byte(h.ID)) != nil {
			return fmt.Errorf("create hold: id %s already exists", h.ID)
		}
		if err := put(tx, bucketHolds, h.ID, h); err != nil {
			return err
		}
		return tx.Bucket(bucketHoldsByProperty).Put(indexKey(h.PropertyID, h.ID), nil)
	})
}

func (s *Store) GetHold(ctx context.Context, id string) (reservations.Hold, error) {
	var h reservations.Hold
	err := s.view(ctx, func(tx *bolt.Tx) error {
		ok, err := get(tx, bucketHolds, id, &h)
		if err != nil {
			return err
		}
		if !ok {
			return reservations.ErrHoldNotFound
		}
		return nil
	})
	return h, err
}

// UpdateHoldStatus moves the hold from -> to and reports whether it did. A
// move out of ACTIVE only happens while the hold has not yet expired at now.
func (s *Store) UpdateHoldStatus(ctx context.Context, id string, from, to reservations.HoldStatus, now time.Time) (bool, error) {
	var changed bool
	err := s.update(ctx, func(tx *bolt.Tx) error {
		var h reservations.Hold
		ok, err := get(tx, bucketHolds, id, &h)
		if err != nil {
			return err
		}
		if !ok {
			return reservations.ErrHoldNotFound
		}
		if h.Status != from {
			return nil
		}
		if from == reservations.HoldActive && !now.Before(h.ExpiresAt) {
			return nil
		}
		h.Status = to
		closed := now
		h.ClosedAt = &closed
		changed = true
		return put(tx, bucketHolds, id, h)
	})
	return changed, err
}

func (s *Store) UpdateHoldWindow(ctx context.Context, id string, iv reservations.Interval, expiresAt time.Time) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		var h reservations.Hold
		ok, err := get(tx, bucketHolds, id, &h)
		if err != nil {
			return err
		}
		if !ok {
			return reservations.ErrHoldNotFound
		}
		h.Interval = iv
		h.ExpiresAt = expiresAt
		return put(tx, bucketHolds, id, h)
	})
}

func (s *Store) ActiveHoldsOverlapping(ctx context.Context, propertyID string, iv reservations.Interval, now time.Time) ([]reservations.Hold, error) {
	var out []reservations.Hold
	err := s.view(ctx, func(tx *bolt.Tx) error {
		return scanIndex(tx, bucketHoldsByProperty, propertyID, func(id string, _ []byte) error {
			var h reservations.Hold
			if _, err := get(tx, bucketHolds, id, &h); err != nil {
				return err
			}
			if h.Status == reservations.HoldActive && h.ExpiresAt.After(now) && h.Interval.Overlaps(iv) {
				out = append(out, h)
			}
			return nil
		})
	})
	return out, err
}

// ExpireHolds persists ACTIVE -> EXPIRED for at most limit holds already past
// their deadline, oldest deadline first.
func (s *Store) ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	var n int
	err := s.update(ctx, func(tx *bolt.Tx) error {
		var due []reservations.Hold
		err := tx.Bucket(bucketHolds).ForEach(func(_, v []byte) error {
			var h reservations.Hold
			if err := json.Unmarshal(v, &h); err != nil {
				return err
			}
			if h.Status == reservations.HoldActive && !now.Before(h.ExpiresAt) {
				due = append(due, h)
			}
			return nil
		})
		if err != nil {
			return err
		}
		sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		for _, h := range due {
			h.Status = reservations.HoldExpired
			closed := now
			h.ClosedAt = &closed
			if err := put(tx, bucketHolds, h.ID, h); err != nil {
				return err
			}
		}
		n = len(due)
		return nil
	})
	return n, err
}
