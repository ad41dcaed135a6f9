package boltstore

import (
	"context"
	"fmt"
	"sort"

	bolt "github.com/boltdb/bolt"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// CreateBooking refuses a second booking for one hold and a confirmed booking
// overlapping another confirmed booking or some other live hold.
func (s *Store) CreateBooking(ctx context.Context, b reservations.Booking) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketBookings).Get([]byte(b.ID)) != nil {
			return fmt.Errorf("create booking: id %s already exists", b.ID)
		}
		if b.HoldID != nil && tx.Bucket(bucketBookingsByHold).Get([]byte(*b.HoldID)) != nil {
			return reservations.ErrHoldAlreadyConsumed
		}
		if b.Status == reservations.BookingStatusConfirmed {
			clash, err := bookingsOverlapping(tx, b.PropertyID, b.Interval, reservations.BookingStatusConfirmed)
			if err != nil {
				return err
			}
			entries := make([]reservations.Entry, 0, len(clash))
			for _, c := range clash {
				entries = append(entries, reservations.BookingEntry(c))
			}
			held, err := liveHoldsOverlapping(tx, b)
			if err != nil {
				return err
			}
			for _, h := range held {
				entries = append(entries, reservations.HoldEntry(h))
			}
			if len(entries) > 0 {
				return &reservations.ConflictError{PropertyID: b.PropertyID, Interval: b.Interval, Entries: entries}
			}
		}
		if err := put(tx, bucketBookings, b.ID, b); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBookingsByProperty).Put(indexKey(b.PropertyID, b.ID), nil); err != nil {
			return err
		}
		if b.HoldID != nil {
			return tx.Bucket(bucketBookingsByHold).Put([]byte(*b.HoldID), []byte(b.ID))
		}
		return nil
	})
}

func (s *Store) GetBooking(ctx context.Context, id string) (reservations.Booking, error) {
	var b reservations.Booking
	err := s.view(ctx, func(tx *bolt.Tx) error {
		ok, err := get(tx, bucketBookings, id, &b)
		if err != nil {
			return err
		}
		if !ok {
			return reservations.ErrBookingNotFound
		}
		return nil
	})
	return b, err
}

// GetBookingForUpdate must run inside WithTx; the writer lock is the row lock.
func (s *Store) GetBookingForUpdate(ctx context.Context, id string) (reservations.Booking, error) {
	if txFromContext(ctx) == nil {
		return reservations.Booking{}, fmt.Errorf("get booking for update: no transaction")
	}
	return s.GetBooking(ctx, id)
}

func (s *Store) UpdateBooking(ctx context.Context, b reservations.Booking) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketBookings).Get([]byte(b.ID)) == nil {
			return reservations.ErrBookingNotFound
		}
		return put(tx, bucketBookings, b.ID, b)
	})
}

// BookingsOverlapping filters by status unless status is empty.
func (s *Store) BookingsOverlapping(ctx context.Context, propertyID string, iv reservations.Interval, status reservations.BookingStatus) ([]reservations.Booking, error) {
	var out []reservations.Booking
	err := s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		out, err = bookingsOverlapping(tx, propertyID, iv, status)
		return err
	})
	return out, err
}

func bookingsOverlapping(tx *bolt.Tx, propertyID string, iv reservations.Interval, status reservations.BookingStatus) ([]reservations.Booking, error) {
	var out []reservations.Booking
	err := scanIndex(tx, bucketBookingsByProperty, propertyID, func(id string, _ []byte) error {
		var b reservations.Booking
		if _, err := get(tx, bucketBookings, id, &b); err != nil {
			return err
		}
		if status != "" && b.Status != status {
			return nil
		}
		if b.Interval.Overlaps(iv) {
			out = append(out, b)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.CheckIn.Before(out[j].Interval.CheckIn) })
	return out, err
}

// liveHoldsOverlapping returns ACTIVE holds other than b's own that are still
// running at b.CreatedAt and overlap b.
func liveHoldsOverlapping(tx *bolt.Tx, b reservations.Booking) ([]reservations.Hold, error) {
	var out []reservations.Hold
	err := scanIndex(tx, bucketHoldsByProperty, b.PropertyID, func(id string, _ []byte) error {
		if b.HoldID != nil && id == *b.HoldID {
			return nil
		}
		var h reservations.Hold
		if _, err := get(tx, bucketHolds, id, &h); err != nil {
			return err
		}
		if h.EffectiveStatus(b.CreatedAt) == reservations.HoldActive && h.Interval.Overlaps(b.Interval) {
			out = append(out, h)
		}
		return nil
	})
	return out, err
}
