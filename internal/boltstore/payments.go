package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "github.com/boltdb/bolt"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func (s *Store) CreatePayment(ctx context.Context, p reservations.Payment) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPaymentsByBooking).Get([]byte(p.BookingID)) != nil {
			return fmt.Errorf("create payment: booking %s already has a payment", p.BookingID)
		}
		if err := put(tx, bucketPayments, p.ID, p); err != nil {
			return err
		}
		return tx.Bucket(bucketPaymentsByBooking).Put([]byte(p.BookingID), []byte(p.ID))
	})
}

func (s *Store) GetPaymentByBooking(ctx context.Context, bookingID string) (reservations.Payment, error) {
	var p reservations.Payment
	err := s.view(ctx, func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketPaymentsByBooking).Get([]byte(bookingID))
		if id == nil {
			return reservations.ErrPaymentNotFound
		}
		ok, err := get(tx, bucketPayments, string(id), &p)
		if err != nil {
			return err
		}
		if !ok {
			return reservations.ErrPaymentNotFound
		}
		return nil
	})
	return p, err
}

func (s *Store) UpdatePayment(ctx context.Context, p reservations.Payment) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPayments).Get([]byte(p.ID)) == nil {
			return reservations.ErrPaymentNotFound
		}
		return put(tx, bucketPayments, p.ID, p)
	})
}

// ListRefundablePayments returns captured payments whose booking was
// cancelled, least recently touched first.
func (s *Store) ListRefundablePayments(ctx context.Context, limit int) ([]reservations.Payment, error) {
	var out []reservations.Payment
	err := s.view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPayments).ForEach(func(_, v []byte) error {
			var p reservations.Payment
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.Status != reservations.PaymentCaptured {
				return nil
			}
			var b reservations.Booking
			ok, err := get(tx, bucketBookings, p.BookingID, &b)
			if err != nil {
				return err
			}
			if ok && b.Status == reservations.BookingStatusCancelled {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
