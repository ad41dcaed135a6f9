package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// BookingStatus is the cached read model served by GET /bookings/{id}/status.
type BookingStatus struct {
	BookingID    string                     `json:"booking_id"`
	Status       reservations.BookingStatus `json:"status"`
	RefundStatus reservations.RefundStatus  `json:"refund_status,omitempty"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// StatusCache keeps booking_status:{id} fresh. It is registered as a
// dispatcher listener, so a redis outage only costs cache hits.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ reservations.BookingHooks = (*StatusCache)(nil)

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: TTLStatusCache}
}

func (c *StatusCache) OnBookingConfirmed(ctx context.Context, ev reservations.BookingConfirmed) error {
	return c.Put(ctx, BookingStatus{
		BookingID: ev.Booking.ID,
		Status:    ev.Booking.Status,
		UpdatedAt: ev.Booking.UpdatedAt,
	})
}

func (c *StatusCache) OnBookingCancelled(ctx context.Context, ev reservations.BookingCancelled) error {
	st := BookingStatus{BookingID: ev.Booking.ID, Status: ev.Booking.Status, UpdatedAt: ev.Booking.UpdatedAt}
	if ev.Refund != nil {
		st.RefundStatus = ev.Refund.Status
	}
	return c.Put(ctx, st)
}

// Put overwrites; only committed transitions call it.
func (c *StatusCache) Put(ctx context.Context, st BookingStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyBookingStatus, st.BookingID), b, c.ttl).Err()
}

// PutIfAbsent is the read-through refill. A value read from the store may be
// older than one a transition wrote meanwhile, so it never replaces an entry.
func (c *StatusCache) PutIfAbsent(ctx context.Context, st BookingStatus) (bool, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return false, err
	}
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyBookingStatus, st.BookingID), b, c.ttl).Result()
}

// Get reports ok=false on a cache miss.
func (c *StatusCache) Get(ctx context.Context, bookingID string) (BookingStatus, bool, error) {
	var st BookingStatus
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyBookingStatus, bookingID)).Result()
	if errors.Is(err, redis.Nil) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return st, false, fmt.Errorf("decode cached status: %w", err)
	}
	return st, true, nil
}

// Invalidate drops the entry so the next read refills from the store. The
// refund worker calls it after settling a refund out of band.
func (c *StatusCache) Invalidate(ctx context.Context, bookingID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyBookingStatus, bookingID)).Err()
}
