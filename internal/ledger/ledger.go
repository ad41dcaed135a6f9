// Package ledger answers which holds and bookings occupy a property's dates.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// Store is the read side the ledger needs. Both methods join a transaction
// carried in ctx.
type Store interface {
	// ActiveHoldsOverlapping returns holds stored as ACTIVE with expires_at > now.
	ActiveHoldsOverlapping(ctx context.Context, propertyID string, iv reservations.Interval, now time.Time) ([]reservations.Hold, error)
	BookingsOverlapping(ctx context.Context, propertyID string, iv reservations.Interval, status reservations.BookingStatus) ([]reservations.Booking, error)
}

type Ledger struct {
	store Store
	clock clock.Clock
}

func New(store Store, clk clock.Clock) *Ledger {
	return &Ledger{store: store, clock: clk}
}

// QueryConflicts lists every effectively active hold and confirmed booking of
// the property overlapping iv, leaving out excludeID.
func (l *Ledger) QueryConflicts(ctx context.Context, propertyID string, iv reservations.Interval, excludeID string) ([]reservations.Entry, error) {
	now := l.clock.Now()

	holds, err := l.store.ActiveHoldsOverlapping(ctx, propertyID, iv, now)
	if err != nil {
		return nil, fmt.Errorf("overlapping holds: %w", err)
	}
	bookings, err := l.store.BookingsOverlapping(ctx, propertyID, iv, reservations.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("overlapping bookings: %w", err)
	}

	out := make([]reservations.Entry, 0, len(holds)+len(bookings))
	for _, h := range holds {
		if h.ID == excludeID || h.EffectiveStatus(now) != reservations.HoldActive || !h.Interval.Overlaps(iv) {
			continue
		}
		out = append(out, reservations.HoldEntry(h))
	}
	for _, b := range bookings {
		if b.ID == excludeID || b.Status != reservations.BookingStatusConfirmed || !b.Interval.Overlaps(iv) {
			continue
		}
		out = append(out, reservations.BookingEntry(b))
	}
	sortEntries(out)
	return out, nil
}

// Committed lists confirmed bookings overlapping iv.
func (l *Ledger) Committed(ctx context.Context, propertyID string, iv reservations.Interval) ([]reservations.Entry, error) {
	bookings, err := l.store.BookingsOverlapping(ctx, propertyID, iv, reservations.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("overlapping bookings: %w", err)
	}
	out := make([]reservations.Entry, 0, len(bookings))
	for _, b := range bookings {
		if b.Interval.Overlaps(iv) {
			out = append(out, reservations.BookingEntry(b))
		}
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(es []reservations.Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		if !es[i].Interval.CheckIn.Equal(es[j].Interval.CheckIn) {
			return es[i].Interval.CheckIn.Before(es[j].Interval.CheckIn)
		}
		return es[i].ID < es[j].ID
	})
}
