package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-reservations/internal/boltstore"
	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func TestQueryConflicts(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)

	store, err := boltstore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateHold(ctx, reservations.Hold{
		ID: "h1", PropertyID: "p1", Interval: reservations.MustInterval("2025-01-01", "2025-01-05"),
		Status: reservations.HoldActive, CreatedAt: start, ExpiresAt: start.Add(600 * time.Second),
	}))
	require.NoError(t, store.CreateBooking(ctx, reservations.Booking{
		ID: "b1", PropertyID: "p1", Interval: reservations.MustInterval("2025-01-10", "2025-01-12"),
		Status: reservations.BookingStatusConfirmed,
	}))
	require.NoError(t, store.CreateBooking(ctx, reservations.Booking{
		ID: "b2", PropertyID: "p1", Interval: reservations.MustInterval("2025-01-03", "2025-01-04"),
		Status: reservations.BookingStatusCancelled,
	}))

	l := New(store, clk)

	t.Run("back to back is free", func(t *testing.T) {
		got, err := l.QueryConflicts(ctx, "p1", reservations.MustInterval("2025-01-05", "2025-01-10"), "")
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("overlap reports hold and booking in date order", func(t *testing.T) {
		got, err := l.QueryConflicts(ctx, "p1", reservations.MustInterval("2025-01-04", "2025-01-11"), "")
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, reservations.EntryHold, got[0].Kind)
		require.Equal(t, "h1", got[0].ID)
		require.NotNil(t, got[0].ExpiresAt)
		require.Equal(t, reservations.EntryBooking, got[1].Kind)
	})

	t.Run("exclude id", func(t *testing.T) {
		got, err := l.QueryConflicts(ctx, "p1", reservations.MustInterval("2025-01-02", "2025-01-03"), "h1")
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("expired hold stops conflicting without a sweep", func(t *testing.T) {
		clk.Advance(599 * time.Second)
		got, err := l.QueryConflicts(ctx, "p1", reservations.MustInterval("2025-01-02", "2025-01-03"), "")
		require.NoError(t, err)
		require.Len(t, got, 1)

		clk.Advance(2 * time.Second)
		got, err = l.QueryConflicts(ctx, "p1", reservations.MustInterval("2025-01-02", "2025-01-03"), "")
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("committed ignores holds and cancelled bookings", func(t *testing.T) {
		got, err := l.Committed(ctx, "p1", reservations.MustInterval("2025-01-01", "2025-02-01"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "b1", got[0].ID)
	})
}
