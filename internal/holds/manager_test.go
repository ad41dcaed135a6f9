package holds

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-reservations/internal/boltstore"
	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/ledger"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

var start = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, opts ...Option) (*Manager, *clock.Manual, *boltstore.Store) {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "holds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	clk := clock.NewManual(start)
	return NewManager(store, ledger.New(store, clk), clk, opts...), clk, store
}

func TestCreateHold_Conflicts(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	h, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-01", "2025-01-05")})
	require.NoError(t, err)
	require.Equal(t, reservations.HoldActive, h.Status)
	require.Equal(t, start.Add(defaultTTL), h.ExpiresAt)

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-04", "2025-01-06")})
	require.ErrorIs(t, err, reservations.ErrConflict)
	var ce *reservations.ConflictError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, h.ID, ce.Entries[0].ID)

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-05", "2025-01-10")})
	require.NoError(t, err, "half-open intervals touching at check-out do not conflict")

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p2", Interval: reservations.MustInterval("2025-01-01", "2025-01-05")})
	require.NoError(t, err)
}

func TestCreateHold_Validation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t, WithDefaultTTL(10*time.Minute), WithMaxTTL(time.Hour))
	iv := reservations.MustInterval("2025-01-01", "2025-01-05")

	_, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: " ", Interval: iv})
	require.ErrorIs(t, err, reservations.ErrPropertyRequired)

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.Interval{CheckIn: iv.CheckOut, CheckOut: iv.CheckIn}})
	require.ErrorIs(t, err, reservations.ErrInvalidInterval)

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: iv, TTL: -time.Second})
	require.ErrorIs(t, err, reservations.ErrInvalidTTL)

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: iv, TTL: 2 * time.Hour})
	require.ErrorIs(t, err, reservations.ErrInvalidTTL)
}

func TestCreateHold_ConcurrentOverlapExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// all intervals share the night of Jan 3rd
			in := reservations.MustInterval("2025-01-03", "2025-01-04")
			if i%2 == 0 {
				in = reservations.MustInterval("2025-01-01", "2025-01-05")
			}
			_, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: in, TTL: 10 * time.Minute})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, reservations.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.Equal(t, racers-1, conflicts)
}

func TestEffectiveStatus_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	m, clk, store := newManager(t)

	h, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-01", "2025-01-05"), TTL: 600 * time.Second})
	require.NoError(t, err)

	clk.Advance(599 * time.Second)
	st, err := m.EffectiveStatus(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, reservations.HoldActive, st)

	clk.Advance(2 * time.Second)
	st, err = m.EffectiveStatus(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, reservations.HoldExpired, st)

	stored, err := store.GetHold(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, reservations.HoldActive, stored.Status, "reads never persist expiry")

	// an expired hold no longer blocks the dates
	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-02", "2025-01-03")})
	require.NoError(t, err)

	_, err = m.EffectiveStatus(ctx, "missing")
	require.ErrorIs(t, err, reservations.ErrNotFound)
}

func TestReleaseHold(t *testing.T) {
	ctx := context.Background()
	m, clk, _ := newManager(t)
	iv := reservations.MustInterval("2025-01-01", "2025-01-05")

	h, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: iv})
	require.NoError(t, err)

	require.NoError(t, m.ReleaseHold(ctx, h.ID))
	require.ErrorIs(t, m.ReleaseHold(ctx, h.ID), reservations.ErrAlreadyTerminal)

	st, err := m.EffectiveStatus(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, reservations.HoldReleased, st)

	_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: iv})
	require.NoError(t, err, "released dates are free again")

	require.ErrorIs(t, m.ReleaseHold(ctx, "missing"), reservations.ErrHoldNotFound)

	t.Run("expired hold cannot be released", func(t *testing.T) {
		h, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p9", Interval: iv, TTL: time.Minute})
		require.NoError(t, err)
		clk.Advance(time.Minute)
		require.ErrorIs(t, m.ReleaseHold(ctx, h.ID), reservations.ErrAlreadyTerminal)
	})
}

func TestExtendHold(t *testing.T) {
	ctx := context.Background()
	m, clk, _ := newManager(t)

	h, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-01", "2025-01-05"), TTL: 10 * time.Minute})
	require.NoError(t, err)
	other, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-01-10", "2025-01-12"), TTL: 10 * time.Minute})
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)

	t.Run("renew keeps dates and never conflicts with itself", func(t *testing.T) {
		got, err := m.ExtendHold(ctx, ExtendHoldInput{HoldID: h.ID, TTL: 10 * time.Minute})
		require.NoError(t, err)
		require.Equal(t, h.Interval, got.Interval)
		require.Equal(t, clk.Now().Add(10*time.Minute), got.ExpiresAt)
	})

	t.Run("moving onto another hold conflicts", func(t *testing.T) {
		iv := reservations.MustInterval("2025-01-04", "2025-01-11")
		_, err := m.ExtendHold(ctx, ExtendHoldInput{HoldID: h.ID, Interval: &iv})
		require.ErrorIs(t, err, reservations.ErrConflict)
	})

	t.Run("moving to free dates", func(t *testing.T) {
		iv := reservations.MustInterval("2025-01-05", "2025-01-10")
		got, err := m.ExtendHold(ctx, ExtendHoldInput{HoldID: h.ID, Interval: &iv})
		require.NoError(t, err)
		require.Equal(t, iv, got.Interval)
	})

	t.Run("expired hold cannot be extended", func(t *testing.T) {
		clk.Advance(6 * time.Minute)
		_, err := m.ExtendHold(ctx, ExtendHoldInput{HoldID: other.ID})
		require.ErrorIs(t, err, reservations.ErrHoldExpired)
	})
}

func TestExpireStaleAndSweeper(t *testing.T) {
	ctx := context.Background()
	m, clk, store := newManager(t)

	for _, in := range []string{"2025-01-01", "2025-02-01", "2025-03-01"} {
		iv, err := reservations.ParseInterval(in, in[:8]+"05")
		require.NoError(t, err)
		_, err = m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: iv, TTL: time.Minute})
		require.NoError(t, err)
	}
	kept, err := m.CreateHold(ctx, CreateHoldInput{PropertyID: "p1", Interval: reservations.MustInterval("2025-04-01", "2025-04-02"), TTL: time.Hour})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	n, err := m.ExpireStale(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewSweeper(m, 5*time.Millisecond, 10, nil).Run(sctx) }()
	require.Eventually(t, func() bool {
		n, err := m.ExpireStale(ctx, 10)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	h, err := store.GetHold(ctx, kept.ID)
	require.NoError(t, err)
	require.Equal(t, reservations.HoldActive, h.Status, "sweeper never touches live holds")
}
