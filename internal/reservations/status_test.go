package reservations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHold_EffectiveStatus(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	h := Hold{Status: HoldActive, CreatedAt: created, ExpiresAt: created.Add(600 * time.Second)}

	require.Equal(t, HoldActive, h.EffectiveStatus(created.Add(599*time.Second)))
	require.Equal(t, HoldExpired, h.EffectiveStatus(created.Add(600*time.Second)))
	require.Equal(t, HoldExpired, h.EffectiveStatus(created.Add(601*time.Second)))
	require.Equal(t, HoldActive, h.Status, "read must not mutate the stored status")

	h.Status = HoldConsumed
	require.Equal(t, HoldConsumed, h.EffectiveStatus(created.Add(time.Hour)))
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	require.True(t, BookingStatusPendingPayment.CanTransition(BookingStatusConfirmed))
	require.True(t, BookingStatusPendingPayment.CanTransition(BookingStatusCancelled))
	require.True(t, BookingStatusConfirmed.CanTransition(BookingStatusCancelled))
	require.False(t, BookingStatusCancelled.CanTransition(BookingStatusConfirmed))
	require.True(t, BookingStatusCancelled.Terminal())

	require.True(t, HoldActive.CanTransition(HoldReleased))
	require.False(t, HoldReleased.CanTransition(HoldActive))
	require.False(t, HoldExpired.CanTransition(HoldConsumed))

	require.True(t, PaymentCaptured.CanTransition(PaymentRefunded))
	require.False(t, PaymentRefunded.CanTransition(PaymentCaptured))

	require.True(t, TaskInProgress.CanTransition(TaskCancelled))
	require.False(t, TaskCompleted.CanTransition(TaskCancelled))
	require.True(t, TaskAssigned.Open())
	require.False(t, TaskCompleted.Open())

	st, ok := ParseTaskStatus("IN_PROGRESS")
	require.True(t, ok)
	require.Equal(t, TaskInProgress, st)
	_, ok = ParseTaskStatus("DONE")
	require.False(t, ok)
}

func TestHoldStatusError(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, HoldStatusError(HoldExpired), ErrHoldExpired)
	require.ErrorIs(t, HoldStatusError(HoldConsumed), ErrHoldAlreadyConsumed)
	require.ErrorIs(t, HoldStatusError(HoldReleased), ErrAlreadyTerminal)
	require.NoError(t, HoldStatusError(HoldActive))
	require.ErrorIs(t, ErrHoldNotFound, ErrNotFound)
}
