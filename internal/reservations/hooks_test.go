package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHooks struct {
	mu        sync.Mutex
	confirmed []string
	cancelled []string
	err       error
	panics    bool
}

func (r *recordingHooks) OnBookingConfirmed(_ context.Context, ev BookingConfirmed) error {
	if r.panics {
		panic("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, ev.Booking.ID)
	return r.err
}

func (r *recordingHooks) OnBookingCancelled(_ context.Context, ev BookingCancelled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, ev.Booking.ID)
	return r.err
}

func TestDispatcher_FanOut(t *testing.T) {
	t.Parallel()

	ok := &recordingHooks{}
	failing := &recordingHooks{err: errors.New("listener down")}
	panicking := &recordingHooks{panics: true}
	d := NewDispatcher(nil, ok, failing, panicking)

	ctx, cancel := context.WithCancel(context.Background())
	d.Confirmed(ctx, BookingConfirmed{Booking: Booking{ID: "b-1"}})
	cancel()
	d.Cancelled(ctx, BookingCancelled{Booking: Booking{ID: "b-1"}})
	d.Wait()

	require.Equal(t, []string{"b-1"}, ok.confirmed)
	require.Equal(t, []string{"b-1"}, ok.cancelled)
	require.Equal(t, []string{"b-1"}, failing.confirmed)
}

func TestDispatcher_Nil(t *testing.T) {
	t.Parallel()

	var d *Dispatcher
	d.Confirmed(context.Background(), BookingConfirmed{})
	d.Wait()
}
