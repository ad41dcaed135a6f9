package reservations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServicePlan_Applicable(t *testing.T) {
	t.Parallel()

	plan := ServicePlan{Code: "premium", Tasks: []TaskTemplate{
		{Kind: TaskCleaning, Anchor: AnchorCheckOut},
		{Kind: TaskKeyHandover, RequiresFlag: "self_checkin"},
		{Kind: TaskCleaning, Anchor: AnchorCheckIn},
	}}

	t.Run("gated kind needs its flag", func(t *testing.T) {
		got := plan.Applicable(nil)
		require.Len(t, got, 1)
		require.Equal(t, TaskCleaning, got[0].Kind)
		require.Equal(t, AnchorCheckOut, got[0].Anchor, "first template of a kind wins")
	})

	t.Run("flag set", func(t *testing.T) {
		got := plan.Applicable(map[string]bool{"self_checkin": true})
		require.Len(t, got, 2)
		require.Equal(t, TaskKeyHandover, got[1].Kind)
	})
}

func TestNewBookingConfirmedPayload_TaskKinds(t *testing.T) {
	t.Parallel()

	plan := ServicePlan{Code: "standard", Tasks: []TaskTemplate{
		{Kind: TaskCleaning},
		{Kind: TaskLinenChange, RequiresFlag: "linen"},
	}}
	b := Booking{ID: "b-1", Interval: MustInterval("2025-06-01", "2025-06-04")}

	p := NewBookingConfirmedPayload(BookingConfirmed{Booking: b, ServiceConfig: ServiceConfig{Plan: plan}})
	require.Equal(t, "standard", p.PlanCode, "falls back to the configured plan")
	require.Equal(t, []string{"cleaning"}, p.TaskKinds)

	p = NewBookingConfirmedPayload(BookingConfirmed{Booking: b, ServicePlan: plan, ServiceConfig: ServiceConfig{Flags: map[string]bool{"linen": true}}})
	require.Equal(t, []string{"cleaning", "linen_change"}, p.TaskKinds)
}
