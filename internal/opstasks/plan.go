package opstasks

import (
	"time"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// PlannedTask is one task a plan implies for a concrete stay.
type PlannedTask struct {
	Kind  reservations.TaskKind
	DueAt time.Time
}

// Plan expands the templates that apply to the property's flags for iv. The
// result only depends on its inputs.
func Plan(plan reservations.ServicePlan, flags map[string]bool, iv reservations.Interval) []PlannedTask {
	applicable := plan.Applicable(flags)
	out := make([]PlannedTask, 0, len(applicable))
	for _, tpl := range applicable {
		anchor := iv.CheckIn
		if tpl.Anchor == reservations.AnchorCheckOut {
			anchor = iv.CheckOut
		}
		out = append(out, PlannedTask{Kind: tpl.Kind, DueAt: anchor.Add(tpl.Offset)})
	}
	return out
}
