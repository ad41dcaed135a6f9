package reservations

import "time"

// Hold is a time-bounded exclusive claim on a property's dates prior to payment.
type Hold struct {
	ID         string     `json:"id"`
	PropertyID string     `json:"property_id"`
	Interval   Interval   `json:"interval"`
	Status     HoldStatus `json:"status"` // stored status, see EffectiveStatus
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// EffectiveStatus evaluates expiry lazily: an ACTIVE hold past its deadline
// reads as EXPIRED whether or not the sweeper has persisted it yet.
func (h Hold) EffectiveStatus(now time.Time) HoldStatus {
	if h.Status == HoldActive && !now.Before(h.ExpiresAt) {
		return HoldExpired
	}
	return h.Status
}

type Booking struct {
	ID           string        `json:"id"`
	PropertyID   string        `json:"property_id"`
	Interval     Interval      `json:"interval"`
	HoldID       *string       `json:"hold_id,omitempty"`
	Status       BookingStatus `json:"status"`
	PaymentRef   string        `json:"payment_ref,omitempty"`
	CancelReason string        `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ConfirmedAt  *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time    `json:"cancelled_at,omitempty"`
}

type Provider string

const ProviderManual Provider = "MANUAL"

type Payment struct {
	ID          string        `json:"id"`
	BookingID   string        `json:"booking_id"`
	Provider    Provider      `json:"provider"`
	ProviderRef string        `json:"provider_ref"`
	Reference   string        `json:"reference"` // idempotency key sent to the provider, unique per confirmation attempt
	Status      PaymentStatus `json:"status"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PaymentIntent is what the customer hands over at checkout.
type PaymentIntent struct {
	Provider    Provider
	Reference   string
	AmountCents int64
	Currency    string
}

type TaskKind string

const (
	TaskInspection  TaskKind = "inspection"
	TaskCleaning    TaskKind = "cleaning"
	TaskLinenChange TaskKind = "linen_change"
	TaskKeyHandover TaskKind = "key_handover"
)

type OpsTask struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"booking_id"`
	Kind        TaskKind   `json:"kind"`
	Status      TaskStatus `json:"status"`
	DueAt       time.Time  `json:"due_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// TaskEvent is one row of a task's append-only status history. From is empty
// for the creation event.
type TaskEvent struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	From       TaskStatus `json:"from,omitempty"`
	To         TaskStatus `json:"to"`
	Note       string     `json:"note,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type EntryKind string

const (
	EntryHold    EntryKind = "hold"
	EntryBooking EntryKind = "booking"
)

// Entry is one occupied interval in the inventory ledger.
type Entry struct {
	Kind       EntryKind  `json:"kind"`
	ID         string     `json:"id"`
	PropertyID string     `json:"property_id"`
	Interval   Interval   `json:"interval"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func HoldEntry(h Hold) Entry {
	exp := h.ExpiresAt
	return Entry{Kind: EntryHold, ID: h.ID, PropertyID: h.PropertyID, Interval: h.Interval, ExpiresAt: &exp}
}

func BookingEntry(b Booking) Entry {
	return Entry{Kind: EntryBooking, ID: b.ID, PropertyID: b.PropertyID, Interval: b.Interval}
}

type TaskAnchor string

const (
	AnchorCheckIn  TaskAnchor = "check_in"
	AnchorCheckOut TaskAnchor = "check_out"
)

// TaskTemplate describes one fulfillment task a plan implies for a stay.
type TaskTemplate struct {
	Kind         TaskKind
	Anchor       TaskAnchor
	Offset       time.Duration
	RequiresFlag string
}

type ServicePlan struct {
	Code  string
	Tasks []TaskTemplate
}

// Applicable drops templates gated on a flag the property does not have. A
// kind listed twice keeps its first template.
func (p ServicePlan) Applicable(flags map[string]bool) []TaskTemplate {
	seen := make(map[TaskKind]bool, len(p.Tasks))
	out := make([]TaskTemplate, 0, len(p.Tasks))
	for _, tpl := range p.Tasks {
		if tpl.RequiresFlag != "" && !flags[tpl.RequiresFlag] {
			continue
		}
		if seen[tpl.Kind] {
			continue
		}
		seen[tpl.Kind] = true
		out = append(out, tpl)
	}
	return out
}

// ServiceConfig is the property's service setup as owned by the property
// service; the engine only reads it.
type ServiceConfig struct {
	PropertyID string
	Plan       ServicePlan
	Flags      map[string]bool
}
