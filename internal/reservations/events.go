package reservations

import (
	"encoding/json"
	"time"
)

const (
	EventBookingConfirmed = "BookingConfirmed"
	EventBookingCancelled = "BookingCancelled"
)

// BookingConfirmed fires once a hold became a confirmed booking.
type BookingConfirmed struct {
	Booking       Booking
	Payment       Payment
	ServiceConfig ServiceConfig
	ServicePlan   ServicePlan
}

// Plan is the plan the booking was confirmed under, falling back to the
// property's configured one.
func (ev BookingConfirmed) Plan() ServicePlan {
	if ev.ServicePlan.Code == "" && len(ev.ServicePlan.Tasks) == 0 {
		return ev.ServiceConfig.Plan
	}
	return ev.ServicePlan
}

type RefundStatus string

const (
	RefundNone      RefundStatus = "none" // nothing was captured
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

// RefundOutcome is attached to BookingCancelled once the refund was attempted.
// The cascade sees the event before that happens, with a nil outcome.
type RefundOutcome struct {
	PaymentID string
	Status    RefundStatus
	Error     string
}

type BookingCancelled struct {
	Booking Booking
	Reason  string
	Refund  *RefundOutcome
}

// Envelope is the wire shape of every event published to the broker.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // booking id
	Payload       json.RawMessage `json:"payload"`
}

type BookingConfirmedPayload struct {
	BookingID   string   `json:"booking_id"`
	PropertyID  string   `json:"property_id"`
	HoldID      string   `json:"hold_id,omitempty"`
	CheckIn     string   `json:"check_in"`
	CheckOut    string   `json:"check_out"`
	PaymentRef  string   `json:"payment_ref"`
	AmountCents int64    `json:"amount_cents"`
	Currency    string   `json:"currency"`
	PlanCode    string   `json:"plan_code"`
	TaskKinds   []string `json:"task_kinds,omitempty"`
}

type BookingCancelledPayload struct {
	BookingID    string       `json:"booking_id"`
	PropertyID   string       `json:"property_id"`
	CheckIn      string       `json:"check_in"`
	CheckOut     string       `json:"check_out"`
	Reason       string       `json:"reason,omitempty"`
	CancelledAt  time.Time    `json:"cancelled_at"`
	PaymentID    string       `json:"payment_id,omitempty"`
	RefundStatus RefundStatus `json:"refund_status"`
	RefundError  string       `json:"refund_error,omitempty"`
}

func NewBookingConfirmedPayload(ev BookingConfirmed) BookingConfirmedPayload {
	p := BookingConfirmedPayload{
		BookingID:   ev.Booking.ID,
		PropertyID:  ev.Booking.PropertyID,
		CheckIn:     ev.Booking.Interval.CheckIn.Format(DateLayout),
		CheckOut:    ev.Booking.Interval.CheckOut.Format(DateLayout),
		PaymentRef:  ev.Booking.PaymentRef,
		AmountCents: ev.Payment.AmountCents,
		Currency:    ev.Payment.Currency,
	}
	if ev.Booking.HoldID != nil {
		p.HoldID = *ev.Booking.HoldID
	}
	plan := ev.Plan()
	for _, t := range plan.Applicable(ev.ServiceConfig.Flags) {
		p.TaskKinds = append(p.TaskKinds, string(t.Kind))
	}
	p.PlanCode = plan.Code
	return p
}

func NewBookingCancelledPayload(ev BookingCancelled) BookingCancelledPayload {
	p := BookingCancelledPayload{
		BookingID:    ev.Booking.ID,
		PropertyID:   ev.Booking.PropertyID,
		CheckIn:      ev.Booking.Interval.CheckIn.Format(DateLayout),
		CheckOut:     ev.Booking.Interval.CheckOut.Format(DateLayout),
		Reason:       ev.Reason,
		RefundStatus: RefundNone,
	}
	if ev.Booking.CancelledAt != nil {
		p.CancelledAt = *ev.Booking.CancelledAt
	}
	if ev.Refund != nil {
		p.PaymentID = ev.Refund.PaymentID
		p.RefundStatus = ev.Refund.Status
		p.RefundError = ev.Refund.Error
	}
	return p
}
