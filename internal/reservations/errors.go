package reservations

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConflict            = errors.New("dates conflict with an existing hold or booking")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyTerminal     = errors.New("already in a terminal state")
	ErrAlreadyCancelled    = errors.New("booking already cancelled")
	ErrHoldAlreadyConsumed = errors.New("hold already consumed")
	ErrHoldExpired         = errors.New("hold expired")
	ErrPaymentFailed       = errors.New("payment failed")

	ErrInvalidInterval   = errors.New("invalid interval")
	ErrInvalidTTL        = errors.New("invalid hold ttl")
	ErrPropertyRequired  = errors.New("property id required")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownProvider   = errors.New("unknown payment provider")
	ErrDuplicateTask     = errors.New("ops task already exists for booking")
)

var (
	ErrHoldNotFound    = fmt.Errorf("hold %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
	ErrPaymentNotFound = fmt.Errorf("payment %w", ErrNotFound)
	ErrTaskNotFound    = fmt.Errorf("ops task %w", ErrNotFound)
)

// ErrHoldReleased is returned when confirming a hold the customer let go.
var ErrHoldReleased = fmt.Errorf("hold released: %w", ErrAlreadyTerminal)

// ErrHoldChanged is returned when a hold's dates moved while its payment was
// being taken; the charge no longer matches what the hold claims.
var ErrHoldChanged = fmt.Errorf("hold changed during confirmation: %w", ErrConflict)

// ConflictError lists what occupies the requested dates.
type ConflictError struct {
	PropertyID string
	Interval   Interval
	Entries    []Entry
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Entries))
	for _, en := range e.Entries {
		ids = append(ids, string(en.Kind)+":"+en.ID)
	}
	return fmt.Sprintf("%s: property %s %s overlaps %s", ErrConflict, e.PropertyID, e.Interval, strings.Join(ids, ","))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// HoldStatusError maps a non-active effective hold status to the error a
// confirmation or release should report.
func HoldStatusError(st HoldStatus) error {
	switch st {
	case HoldExpired:
		return ErrHoldExpired
	case HoldConsumed:
		return ErrHoldAlreadyConsumed
	case HoldReleased:
		return ErrHoldReleased
	}
	return nil
}
