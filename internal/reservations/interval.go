package reservations

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Interval is a half-open stay [CheckIn, CheckOut). A check-out day never
// conflicts with a check-in on the same day.
type Interval struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// NewInterval keeps only the calendar date of both bounds, expressed in UTC.
func NewInterval(checkIn, checkOut time.Time) (Interval, error) {
	iv := Interval{CheckIn: dateOf(checkIn), CheckOut: dateOf(checkOut)}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// ParseInterval parses two YYYY-MM-DD dates.
func ParseInterval(checkIn, checkOut string) (Interval, error) {
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: check_in %q", ErrInvalidInterval, checkIn)
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: check_out %q", ErrInvalidInterval, checkOut)
	}
	return NewInterval(in, out)
}

// MustInterval is for tests and fixtures.
func MustInterval(checkIn, checkOut string) Interval {
	iv, err := ParseInterval(checkIn, checkOut)
	if err != nil {
		panic(err)
	}
	return iv
}

func (iv Interval) Validate() error {
	if iv.CheckIn.IsZero() || iv.CheckOut.IsZero() {
		return fmt.Errorf("%w: missing dates", ErrInvalidInterval)
	}
	if !iv.CheckIn.Before(iv.CheckOut) {
		return fmt.Errorf("%w: check_in must be before check_out", ErrInvalidInterval)
	}
	return nil
}

func (iv Interval) Overlaps(o Interval) bool {
	return iv.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(iv.CheckOut)
}

func (iv Interval) Equal(o Interval) bool {
	return iv.CheckIn.Equal(o.CheckIn) && iv.CheckOut.Equal(o.CheckOut)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.CheckIn.Format(DateLayout), iv.CheckOut.Format(DateLayout))
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
