package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// Recurrence is the repeat pattern of an event instance.
type Recurrence string

const (
	None    Recurrence = "none"
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
)

// ErrUnknownRecurrence is returned by ParseRecurrence for unsupported patterns.
var ErrUnknownRecurrence = errors.New("unknown recurrence")

// ParseRecurrence maps user input to a Recurrence. An empty string means None.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return None, nil
	}
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRecurrence, s)
	}
	return r, nil
}

// Valid reports whether r is one of the supported patterns.
func (r Recurrence) Valid() bool {
	switch r {
	case None, Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Occurrence is the schedule of an event instance: a first date, a repeat pattern and an
// optional inclusive last date.
type Occurrence struct {
	Start      Date       `json:"start_date"`
	Recurrence Recurrence `json:"recurrence"`
	Until      *Date      `json:"recurrence_end_date,omitempty"`
}

// IsActiveOn reports whether o takes place on day.
//
// Weekly patterns match the weekday of Start and monthly patterns the day of month of
// Start; a monthly instance starting on the 31st has no date in shorter months. Unknown
// patterns are never active. An Until before Start leaves the instance never active.
func IsActiveOn(o Occurrence, day Date) bool {
	if day.Before(o.Start) {
		return false
	}
	if o.Until != nil && day.After(*o.Until) {
		return false
	}

	switch o.Recurrence {
	case None, "":
		return day == o.Start
	case Daily:
		return true
	case Weekly:
		return day.Weekday() == o.Start.Weekday()
	case Monthly:
		return day.Day == o.Start.Day
	default:
		return false
	}
}

// ActiveOn is shorthand for IsActiveOn(o, day).
func (o Occurrence) ActiveOn(day Date) bool {
	return IsActiveOn(o, day)
}
