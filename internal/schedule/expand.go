package schedule

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxWindowDays bounds the window accepted by Dates.
const MaxWindowDays = 366

var (
	ErrWindowInverted = errors.New("window end is before window start")
	ErrWindowTooLarge = errors.New("window exceeds maximum length")
)

// Dates lists the dates within the inclusive window [from, to] on which o is active,
// in ascending order. Unknown patterns yield no dates.
func Dates(o Occurrence, from, to Date) ([]Date, error) {
	if to.Before(from) {
		return nil, ErrWindowInverted
	}
	if from.DaysUntil(to) >= MaxWindowDays {
		return nil, ErrWindowTooLarge
	}

	switch o.Recurrence {
	case None, "":
		if !o.Start.Before(from) && !o.Start.After(to) && IsActiveOn(o, o.Start) {
			return []Date{o.Start}, nil
		}
		return nil, nil
	case Daily, Weekly, Monthly:
	default:
		return nil, nil
	}

	r, err := rrule.NewRRule(ruleOption(o))
	if err != nil {
		return nil, err
	}

	times := r.Between(from.In(time.UTC), to.In(time.UTC), true)
	out := make([]Date, 0, len(times))
	for _, t := range times {
		out = append(out, DateOf(t.In(time.UTC)))
	}
	return out, nil
}

// RRule renders o as an RFC 5545 RRULE value for an all-day DTSTART, or "" for
// non-repeating instances.
func RRule(o Occurrence) string {
	var freq string
	switch o.Recurrence {
	case Daily:
		freq = "DAILY"
	case Weekly:
		freq = "WEEKLY"
	case Monthly:
		freq = "MONTHLY"
	default:
		return ""
	}
	s := "FREQ=" + freq
	if o.Until != nil {
		s += ";UNTIL=" + o.Until.In(time.UTC).Format("20060102")
	}
	return s
}

func ruleOption(o Occurrence) rrule.ROption {
	opt := rrule.ROption{
		Dtstart:  o.Start.In(time.UTC),
		Interval: 1,
	}
	switch o.Recurrence {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt.Freq = rrule.MONTHLY
	}
	if o.Until != nil {
		opt.Until = o.Until.In(time.UTC)
	}
	return opt
}
