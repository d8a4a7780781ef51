package schedule

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

// FeedItem is one all-day event rendered into an iCalendar feed.
type FeedItem struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Occurrence  Occurrence
	Stamp       time.Time
}

// Calendar renders items as an iCalendar (RFC 5545) document. Each item becomes one
// all-day VEVENT carrying an RRULE when it repeats. Items not active on their own start
// date are left out, since DTSTART always counts as an occurrence.
func Calendar(name string, items []FeedItem) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//eventattend//attendance//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, it := range items {
		if !IsActiveOn(it.Occurrence, it.Occurrence.Start) {
			continue
		}
		ev := cal.AddEvent(it.UID)
		stamp := it.Stamp
		if stamp.IsZero() {
			stamp = time.Now()
		}
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(it.Summary)
		if it.Description != "" {
			ev.SetDescription(it.Description)
		}
		if it.Location != "" {
			ev.SetLocation(it.Location)
		}
		start := it.Occurrence.Start
		ev.SetAllDayStartAt(start.In(time.UTC))
		ev.SetAllDayEndAt(start.AddDays(1).In(time.UTC))
		if rule := RRule(it.Occurrence); rule != "" {
			ev.AddRrule(rule)
		}
	}
	return cal.Serialize()
}
