package schedule

import (
	"errors"
	"strings"
	"testing"

	ics "github.com/arran4/golang-ical"
)

func TestDatesMatchesIsActiveOn(t *testing.T) {
	occs := []Occurrence{
		{Start: d("2024-01-01"), Recurrence: Weekly, Until: dp("2024-01-31")},
		{Start: d("2024-01-31"), Recurrence: Monthly},
		{Start: d("2024-02-10"), Recurrence: Daily, Until: dp("2024-02-20")},
		{Start: d("2024-03-03"), Recurrence: None},
		{Start: d("2024-03-03"), Recurrence: Daily, Until: dp("2024-03-01")},
		{Start: d("2024-03-03"), Recurrence: "fortnightly"},
	}
	from, to := d("2024-01-01"), d("2024-12-31")

	for _, occ := range occs {
		got, err := Dates(occ, from, to)
		if err != nil {
			t.Fatalf("Dates(%+v) error = %v", occ, err)
		}
		var want []Date
		for day := from; !day.After(to); day = day.AddDays(1) {
			if IsActiveOn(occ, day) {
				want = append(want, day)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("Dates(%s %s) = %d dates, want %d", occ.Recurrence, occ.Start, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Dates(%s %s)[%d] = %s, want %s", occ.Recurrence, occ.Start, i, got[i], want[i])
			}
		}
	}
}

func TestDatesMonthlySkipsShortMonths(t *testing.T) {
	got, err := Dates(Occurrence{Start: d("2024-03-31"), Recurrence: Monthly}, d("2024-03-01"), d("2024-08-31"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-03-31", "2024-05-31", "2024-07-31", "2024-08-31"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i].String() != w {
			t.Errorf("got[%d] = %s, want %s", i, got[i], w)
		}
	}
}

func TestDatesWindowErrors(t *testing.T) {
	occ := Occurrence{Start: d("2024-01-01"), Recurrence: Daily}
	if _, err := Dates(occ, d("2024-02-01"), d("2024-01-01")); !errors.Is(err, ErrWindowInverted) {
		t.Errorf("inverted window error = %v", err)
	}
	if _, err := Dates(occ, d("2024-01-01"), d("2025-01-01")); !errors.Is(err, ErrWindowTooLarge) {
		t.Errorf("large window error = %v", err)
	}
}

func TestRRule(t *testing.T) {
	tests := []struct {
		occ  Occurrence
		want string
	}{
		{occ: Occurrence{Start: d("2024-01-01"), Recurrence: None}, want: ""},
		{occ: Occurrence{Start: d("2024-01-01"), Recurrence: Daily}, want: "FREQ=DAILY"},
		{occ: Occurrence{Start: d("2024-01-01"), Recurrence: Weekly, Until: dp("2024-01-31")}, want: "FREQ=WEEKLY;UNTIL=20240131"},
		{occ: Occurrence{Start: d("2024-01-01"), Recurrence: Monthly}, want: "FREQ=MONTHLY"},
		{occ: Occurrence{Start: d("2024-01-01"), Recurrence: "hourly"}, want: ""},
	}
	for _, tt := range tests {
		if got := RRule(tt.occ); got != tt.want {
			t.Errorf("RRule(%s) = %q, want %q", tt.occ.Recurrence, got, tt.want)
		}
	}
}

func TestCalendar(t *testing.T) {
	out := Calendar("Team", []FeedItem{
		{UID: "inst-1", Summary: "Standup", Location: "Room 1", Occurrence: Occurrence{Start: d("2024-01-01"), Recurrence: Weekly}},
		{UID: "inst-2", Summary: "Kickoff", Occurrence: Occurrence{Start: d("2024-02-01"), Recurrence: None}},
	})
	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Fatalf("not a calendar: %q", out)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Id() != "inst-1" {
		t.Errorf("first uid = %q", events[0].Id())
	}
	if p := events[0].GetProperty(ics.ComponentPropertyRrule); p == nil || p.Value != "FREQ=WEEKLY" {
		t.Errorf("first rrule = %+v", p)
	}
	if p := events[1].GetProperty(ics.ComponentPropertyRrule); p != nil {
		t.Errorf("single event carries rrule %q", p.Value)
	}
}

func TestCalendarSkipsNeverActive(t *testing.T) {
	out := Calendar("Team", []FeedItem{
		{UID: "ok", Summary: "Daily", Occurrence: Occurrence{Start: d("2024-01-01"), Recurrence: Daily}},
		{UID: "unknown", Summary: "Yearly", Occurrence: Occurrence{Start: d("2024-01-01"), Recurrence: Recurrence("yearly")}},
		{UID: "inverted", Summary: "Ended", Occurrence: Occurrence{Start: d("2024-01-10"), Recurrence: Weekly, Until: dp("2024-01-01")}},
	})
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	events := cal.Events()
	if len(events) != 1 || events[0].Id() != "ok" {
		ids := make([]string, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.Id())
		}
		t.Errorf("events = %v, want [ok]", ids)
	}
}
