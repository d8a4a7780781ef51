package attendance

import "math"

// Report summarizes attendance for one instance.
type Report struct {
	TotalRegistered int `json:"total_registered"`
	PresentCount    int `json:"present_count"`
	// Ratio is PresentCount/TotalRegistered, unrounded.
	Ratio float64 `json:"ratio"`
	// Rate is Ratio as a percentage rounded to one decimal.
	Rate     float64           `json:"attendance_rate"`
	Counts   map[Status]int    `json:"counts"`
	Statuses map[string]Status `json:"-"`
}

// Latest reduces entries to one per participant. A later RecordedAt replaces an earlier
// one; on equal timestamps the entry appearing later in the slice wins, which matches the
// upsert order at write time. Callers pass the entries of a single instance.
func Latest(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if cur, ok := out[e.ParticipantID]; ok && e.RecordedAt.Before(cur.RecordedAt) {
			continue
		}
		out[e.ParticipantID] = e
	}
	return out
}

// EffectiveStatus returns the participant's latest recorded status, or StatusAbsent.
func EffectiveStatus(participantID string, entries []Entry) Status {
	return effective(participantID, Latest(entries))
}

func effective(participantID string, latest map[string]Entry) Status {
	if e, ok := latest[participantID]; ok {
		return e.Status
	}
	return StatusAbsent
}

// Aggregate computes the report of one instance from its registered participant ids and
// its attendance entries. Only StatusPresent counts towards the rate; excused and sick
// participants are reported but not attended. Entries of unregistered participants are
// ignored and duplicate ids collapse.
func Aggregate(registered []string, entries []Entry) Report {
	latest := Latest(entries)
	rep := Report{
		Counts:   make(map[Status]int, len(Statuses)),
		Statuses: make(map[string]Status, len(registered)),
	}
	for _, st := range Statuses {
		rep.Counts[st] = 0
	}

	for _, id := range registered {
		if _, seen := rep.Statuses[id]; seen {
			continue
		}
		st := effective(id, latest)
		rep.Statuses[id] = st
		rep.Counts[st]++
	}

	rep.TotalRegistered = len(rep.Statuses)
	rep.PresentCount = rep.Counts[StatusPresent]
	rep.Ratio = ratio(rep.PresentCount, rep.TotalRegistered)
	rep.Rate = percent(rep.Ratio)
	return rep
}

// Combine merges instance reports into one: the rate is total present over total
// registered across all of them.
func Combine(reports ...Report) Report {
	out := Report{
		Counts:   make(map[Status]int, len(Statuses)),
		Statuses: map[string]Status{},
	}
	for _, st := range Statuses {
		out.Counts[st] = 0
	}
	for _, r := range reports {
		out.TotalRegistered += r.TotalRegistered
		out.PresentCount += r.PresentCount
		for st, n := range r.Counts {
			out.Counts[st] += n
		}
	}
	out.Ratio = ratio(out.PresentCount, out.TotalRegistered)
	out.Rate = percent(out.Ratio)
	return out
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func percent(r float64) float64 {
	return round1(r * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
