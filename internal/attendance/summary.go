package attendance

// ParticipantSummary is the attendance of one participant across the instances they are
// registered to.
type ParticipantSummary struct {
	Registered   int               `json:"registered"`
	PresentCount int               `json:"present_count"`
	Ratio        float64           `json:"ratio"`
	Rate         float64           `json:"attendance_rate"`
	Counts       map[Status]int    `json:"counts"`
	ByInstance   map[string]Status `json:"by_instance"`
}

// SummarizeParticipant computes a participant's summary from the ids of the instances
// they are registered to and their entries. Entries are reduced per instance with the
// same last-wins rule as Latest. Entries of instances outside instanceIDs are ignored.
func SummarizeParticipant(participantID string, instanceIDs []string, entries []Entry) ParticipantSummary {
	byInstance := make(map[string][]Entry)
	for _, e := range entries {
		if e.ParticipantID != participantID {
			continue
		}
		byInstance[e.InstanceID] = append(byInstance[e.InstanceID], e)
	}

	sum := ParticipantSummary{
		Counts:     make(map[Status]int, len(Statuses)),
		ByInstance: make(map[string]Status, len(instanceIDs)),
	}
	for _, st := range Statuses {
		sum.Counts[st] = 0
	}
	for _, id := range instanceIDs {
		if _, seen := sum.ByInstance[id]; seen {
			continue
		}
		st := EffectiveStatus(participantID, byInstance[id])
		sum.ByInstance[id] = st
		sum.Counts[st]++
	}

	sum.Registered = len(sum.ByInstance)
	sum.PresentCount = sum.Counts[StatusPresent]
	sum.Ratio = ratio(sum.PresentCount, sum.Registered)
	sum.Rate = percent(sum.Ratio)
	return sum
}
