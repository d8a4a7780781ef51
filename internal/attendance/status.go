package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Status is the recorded attendance of one participant at one instance.
type Status string

const (
	StatusPresent Status = "present"
	StatusExcused Status = "excused"
	StatusSick    Status = "sick"
	StatusAbsent  Status = "absent"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPresent, StatusExcused, StatusSick, StatusAbsent}

// ParseStatus validates user input.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusExcused, StatusSick, StatusAbsent:
		return true
	}
	return false
}

// Entry is a stored attendance record, unique per (participant, instance).
type Entry struct {
	ParticipantID string    `json:"participant_id"`
	InstanceID    string    `json:"instance_id"`
	Status        Status    `json:"status"`
	RecordedAt    time.Time `json:"recorded_at"`
}
