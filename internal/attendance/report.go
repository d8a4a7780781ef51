package attendance

import (
	"time"

	"eventattend/internal/schedule"
)

// ParticipantStatus is one row of an instance report.
type ParticipantStatus struct {
	Participant Participant `json:"participant"`
	Status      Status      `json:"status"`
	RecordedAt  *time.Time  `json:"recorded_at,omitempty"`
}

// InstanceReport is the attendance report of one instance.
type InstanceReport struct {
	Instance     Instance            `json:"instance"`
	Title        string              `json:"title"`
	Report       Report              `json:"report"`
	Participants []ParticipantStatus `json:"participants"`
}

// InstanceSummary is an instance with its report, without participant rows.
type InstanceSummary struct {
	Instance Instance `json:"instance"`
	Report   Report   `json:"report"`
}

// EventReport combines the reports of every instance of a master event.
type EventReport struct {
	Event     MasterEvent       `json:"event"`
	Report    Report            `json:"report"`
	Instances []InstanceSummary `json:"instances"`
}

// ParticipantReport is the attendance of one participant across their instances.
type ParticipantReport struct {
	Participant Participant        `json:"participant"`
	Summary     ParticipantSummary `json:"summary"`
	Instances   []Instance         `json:"instances"`
}

// Dashboard lists the instances active on a date with their reports.
type Dashboard struct {
	Date      schedule.Date    `json:"date"`
	Instances []InstanceReport `json:"instances"`
}
