package attendance

import (
	"errors"
	"time"

	"eventattend/internal/schedule"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// MasterEvent is a reusable event template without a date.
type MasterEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
}

// Instance is a dated, possibly recurring, occurrence of a master event.
type Instance struct {
	ID            string `json:"id"`
	MasterEventID string `json:"master_event_id"`
	// Title overrides the master event title when set.
	Title string `json:"title,omitempty"`
	// StartTime is an optional HH:MM wall clock time in the service timezone.
	StartTime string `json:"start_time,omitempty"`
	schedule.Occurrence
	CreatedAt time.Time `json:"created_at"`
}

// Participant is a person that can be registered to instances.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
