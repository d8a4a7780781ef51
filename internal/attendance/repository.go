package attendance

import "context"

// Repository persists events, participants, registrations and attendance entries.
//
// Getters return ErrNotFound for missing rows. Create methods assign an id and creation
// time when empty. Register and Unregister are idempotent. UpsertEntry must be atomic
// per (instance, participant): concurrent submissions leave exactly one entry.
type Repository interface {
	CreateMasterEvent(ctx context.Context, ev MasterEvent) (MasterEvent, error)
	GetMasterEvent(ctx context.Context, id string) (MasterEvent, error)
	ListMasterEvents(ctx context.Context) ([]MasterEvent, error)

	CreateInstance(ctx context.Context, inst Instance) (Instance, error)
	GetInstance(ctx context.Context, id string) (Instance, error)
	// ListInstances returns all instances, or those of one master event when
	// masterEventID is not empty.
	ListInstances(ctx context.Context, masterEventID string) ([]Instance, error)

	// CreateParticipant returns ErrConflict when the email is taken.
	CreateParticipant(ctx context.Context, p Participant) (Participant, error)
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context) ([]Participant, error)

	Register(ctx context.Context, instanceID, participantID string) error
	Unregister(ctx context.Context, instanceID, participantID string) error
	Registrations(ctx context.Context, instanceID string) ([]string, error)
	RegisteredInstances(ctx context.Context, participantID string) ([]string, error)

	UpsertEntry(ctx context.Context, e Entry) (Entry, error)
	Entries(ctx context.Context, instanceID string) ([]Entry, error)
	ParticipantEntries(ctx context.Context, participantID string) ([]Entry, error)
}
