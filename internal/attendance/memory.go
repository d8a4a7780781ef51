package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. It is used for development and
// tests; a single mutex serializes writes so UpsertEntry is atomic.
type MemoryRepository struct {
	mu            sync.RWMutex
	events        map[string]MasterEvent
	instances     map[string]Instance
	participants  map[string]Participant
	registrations map[string]map[string]time.Time // instance -> participant -> registered at
	entries       map[entryKey]Entry
	now           func() time.Time
}

type entryKey struct {
	instanceID    string
	participantID string
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:        make(map[string]MasterEvent),
		instances:     make(map[string]Instance),
		participants:  make(map[string]Participant),
		registrations: make(map[string]map[string]time.Time),
		entries:       make(map[entryKey]Entry),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) CreateMasterEvent(_ context.Context, ev MasterEvent) (MasterEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, ok := r.events[ev.ID]; ok {
		return MasterEvent{}, ErrConflict
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events[ev.ID] = ev
	return ev, nil
}

func (r *MemoryRepository) GetMasterEvent(_ context.Context, id string) (MasterEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[id]
	if !ok {
		return MasterEvent{}, ErrNotFound
	}
	return ev, nil
}

func (r *MemoryRepository) ListMasterEvents(_ context.Context) ([]MasterEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MasterEvent, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) CreateInstance(_ context.Context, inst Instance) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[inst.MasterEventID]; !ok {
		return Instance{}, ErrNotFound
	}
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if _, ok := r.instances[inst.ID]; ok {
		return Instance{}, ErrConflict
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = r.now()
	}
	r.instances[inst.ID] = inst
	return inst, nil
}

func (r *MemoryRepository) GetInstance(_ context.Context, id string) (Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return Instance{}, ErrNotFound
	}
	return inst, nil
}

func (r *MemoryRepository) ListInstances(_ context.Context, masterEventID string) ([]Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		if masterEventID != "" && inst.MasterEventID != masterEventID {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start.Before(out[j].Start)
		}
		return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *MemoryRepository) CreateParticipant(_ context.Context, p Participant) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants {
		if p.Email != "" && strings.EqualFold(existing.Email, p.Email) {
			return Participant{}, ErrConflict
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := r.participants[p.ID]; ok {
		return Participant{}, ErrConflict
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	r.participants[p.ID] = p
	return p, nil
}

func (r *MemoryRepository) GetParticipant(_ context.Context, id string) (Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return Participant{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ListParticipants(_ context.Context) ([]Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Register(_ context.Context, instanceID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instanceID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.participants[participantID]; !ok {
		return ErrNotFound
	}
	set, ok := r.registrations[instanceID]
	if !ok {
		set = make(map[string]time.Time)
		r.registrations[instanceID] = set
	}
	if _, ok := set[participantID]; !ok {
		set[participantID] = r.now()
	}
	return nil
}

func (r *MemoryRepository) Unregister(_ context.Context, instanceID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registrations[instanceID], participantID)
	return nil
}

func (r *MemoryRepository) Registrations(_ context.Context, instanceID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.registrations[instanceID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return createdBefore(set[out[i]], set[out[j]], out[i], out[j])
	})
	return out, nil
}

func (r *MemoryRepository) RegisteredInstances(_ context.Context, participantID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{}
	for instanceID, set := range r.registrations {
		if _, ok := set[participantID]; ok {
			out = append(out, instanceID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) UpsertEntry(_ context.Context, e Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.RecordedAt.IsZero() {
		e.RecordedAt = r.now()
	}
	r.entries[entryKey{instanceID: e.InstanceID, participantID: e.ParticipantID}] = e
	return e, nil
}

func (r *MemoryRepository) Entries(_ context.Context, instanceID string) ([]Entry, error) {
	return r.filterEntries(func(e Entry) bool { return e.InstanceID == instanceID }), nil
}

func (r *MemoryRepository) ParticipantEntries(_ context.Context, participantID string) ([]Entry, error) {
	return r.filterEntries(func(e Entry) bool { return e.ParticipantID == participantID }), nil
}

func (r *MemoryRepository) filterEntries(keep func(Entry) bool) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Entry{}
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ParticipantID+out[i].InstanceID < out[j].ParticipantID+out[j].InstanceID
	})
	return out
}

func createdBefore(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return idA < idB
}
