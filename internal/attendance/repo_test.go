package attendance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"eventattend/internal/schedule"
)

func newSQLiteRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db, DriverSQLite)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return repo
}

// repositories returns every Repository implementation that can run without external
// services.
func repositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": newSQLiteRepo(t),
	}
}

func TestRepositories(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ev, err := repo.CreateMasterEvent(ctx, MasterEvent{Title: "Standup", Location: "Room 4"})
			if err != nil {
				t.Fatal(err)
			}
			got, err := repo.GetMasterEvent(ctx, ev.ID)
			if err != nil || got.Title != "Standup" || got.Location != "Room 4" {
				t.Fatalf("GetMasterEvent() = %+v, %v", got, err)
			}
			if _, err := repo.GetMasterEvent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetMasterEvent(missing) error = %v", err)
			}

			until := mustDate("2024-01-31")
			inst, err := repo.CreateInstance(ctx, Instance{
				MasterEventID: ev.ID,
				StartTime:     "09:00",
				Occurrence:    schedule.Occurrence{Start: mustDate("2024-01-01"), Recurrence: schedule.Weekly, Until: &until},
			})
			if err != nil {
				t.Fatal(err)
			}
			single, err := repo.CreateInstance(ctx, Instance{
				MasterEventID: ev.ID,
				Occurrence:    schedule.Occurrence{Start: mustDate("2023-12-24")},
			})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := repo.CreateInstance(ctx, Instance{MasterEventID: "missing", Occurrence: schedule.Occurrence{Start: mustDate("2024-01-01")}}); !errors.Is(err, ErrNotFound) {
				t.Errorf("CreateInstance(missing event) error = %v", err)
			}

			gotInst, err := repo.GetInstance(ctx, inst.ID)
			if err != nil {
				t.Fatal(err)
			}
			if gotInst.Start != inst.Start || gotInst.Recurrence != schedule.Weekly || gotInst.Until == nil || *gotInst.Until != until {
				t.Errorf("GetInstance() = %+v", gotInst)
			}
			gotSingle, err := repo.GetInstance(ctx, single.ID)
			if err != nil {
				t.Fatal(err)
			}
			if gotSingle.Until != nil {
				t.Errorf("single Until = %v, want nil", gotSingle.Until)
			}

			list, err := repo.ListInstances(ctx, ev.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].ID != single.ID {
				t.Errorf("ListInstances() order = %+v", list)
			}
			if other, _ := repo.ListInstances(ctx, "other"); len(other) != 0 {
				t.Errorf("ListInstances(other) = %+v", other)
			}

			alice, err := repo.CreateParticipant(ctx, Participant{Name: "Alice", Email: "alice@example.com"})
			if err != nil {
				t.Fatal(err)
			}
			bob, err := repo.CreateParticipant(ctx, Participant{Name: "Bob"})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := repo.CreateParticipant(ctx, Participant{Name: "Other", Email: "alice@example.com"}); !errors.Is(err, ErrConflict) {
				t.Errorf("duplicate email error = %v", err)
			}
			if _, err := repo.CreateParticipant(ctx, Participant{Name: "Dan"}); err != nil {
				t.Errorf("second participant without email error = %v", err)
			}

			for i := 0; i < 2; i++ {
				if err := repo.Register(ctx, inst.ID, alice.ID); err != nil {
					t.Fatal(err)
				}
			}
			if err := repo.Register(ctx, inst.ID, bob.ID); err != nil {
				t.Fatal(err)
			}
			if err := repo.Register(ctx, single.ID, alice.ID); err != nil {
				t.Fatal(err)
			}
			if err := repo.Register(ctx, inst.ID, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Register(missing participant) error = %v", err)
			}
			ids, err := repo.Registrations(ctx, inst.ID)
			if err != nil || len(ids) != 2 {
				t.Fatalf("Registrations() = %v, %v", ids, err)
			}
			mine, err := repo.RegisteredInstances(ctx, alice.ID)
			if err != nil || len(mine) != 2 {
				t.Fatalf("RegisteredInstances() = %v, %v", mine, err)
			}
			if err := repo.Unregister(ctx, inst.ID, "nobody"); err != nil {
				t.Errorf("Unregister(non-member) error = %v", err)
			}

			first := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
			if _, err := repo.UpsertEntry(ctx, Entry{InstanceID: inst.ID, ParticipantID: alice.ID, Status: StatusAbsent, RecordedAt: first}); err != nil {
				t.Fatal(err)
			}
			if _, err := repo.UpsertEntry(ctx, Entry{InstanceID: inst.ID, ParticipantID: alice.ID, Status: StatusPresent, RecordedAt: first.Add(time.Minute)}); err != nil {
				t.Fatal(err)
			}
			if _, err := repo.UpsertEntry(ctx, Entry{InstanceID: inst.ID, ParticipantID: bob.ID, Status: StatusExcused, RecordedAt: first}); err != nil {
				t.Fatal(err)
			}
			entries, err := repo.Entries(ctx, inst.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 2 {
				t.Fatalf("Entries() = %+v, want one per participant", entries)
			}
			rep := Aggregate(ids, entries)
			if rep.PresentCount != 1 || rep.Rate != 50 {
				t.Errorf("Aggregate over stored data = %+v", rep)
			}
			if !Latest(entries)[alice.ID].RecordedAt.Equal(first.Add(time.Minute)) {
				t.Errorf("upsert did not replace recorded_at: %+v", entries)
			}

			pe, err := repo.ParticipantEntries(ctx, alice.ID)
			if err != nil || len(pe) != 1 {
				t.Errorf("ParticipantEntries() = %+v, %v", pe, err)
			}

			people, err := repo.ListParticipants(ctx)
			if err != nil || len(people) != 3 || people[0].Name != "Alice" {
				t.Errorf("ListParticipants() = %+v, %v", people, err)
			}
		})
	}
}

func TestSQLRepositoryPlaceholders(t *testing.T) {
	pg := NewSQLRepository(nil, DriverPostgres)
	lite := NewSQLRepository(nil, DriverSQLite)
	query := `SELECT 1 WHERE a = $1 AND b = $2 AND c = $10`
	if got := pg.q(query); got != query {
		t.Errorf("postgres query rewritten: %q", got)
	}
	if got := lite.q(query); got != `SELECT 1 WHERE a = ? AND b = ? AND c = ?` {
		t.Errorf("sqlite query = %q", got)
	}
}
