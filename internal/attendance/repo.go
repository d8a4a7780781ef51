package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"eventattend/internal/schedule"
)

// SQL drivers understood by SQLRepository.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// SQLRepository persists attendance data in Postgres or SQLite.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// NewSQLRepository creates a repo for a database opened with driver.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: db, driver: driver}
}

var placeholder = regexp.MustCompile(`\$\d+`)

// q adapts a query written with $n placeholders to the driver.
func (r *SQLRepository) q(query string) string {
	if r.driver == DriverSQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

// Migrate creates the tables when they do not exist.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if r.driver == DriverSQLite {
		ts = "DATETIME"
	}
	schema := strings.ReplaceAll(`
	CREATE TABLE IF NOT EXISTS master_events (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL DEFAULT '',
		created_at  {ts} NOT NULL
	);
	CREATE TABLE IF NOT EXISTS event_instances (
		id              TEXT PRIMARY KEY,
		master_event_id TEXT NOT NULL REFERENCES master_events(id),
		title           TEXT NOT NULL DEFAULT '',
		start_time      TEXT NOT NULL DEFAULT '',
		start_date      DATE NOT NULL,
		recurrence      TEXT NOT NULL DEFAULT 'none',
		recurrence_end  DATE,
		created_at      {ts} NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_instances_master ON event_instances(master_event_id);
	CREATE TABLE IF NOT EXISTS participants (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		created_at {ts} NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_email ON participants(lower(email)) WHERE email <> '';
	CREATE TABLE IF NOT EXISTS registrations (
		instance_id    TEXT NOT NULL REFERENCES event_instances(id),
		participant_id TEXT NOT NULL REFERENCES participants(id),
		registered_at  {ts} NOT NULL,
		PRIMARY KEY (instance_id, participant_id)
	);
	CREATE INDEX IF NOT EXISTS idx_registrations_participant ON registrations(participant_id);
	CREATE TABLE IF NOT EXISTS attendance_entries (
		instance_id    TEXT NOT NULL REFERENCES event_instances(id),
		participant_id TEXT NOT NULL REFERENCES participants(id),
		status         TEXT NOT NULL,
		recorded_at    {ts} NOT NULL,
		PRIMARY KEY (instance_id, participant_id)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_participant ON attendance_entries(participant_id);
	`, "{ts}", ts)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) CreateMasterEvent(ctx context.Context, ev MasterEvent) (MasterEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO master_events (id, title, description, location, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`), ev.ID, ev.Title, ev.Description, ev.Location, ev.CreatedAt)
	if err != nil {
		return MasterEvent{}, r.mapErr(err)
	}
	return ev, nil
}

const masterEventColumns = `id, title, description, location, created_at`

func scanMasterEvent(row interface{ Scan(...any) error }) (MasterEvent, error) {
	var ev MasterEvent
	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.CreatedAt)
	return ev, err
}

func (r *SQLRepository) GetMasterEvent(ctx context.Context, id string) (MasterEvent, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+masterEventColumns+` FROM master_events WHERE id = $1`), id)
	ev, err := scanMasterEvent(row)
	if err != nil {
		return MasterEvent{}, r.mapErr(err)
	}
	return ev, nil
}

func (r *SQLRepository) ListMasterEvents(ctx context.Context) ([]MasterEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+masterEventColumns+` FROM master_events ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []MasterEvent{}
	for rows.Next() {
		ev, err := scanMasterEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (r *SQLRepository) CreateInstance(ctx context.Context, inst Instance) (Instance, error) {
	if _, err := r.GetMasterEvent(ctx, inst.MasterEventID); err != nil {
		return Instance{}, err
	}
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}
	if inst.Recurrence == "" {
		inst.Recurrence = schedule.None
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO event_instances (id, master_event_id, title, start_time, start_date, recurrence, recurrence_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`), inst.ID, inst.MasterEventID, inst.Title, inst.StartTime, inst.Start, string(inst.Recurrence), inst.Until, inst.CreatedAt)
	if err != nil {
		return Instance{}, r.mapErr(err)
	}
	return inst, nil
}

const instanceColumns = `id, master_event_id, title, start_time, start_date, recurrence, recurrence_end, created_at`

func scanInstance(row interface{ Scan(...any) error }) (Instance, error) {
	var inst Instance
	err := row.Scan(&inst.ID, &inst.MasterEventID, &inst.Title, &inst.StartTime, &inst.Start, &inst.Recurrence, &inst.Until, &inst.CreatedAt)
	return inst, err
}

func (r *SQLRepository) GetInstance(ctx context.Context, id string) (Instance, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+instanceColumns+` FROM event_instances WHERE id = $1`), id)
	inst, err := scanInstance(row)
	if err != nil {
		return Instance{}, r.mapErr(err)
	}
	return inst, nil
}

func (r *SQLRepository) ListInstances(ctx context.Context, masterEventID string) ([]Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM event_instances`
	args := []any{}
	if masterEventID != "" {
		query += ` WHERE master_event_id = $1`
		args = append(args, masterEventID)
	}
	query += ` ORDER BY start_date, created_at, id`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inst)
	}
	return res, rows.Err()
}

func (r *SQLRepository) CreateParticipant(ctx context.Context, p Participant) (Participant, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO participants (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`), p.ID, p.Name, p.Email, p.CreatedAt)
	if err != nil {
		return Participant{}, r.mapErr(err)
	}
	return p, nil
}

func (r *SQLRepository) GetParticipant(ctx context.Context, id string) (Participant, error) {
	var p Participant
	err := r.db.QueryRowContext(ctx, r.q(`SELECT id, name, email, created_at FROM participants WHERE id = $1`), id).
		Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		return Participant{}, r.mapErr(err)
	}
	return p, nil
}

func (r *SQLRepository) ListParticipants(ctx context.Context) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, created_at FROM participants ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Participant{}
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *SQLRepository) Register(ctx context.Context, instanceID, participantID string) error {
	if _, err := r.GetInstance(ctx, instanceID); err != nil {
		return err
	}
	if _, err := r.GetParticipant(ctx, participantID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO registrations (instance_id, participant_id, registered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (instance_id, participant_id) DO NOTHING
	`), instanceID, participantID, time.Now().UTC())
	return r.mapErr(err)
}

func (r *SQLRepository) Unregister(ctx context.Context, instanceID, participantID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM registrations WHERE instance_id = $1 AND participant_id = $2`), instanceID, participantID)
	return err
}

func (r *SQLRepository) Registrations(ctx context.Context, instanceID string) ([]string, error) {
	return r.ids(ctx, `SELECT participant_id FROM registrations WHERE instance_id = $1 ORDER BY registered_at, participant_id`, instanceID)
}

func (r *SQLRepository) RegisteredInstances(ctx context.Context, participantID string) ([]string, error) {
	return r.ids(ctx, `SELECT instance_id FROM registrations WHERE participant_id = $1 ORDER BY instance_id`, participantID)
}

func (r *SQLRepository) ids(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// UpsertEntry writes the entry in a single statement; the primary key makes concurrent
// submissions for the same pair collapse into one row.
func (r *SQLRepository) UpsertEntry(ctx context.Context, e Entry) (Entry, error) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO attendance_entries (instance_id, participant_id, status, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_id, participant_id) DO UPDATE SET
			status = EXCLUDED.status,
			recorded_at = EXCLUDED.recorded_at
	`), e.InstanceID, e.ParticipantID, string(e.Status), e.RecordedAt)
	if err != nil {
		return Entry{}, r.mapErr(err)
	}
	return e, nil
}

func (r *SQLRepository) Entries(ctx context.Context, instanceID string) ([]Entry, error) {
	return r.entries(ctx, `WHERE instance_id = $1`, instanceID)
}

func (r *SQLRepository) ParticipantEntries(ctx context.Context, participantID string) ([]Entry, error) {
	return r.entries(ctx, `WHERE participant_id = $1`, participantID)
}

func (r *SQLRepository) entries(ctx context.Context, where, arg string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT instance_id, participant_id, status, recorded_at
		FROM attendance_entries `+where+`
		ORDER BY recorded_at, participant_id, instance_id
	`), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.InstanceID, &e.ParticipantID, &e.Status, &e.RecordedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// mapErr translates driver errors into the package sentinels.
func (r *SQLRepository) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Detail)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Detail)
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrConflict, liteErr)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrNotFound, liteErr)
		}
	}
	return err
}
