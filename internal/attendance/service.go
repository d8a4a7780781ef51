package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventattend/internal/metrics"
	"eventattend/internal/schedule"
)

// ErrNotRegistered is returned when attendance is submitted for a participant that is not
// registered to the instance.
var ErrNotRegistered = fmt.Errorf("%w: participant not registered to instance", ErrInvalidInput)

// ReportCache stores computed instance reports.
type ReportCache interface {
	GetInstanceReport(ctx context.Context, instanceID string) (InstanceReport, bool, error)
	SetInstanceReport(ctx context.Context, rep InstanceReport) error
	Invalidate(ctx context.Context, instanceID string) error
}

// Notifier is told when registrations or attendance of an instance change.
type Notifier interface {
	InstanceChanged(ctx context.Context, instanceID string) error
}

// Service coordinates events, registrations, attendance and reporting.
type Service struct {
	repo     Repository
	loc      *time.Location
	now      func() time.Time
	cache    ReportCache
	notifier Notifier
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the timezone in which "today" is computed.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache enables the report cache.
func WithCache(c ReportCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithNotifier publishes change notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger used for non-fatal cache and notification failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		loc:  time.UTC,
		now:  time.Now,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current date in the service timezone.
func (s *Service) Today() schedule.Date {
	return schedule.DateOf(s.now().In(s.loc))
}

// CreateMasterEvent validates and stores a new master event.
func (s *Service) CreateMasterEvent(ctx context.Context, title, description, location string) (MasterEvent, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return MasterEvent{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	return s.repo.CreateMasterEvent(ctx, MasterEvent{
		Title:       title,
		Description: strings.TrimSpace(description),
		Location:    strings.TrimSpace(location),
		CreatedAt:   s.now().UTC(),
	})
}

// MasterEvent returns one master event.
func (s *Service) MasterEvent(ctx context.Context, id string) (MasterEvent, error) {
	return s.repo.GetMasterEvent(ctx, id)
}

// MasterEvents lists master events in creation order.
func (s *Service) MasterEvents(ctx context.Context) ([]MasterEvent, error) {
	return s.repo.ListMasterEvents(ctx)
}

// NewInstance is the input of CreateInstance.
type NewInstance struct {
	MasterEventID string
	Title         string
	StartTime     string
	Start         schedule.Date
	Recurrence    string
	Until         *schedule.Date
}

// CreateInstance validates and stores an instance of an existing master event. An end
// date before the start date is rejected here; already stored instances violating it
// are evaluated as never active.
func (s *Service) CreateInstance(ctx context.Context, in NewInstance) (Instance, error) {
	if in.Start.IsZero() {
		return Instance{}, fmt.Errorf("%w: start date required", ErrInvalidInput)
	}
	rec, err := schedule.ParseRecurrence(in.Recurrence)
	if err != nil {
		return Instance{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Until != nil && in.Until.Before(in.Start) {
		return Instance{}, fmt.Errorf("%w: recurrence end date before start date", ErrInvalidInput)
	}
	if in.StartTime != "" {
		if _, err := time.Parse("15:04", in.StartTime); err != nil {
			return Instance{}, fmt.Errorf("%w: start time must be HH:MM", ErrInvalidInput)
		}
	}
	if _, err := s.repo.GetMasterEvent(ctx, in.MasterEventID); err != nil {
		return Instance{}, err
	}
	return s.repo.CreateInstance(ctx, Instance{
		MasterEventID: in.MasterEventID,
		Title:         strings.TrimSpace(in.Title),
		StartTime:     in.StartTime,
		Occurrence: schedule.Occurrence{
			Start:      in.Start,
			Recurrence: rec,
			Until:      in.Until,
		},
		CreatedAt: s.now().UTC(),
	})
}

// Instance returns one instance.
func (s *Service) Instance(ctx context.Context, id string) (Instance, error) {
	return s.repo.GetInstance(ctx, id)
}

// Instances lists all instances, or those of one master event.
func (s *Service) Instances(ctx context.Context, masterEventID string) ([]Instance, error) {
	return s.repo.ListInstances(ctx, masterEventID)
}

// ActiveInstances lists the instances active on day.
func (s *Service) ActiveInstances(ctx context.Context, day schedule.Date) ([]Instance, error) {
	all, err := s.repo.ListInstances(ctx, "")
	if err != nil {
		return nil, err
	}
	active := make([]Instance, 0, len(all))
	for _, inst := range all {
		if schedule.IsActiveOn(inst.Occurrence, day) {
			active = append(active, inst)
		}
	}
	return active, nil
}

// InstanceDates lists the dates in [from, to] on which the instance is active.
func (s *Service) InstanceDates(ctx context.Context, id string, from, to schedule.Date) ([]schedule.Date, error) {
	inst, err := s.repo.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	dates, err := schedule.Dates(inst.Occurrence, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if dates == nil {
		dates = []schedule.Date{}
	}
	return dates, nil
}

// CreateParticipant validates and stores a participant.
func (s *Service) CreateParticipant(ctx context.Context, name, email string) (Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Participant{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	return s.repo.CreateParticipant(ctx, Participant{
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: s.now().UTC(),
	})
}

// Participant returns one participant.
func (s *Service) Participant(ctx context.Context, id string) (Participant, error) {
	return s.repo.GetParticipant(ctx, id)
}

// Participants lists participants by name.
func (s *Service) Participants(ctx context.Context) ([]Participant, error) {
	return s.repo.ListParticipants(ctx)
}

// Register adds a participant to an instance. Registering twice has no effect.
func (s *Service) Register(ctx context.Context, instanceID, participantID string) error {
	if err := s.repo.Register(ctx, instanceID, participantID); err != nil {
		return err
	}
	metrics.RegistrationChanges.WithLabelValues("register").Inc()
	s.changed(ctx, instanceID)
	return nil
}

// Unregister removes a participant from an instance. Removing a non-member has no
// effect. Recorded attendance is kept.
func (s *Service) Unregister(ctx context.Context, instanceID, participantID string) error {
	if _, err := s.repo.GetInstance(ctx, instanceID); err != nil {
		return err
	}
	if err := s.repo.Unregister(ctx, instanceID, participantID); err != nil {
		return err
	}
	metrics.RegistrationChanges.WithLabelValues("unregister").Inc()
	s.changed(ctx, instanceID)
	return nil
}

// Registered lists the participants registered to an instance.
func (s *Service) Registered(ctx context.Context, instanceID string) ([]Participant, error) {
	if _, err := s.repo.GetInstance(ctx, instanceID); err != nil {
		return nil, err
	}
	ids, err := s.repo.Registrations(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	byID, err := s.participantsByID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, lookupParticipant(byID, id))
	}
	return out, nil
}

// SubmitAttendance records a status for a registered participant, replacing any
// previous status of the pair.
func (s *Service) SubmitAttendance(ctx context.Context, instanceID, participantID, status string) (Entry, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return Entry{}, err
	}
	if _, err := s.repo.GetInstance(ctx, instanceID); err != nil {
		return Entry{}, err
	}
	ids, err := s.repo.Registrations(ctx, instanceID)
	if err != nil {
		return Entry{}, err
	}
	if !contains(ids, participantID) {
		return Entry{}, ErrNotRegistered
	}

	e, err := s.repo.UpsertEntry(ctx, Entry{
		ParticipantID: participantID,
		InstanceID:    instanceID,
		Status:        st,
		RecordedAt:    s.now().UTC(),
	})
	if err != nil {
		return Entry{}, err
	}
	metrics.AttendanceSubmitted.WithLabelValues(string(st)).Inc()
	s.changed(ctx, instanceID)
	return e, nil
}

// InstanceReport returns the report of one instance, from the cache when available.
func (s *Service) InstanceReport(ctx context.Context, instanceID string) (InstanceReport, error) {
	if s.cache != nil {
		rep, ok, err := s.cache.GetInstanceReport(ctx, instanceID)
		switch {
		case err != nil:
			s.log.Warn("report cache read failed", "instance_id", instanceID, "err", err)
		case ok:
			metrics.ReportCacheLookups.WithLabelValues("hit").Inc()
			return rep, nil
		default:
			metrics.ReportCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	rep, err := s.computeInstanceReport(ctx, instanceID)
	if err != nil {
		return InstanceReport{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetInstanceReport(ctx, rep); err != nil {
			s.log.Warn("report cache write failed", "instance_id", instanceID, "err", err)
		}
	}
	return rep, nil
}

// RefreshInstanceReport recomputes an instance report and replaces the cached copy.
func (s *Service) RefreshInstanceReport(ctx context.Context, instanceID string) (InstanceReport, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, instanceID); err != nil {
			s.log.Warn("report cache invalidate failed", "instance_id", instanceID, "err", err)
		}
	}
	return s.InstanceReport(ctx, instanceID)
}

func (s *Service) computeInstanceReport(ctx context.Context, instanceID string) (InstanceReport, error) {
	start := time.Now()
	defer func() { metrics.ReportDuration.Observe(time.Since(start).Seconds()) }()

	inst, err := s.repo.GetInstance(ctx, instanceID)
	if err != nil {
		return InstanceReport{}, err
	}
	ids, err := s.repo.Registrations(ctx, instanceID)
	if err != nil {
		return InstanceReport{}, err
	}
	entries, err := s.repo.Entries(ctx, instanceID)
	if err != nil {
		return InstanceReport{}, err
	}
	byID, err := s.participantsByID(ctx)
	if err != nil {
		return InstanceReport{}, err
	}
	title := inst.Title
	if title == "" {
		if ev, err := s.repo.GetMasterEvent(ctx, inst.MasterEventID); err == nil {
			title = ev.Title
		}
	}

	rep := Aggregate(ids, entries)
	latest := Latest(entries)
	rows := make([]ParticipantStatus, 0, rep.TotalRegistered)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		row := ParticipantStatus{Participant: lookupParticipant(byID, id), Status: rep.Statuses[id]}
		if e, ok := latest[id]; ok {
			at := e.RecordedAt
			row.RecordedAt = &at
		}
		rows = append(rows, row)
	}
	metrics.ReportsComputed.WithLabelValues("instance").Inc()
	return InstanceReport{Instance: inst, Title: title, Report: rep, Participants: rows}, nil
}

// EventReport combines the reports of all instances of a master event.
func (s *Service) EventReport(ctx context.Context, masterEventID string) (EventReport, error) {
	ev, err := s.repo.GetMasterEvent(ctx, masterEventID)
	if err != nil {
		return EventReport{}, err
	}
	instances, err := s.repo.ListInstances(ctx, masterEventID)
	if err != nil {
		return EventReport{}, err
	}
	out := EventReport{Event: ev, Instances: make([]InstanceSummary, 0, len(instances))}
	reports := make([]Report, 0, len(instances))
	for _, inst := range instances {
		rep, err := s.InstanceReport(ctx, inst.ID)
		if err != nil {
			return EventReport{}, err
		}
		reports = append(reports, rep.Report)
		out.Instances = append(out.Instances, InstanceSummary{Instance: inst, Report: rep.Report})
	}
	out.Report = Combine(reports...)
	metrics.ReportsComputed.WithLabelValues("event").Inc()
	return out, nil
}

// ParticipantReport summarizes a participant's attendance across their instances.
func (s *Service) ParticipantReport(ctx context.Context, participantID string) (ParticipantReport, error) {
	p, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return ParticipantReport{}, err
	}
	instanceIDs, err := s.repo.RegisteredInstances(ctx, participantID)
	if err != nil {
		return ParticipantReport{}, err
	}
	entries, err := s.repo.ParticipantEntries(ctx, participantID)
	if err != nil {
		return ParticipantReport{}, err
	}
	out := ParticipantReport{
		Participant: p,
		Summary:     SummarizeParticipant(participantID, instanceIDs, entries),
		Instances:   make([]Instance, 0, len(instanceIDs)),
	}
	for _, id := range instanceIDs {
		inst, err := s.repo.GetInstance(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return ParticipantReport{}, err
		}
		out.Instances = append(out.Instances, inst)
	}
	metrics.ReportsComputed.WithLabelValues("participant").Inc()
	return out, nil
}

// Dashboard lists the instances active on day with their reports.
func (s *Service) Dashboard(ctx context.Context, day schedule.Date) (Dashboard, error) {
	active, err := s.ActiveInstances(ctx, day)
	if err != nil {
		return Dashboard{}, err
	}
	out := Dashboard{Date: day, Instances: make([]InstanceReport, 0, len(active))}
	for _, inst := range active {
		rep, err := s.InstanceReport(ctx, inst.ID)
		if err != nil {
			return Dashboard{}, err
		}
		out.Instances = append(out.Instances, rep)
	}
	metrics.ActiveInstances.Set(float64(len(active)))
	return out, nil
}

// Feed renders every instance as an iCalendar document.
func (s *Service) Feed(ctx context.Context, name string) (string, error) {
	events, err := s.repo.ListMasterEvents(ctx)
	if err != nil {
		return "", err
	}
	byID := make(map[string]MasterEvent, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	instances, err := s.repo.ListInstances(ctx, "")
	if err != nil {
		return "", err
	}
	items := make([]schedule.FeedItem, 0, len(instances))
	for _, inst := range instances {
		ev := byID[inst.MasterEventID]
		summary := inst.Title
		if summary == "" {
			summary = ev.Title
		}
		items = append(items, schedule.FeedItem{
			UID:         inst.ID,
			Summary:     summary,
			Description: ev.Description,
			Location:    ev.Location,
			Occurrence:  inst.Occurrence,
			Stamp:       inst.CreatedAt,
		})
	}
	return schedule.Calendar(name, items), nil
}

// changed drops the cached report and notifies listeners. Failures are logged only:
// the write already succeeded.
func (s *Service) changed(ctx context.Context, instanceID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, instanceID); err != nil {
			s.log.Warn("report cache invalidate failed", "instance_id", instanceID, "err", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.InstanceChanged(ctx, instanceID); err != nil {
			s.log.Warn("change notification failed", "instance_id", instanceID, "err", err)
		}
	}
}

func (s *Service) participantsByID(ctx context.Context) (map[string]Participant, error) {
	all, err := s.repo.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Participant, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}
	return byID, nil
}

func lookupParticipant(byID map[string]Participant, id string) Participant {
	if p, ok := byID[id]; ok {
		return p
	}
	return Participant{ID: id}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
