package school

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"schoolevents/internal/metrics"
)

// PasswordHasher turns secrets into one-way hashes and verifies them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Service coordinates account, event and registration rules on top of the
// repository.
type Service struct {
	repo   *Repository
	hasher PasswordHasher
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the location event dates are entered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, hasher PasswordHasher, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		hasher: hasher,
		loc:    time.Local,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository exposes the underlying repository for tooling such as seeding.
func (s *Service) Repository() *Repository { return s.repo }

// Location is where event dates are interpreted and displayed.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// ---------- Accounts ----------

// SignUp creates a student account.
func (s *Service) SignUp(ctx context.Context, handle, password, name string) (User, error) {
	handle = strings.TrimSpace(handle)
	if err := ValidateHandle(handle); err != nil {
		return User{}, err
	}
	if _, err := s.repo.UserByHandle(ctx, handle); err == nil {
		return User{}, invalid("username", MsgHandleTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	if password == "" {
		return User{}, invalid("password", MsgPasswordRequired)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.CreateUser(ctx, User{
		Handle:       handle,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         RoleStudent,
	})
	if err != nil {
		return User{}, err
	}
	s.log.Info().Int64("user_id", u.ID).Str("username", u.Handle).Msg("user signed up")
	return u, nil
}

// dummyHash keeps unknown-handle logins about as slow as wrong-password ones.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z4zD8Q9VhG4P3YzUq6t6Ui2K"

// Authenticate verifies credentials. Unknown handles and wrong passwords
// both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, handle, password string) (User, error) {
	u, err := s.repo.UserByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return User{}, err
		}
		s.hasher.Compare(dummyHash, password)
		metrics.Logins.WithLabelValues("failure").Inc()
		return User{}, ErrInvalidCredentials
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		metrics.Logins.WithLabelValues("failure").Inc()
		return User{}, ErrInvalidCredentials
	}
	metrics.Logins.WithLabelValues("success").Inc()
	return u, nil
}

// User returns a user by id.
func (s *Service) User(ctx context.Context, id int64) (User, error) {
	return s.repo.UserByID(ctx, id)
}

// ---------- Events ----------

// CreateEvent validates the date and persists a new event.
func (s *Service) CreateEvent(ctx context.Context, title, date, description string) (Event, error) {
	when, err := ParseEventDate(date, s.loc)
	if err != nil {
		return Event{}, err
	}
	e, err := s.repo.CreateEvent(ctx, Event{Title: title, Date: when, Description: description})
	if err != nil {
		return Event{}, err
	}
	s.log.Info().Int64("event_id", e.ID).Str("title", e.Title).Msg("event created")
	return e, nil
}

// EditEvent replaces all editable fields of an event.
func (s *Service) EditEvent(ctx context.Context, id int64, title, date, description string) (Event, error) {
	when, err := ParseEventDate(date, s.loc)
	if err != nil {
		return Event{}, err
	}
	e := Event{ID: id, Title: title, Date: when, Description: description}
	if err := s.repo.UpdateEvent(ctx, e); err != nil {
		return Event{}, err
	}
	s.log.Info().Int64("event_id", id).Msg("event updated")
	return e, nil
}

// DeleteEvent removes an event and its registrations.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	removed, err := s.repo.DeleteEventCascade(ctx, id)
	if err != nil {
		return err
	}
	s.log.Info().Int64("event_id", id).Int64("registrations", removed).Msg("event deleted")
	return nil
}

// Event returns a single event.
func (s *Service) Event(ctx context.Context, id int64) (Event, error) {
	return s.repo.EventByID(ctx, id)
}

// Events returns every event by ascending date.
func (s *Service) Events(ctx context.Context) ([]Event, error) {
	return s.repo.ListEvents(ctx)
}

// ListPartitioned splits all events around now.
func (s *Service) ListPartitioned(ctx context.Context, now time.Time) (Partitioned, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return Partitioned{}, err
	}
	return Partition(events, now), nil
}

// EventSummaries lists events split around now with registration counts.
// viewerID > 0 marks the events that user is registered for.
func (s *Service) EventSummaries(ctx context.Context, now time.Time, viewerID int64) (current, previous []EventSummary, err error) {
	p, err := s.ListPartitioned(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	counts, err := s.repo.RegistrationCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	mine := map[int64]bool{}
	if viewerID > 0 {
		if mine, err = s.repo.RegisteredEventIDs(ctx, viewerID); err != nil {
			return nil, nil, err
		}
	}
	summarize := func(events []Event) []EventSummary {
		out := make([]EventSummary, 0, len(events))
		for _, e := range events {
			out = append(out, EventSummary{
				ID:              e.ID,
				Title:           e.Title,
				Description:     e.Description,
				Date:            e.Date,
				FormattedDate:   e.FormattedDate(s.loc),
				RegisteredCount: counts[e.ID],
				IsRegistered:    mine[e.ID],
			})
		}
		return out
	}
	return summarize(p.Scheduled), summarize(p.Elapsed), nil
}

// ---------- Registrations ----------

// Register signs a user up for an event. A repeated call for the same pair
// returns ErrAlreadyRegistered and creates nothing.
func (s *Service) Register(ctx context.Context, userID, eventID int64) (Registration, error) {
	reg, err := s.repo.CreateRegistration(ctx, Registration{
		UserID:       userID,
		EventID:      eventID,
		RegisteredAt: s.now(),
	})
	switch {
	case errors.Is(err, ErrAlreadyRegistered):
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return Registration{}, err
	case err != nil:
		return Registration{}, err
	}
	metrics.Registrations.WithLabelValues("created").Inc()
	s.log.Info().Int64("user_id", userID).Int64("event_id", eventID).Msg("registered for event")
	return reg, nil
}

// IsRegistered reports whether the user holds a registration for the event.
func (s *Service) IsRegistered(ctx context.Context, userID, eventID int64) (bool, error) {
	_, err := s.repo.RegistrationFor(ctx, userID, eventID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ToggleAttendance flips the attended flag of a registration.
func (s *Service) ToggleAttendance(ctx context.Context, registrationID int64) (bool, error) {
	attended, err := s.repo.ToggleAttendance(ctx, registrationID)
	if err != nil {
		return false, err
	}
	metrics.AttendanceToggles.Inc()
	s.log.Info().Int64("registration_id", registrationID).Bool("attended", attended).Msg("attendance toggled")
	return attended, nil
}

// AttendanceMatrix builds the student x event grid over all non-admin users
// and all events.
func (s *Service) AttendanceMatrix(ctx context.Context) (AttendanceReport, error) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return AttendanceReport{}, err
	}
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return AttendanceReport{}, err
	}
	regs, err := s.repo.ListRegistrations(ctx)
	if err != nil {
		return AttendanceReport{}, err
	}
	return AttendanceReport{
		Students: students,
		Events:   events,
		Matrix:   BuildMatrix(students, events, regs),
	}, nil
}

// SearchRegistrations filters registrations by a name/handle substring and
// an event id. Empty values, or an event filter that is not a non-negative
// integer, do not filter.
func (s *Service) SearchRegistrations(ctx context.Context, query, eventFilter string) ([]RegistrationView, error) {
	var eventID *int64
	if id, ok := parseEventFilter(eventFilter); ok {
		eventID = &id
	}
	views, err := s.repo.JoinedRegistrations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return filterByQuery(views, query), nil
}

func parseEventFilter(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, false
	}
	return int64(id), true
}

// StudentSummaries lists students with their registration counts.
func (s *Service) StudentSummaries(ctx context.Context) ([]StudentSummary, error) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.StudentEventCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StudentSummary, 0, len(students))
	for _, u := range students {
		out = append(out, StudentSummary{
			ID:         u.ID,
			Name:       u.DisplayName(),
			Handle:     u.Handle,
			EventCount: counts[u.ID],
		})
	}
	return out, nil
}
