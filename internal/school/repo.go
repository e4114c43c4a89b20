package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"schoolevents/internal/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Repository persists users, events and registrations. A Repository obtained
// through WithTx runs every method inside that transaction.
type Repository struct {
	db      *sql.DB
	q       querier
	dialect store.Dialect
	inTx    bool
}

// NewRepository creates a repo over an opened database.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db.Client, q: db.Client, dialect: db.Dialect}
}

// WithTx runs fn inside one transaction, committing only if fn returns nil.
// Nested calls reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Repository{db: r.db, q: tx, dialect: r.dialect, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// ---------- Users ----------

const userColumns = `id, username, password_hash, name, role`

func scanUser(s rowScanner) (User, error) {
	var (
		u    User
		name sql.NullString
		role string
	)
	if err := s.Scan(&u.ID, &u.Handle, &u.PasswordHash, &name, &role); err != nil {
		return User{}, err
	}
	u.Name = name.String
	u.Role = ParseRole(role)
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateUser inserts a user. A duplicate handle yields a ValidationError.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.Role == "" {
		u.Role = RoleStudent
	}
	err := r.queryRow(ctx, `
		INSERT INTO users (username, password_hash, name, role)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, u.Handle, u.PasswordHash, nullString(u.Name), string(u.Role)).Scan(&u.ID)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, invalid("username", MsgHandleTaken)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UserByHandle looks a user up by handle.
func (r *Repository) UserByHandle(ctx context.Context, handle string) (User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, handle))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by handle: %w", err)
	}
	return u, nil
}

// UserByID looks a user up by id.
func (r *Repository) UserByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListStudents returns non-admin users ordered by name, then handle.
func (r *Repository) ListStudents(ctx context.Context) ([]User, error) {
	rows, err := r.query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role <> ?
		ORDER BY COALESCE(name, ''), username
	`, string(RoleAdmin))
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUserCascade removes a user together with their registrations.
func (r *Repository) DeleteUserCascade(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		if _, err := tx.exec(ctx, `DELETE FROM registrations WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("delete user registrations: %w", err)
		}
		res, err := tx.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return expectOne(res)
	})
}

// ---------- Events ----------

const eventColumns = `id, title, starts_at, description`

func scanEvent(s rowScanner) (Event, error) {
	var e Event
	if err := s.Scan(&e.ID, &e.Title, &e.Date, &e.Description); err != nil {
		return Event{}, err
	}
	return e, nil
}

// CreateEvent inserts an event and returns it with its id.
func (r *Repository) CreateEvent(ctx context.Context, e Event) (Event, error) {
	e.Date = e.Date.UTC()
	err := r.queryRow(ctx, `
		INSERT INTO events (title, starts_at, description)
		VALUES (?, ?, ?)
		RETURNING id
	`, e.Title, e.Date, e.Description).Scan(&e.ID)
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// UpdateEvent replaces title, date and description of an existing event.
func (r *Repository) UpdateEvent(ctx context.Context, e Event) error {
	res, err := r.exec(ctx, `
		UPDATE events SET title = ?, starts_at = ?, description = ?
		WHERE id = ?
	`, e.Title, e.Date.UTC(), e.Description, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return expectOne(res)
}

// DeleteEventCascade removes an event and all of its registrations in one
// transaction. It returns how many registrations went with it.
func (r *Repository) DeleteEventCascade(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := r.WithTx(ctx, func(tx *Repository) error {
		res, err := tx.exec(ctx, `DELETE FROM registrations WHERE event_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete event registrations: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.exec(ctx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return expectOne(res)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// EventByID returns a single event.
func (r *Repository) EventByID(ctx context.Context, id int64) (Event, error) {
	e, err := scanEvent(r.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events by ascending date.
func (r *Repository) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := r.query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------- Registrations ----------

const registrationColumns = `id, user_id, event_id, attended, registered_at`

func scanRegistration(s rowScanner) (Registration, error) {
	var reg Registration
	if err := s.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Attended, &reg.RegisteredAt); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

// CreateRegistration inserts a registration unless one already exists for
// the pair. The existence check gives the common case a clean answer; the
// UNIQUE(user_id, event_id) constraint settles concurrent inserts.
func (r *Repository) CreateRegistration(ctx context.Context, reg Registration) (Registration, error) {
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now()
	}
	reg.RegisteredAt = reg.RegisteredAt.UTC()

	err := r.WithTx(ctx, func(tx *Repository) error {
		if _, err := tx.EventByID(ctx, reg.EventID); err != nil {
			return err
		}
		_, err := tx.RegistrationFor(ctx, reg.UserID, reg.EventID)
		switch {
		case err == nil:
			return ErrAlreadyRegistered
		case !errors.Is(err, ErrNotFound):
			return err
		}
		reg.ID, err = tx.insertRegistration(ctx, reg)
		return err
	})
	if err != nil {
		return Registration{}, err
	}
	return reg, nil
}

// insertRegistration writes the row without the existence check. A racing
// insert for the same pair surfaces as ErrAlreadyRegistered.
func (r *Repository) insertRegistration(ctx context.Context, reg Registration) (int64, error) {
	var id int64
	err := r.queryRow(ctx, `
		INSERT INTO registrations (user_id, event_id, attended, registered_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, reg.UserID, reg.EventID, reg.Attended, reg.RegisteredAt).Scan(&id)
	if store.IsUniqueViolation(err) {
		return 0, ErrAlreadyRegistered
	}
	if err != nil {
		return 0, fmt.Errorf("insert registration: %w", err)
	}
	return id, nil
}

// RegistrationFor returns the registration of a (user, event) pair.
func (r *Repository) RegistrationFor(ctx context.Context, userID, eventID int64) (Registration, error) {
	reg, err := scanRegistration(r.queryRow(ctx, `
		SELECT `+registrationColumns+` FROM registrations
		WHERE user_id = ? AND event_id = ?
	`, userID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return Registration{}, ErrNotFound
	}
	if err != nil {
		return Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// RegistrationByID returns a single registration.
func (r *Repository) RegistrationByID(ctx context.Context, id int64) (Registration, error) {
	reg, err := scanRegistration(r.queryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Registration{}, ErrNotFound
	}
	if err != nil {
		return Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ToggleAttendance flips the attended flag and returns the new value.
func (r *Repository) ToggleAttendance(ctx context.Context, id int64) (bool, error) {
	var attended bool
	err := r.queryRow(ctx, `
		UPDATE registrations SET attended = NOT attended
		WHERE id = ?
		RETURNING attended
	`, id).Scan(&attended)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle attendance: %w", err)
	}
	return attended, nil
}

// ListRegistrations returns every registration.
func (r *Repository) ListRegistrations(ctx context.Context) ([]Registration, error) {
	rows, err := r.query(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// JoinedRegistrations returns registrations joined with user and event,
// newest event first, optionally limited to one event.
func (r *Repository) JoinedRegistrations(ctx context.Context, eventID *int64) ([]RegistrationView, error) {
	query := `
		SELECT r.id, r.user_id, r.event_id, r.attended, r.registered_at,
		       u.id, u.username, u.password_hash, u.name, u.role,
		       e.id, e.title, e.starts_at, e.description
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		JOIN events e ON e.id = r.event_id`
	var args []any
	if eventID != nil {
		query += ` WHERE r.event_id = ?`
		args = append(args, *eventID)
	}
	query += ` ORDER BY e.starts_at DESC, r.id`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search registrations: %w", err)
	}
	defer rows.Close()

	views := []RegistrationView{}
	for rows.Next() {
		var (
			v    RegistrationView
			name sql.NullString
			role string
		)
		if err := rows.Scan(
			&v.ID, &v.UserID, &v.EventID, &v.Attended, &v.RegisteredAt,
			&v.User.ID, &v.User.Handle, &v.User.PasswordHash, &name, &role,
			&v.Event.ID, &v.Event.Title, &v.Event.Date, &v.Event.Description,
		); err != nil {
			return nil, err
		}
		v.User.Name = name.String
		v.User.Role = ParseRole(role)
		views = append(views, v)
	}
	return views, rows.Err()
}

// RegistrationCounts returns the number of registrations per event id.
func (r *Repository) RegistrationCounts(ctx context.Context) (map[int64]int, error) {
	return r.countBy(ctx, `SELECT event_id, COUNT(*) FROM registrations GROUP BY event_id`)
}

// StudentEventCounts returns the number of registrations per user id.
func (r *Repository) StudentEventCounts(ctx context.Context) (map[int64]int, error) {
	return r.countBy(ctx, `SELECT user_id, COUNT(*) FROM registrations GROUP BY user_id`)
}

// RegisteredEventIDs returns the ids of events the user is registered for.
func (r *Repository) RegisteredEventIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	rows, err := r.query(ctx, `SELECT event_id FROM registrations WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("registered events: %w", err)
	}
	defer rows.Close()

	ids := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *Repository) countBy(ctx context.Context, query string) (map[int64]int, error) {
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	defer rows.Close()

	counts := map[int64]int{}
	for rows.Next() {
		var (
			id int64
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
