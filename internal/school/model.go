package school

import (
	"fmt"
	"time"
)

// Role is the capability carried by an identity.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a stored role value, defaulting to student.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

// User is an identity record. Handle never changes after creation.
type User struct {
	ID           int64  `json:"id"`
	Handle       string `json:"username"`
	PasswordHash string `json:"-"`
	Name         string `json:"name,omitempty"`
	Role         Role   `json:"role"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// DisplayName returns the name when set, otherwise the handle.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Handle
}

// Event is a school activity at a single instant.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Scheduled reports whether the event has not yet elapsed at now.
func (e Event) Scheduled(now time.Time) bool { return !e.Date.Before(now) }

// FormattedDate renders the date as D.M.YYYY HH:MM in loc.
func (e Event) FormattedDate(loc *time.Location) string {
	d := e.Date
	if loc != nil {
		d = d.In(loc)
	}
	return fmt.Sprintf("%d.%d.%d %s", d.Day(), int(d.Month()), d.Year(), d.Format("15:04"))
}

// Registration links one user to one event.
type Registration struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	EventID      int64     `json:"event_id"`
	Attended     bool      `json:"attended"`
	RegisteredAt time.Time `json:"registration_date"`
}

// RegistrationView is a registration joined with its user and event.
type RegistrationView struct {
	Registration
	User  User  `json:"user"`
	Event Event `json:"event"`
}

// AttendanceCell is one (student, event) entry of the attendance matrix.
// RegistrationID is nil when the student has not registered.
type AttendanceCell struct {
	Registered     bool   `json:"registered"`
	Attended       bool   `json:"attended"`
	RegistrationID *int64 `json:"registration_id"`
}

// Matrix maps student id to event id to cell.
type Matrix map[int64]map[int64]AttendanceCell

// Cell returns the cell for a pair, or the unregistered cell if absent.
func (m Matrix) Cell(studentID, eventID int64) AttendanceCell {
	return m[studentID][eventID]
}

// AttendanceReport bundles the matrix with the rows and columns it covers.
type AttendanceReport struct {
	Students []User  `json:"students"`
	Events   []Event `json:"events"`
	Matrix   Matrix  `json:"student_matrix"`
}

// Partitioned holds events split around a reference instant.
type Partitioned struct {
	Scheduled []Event `json:"current_events"`
	Elapsed   []Event `json:"previous_events"`
}

// EventSummary is the public listing shape of an event.
type EventSummary struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date"`
	FormattedDate   string    `json:"formatted_date"`
	RegisteredCount int       `json:"registered_count"`
	IsRegistered    bool      `json:"is_registered"`
}

// StudentSummary is a student with the number of registrations they hold.
type StudentSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Handle     string `json:"username"`
	EventCount int    `json:"event_count"`
}
