package school

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User-facing messages.
const (
	MsgInvalidDate        = "Invalid date format"
	MsgYearTooEarly       = "Event year cannot be earlier than 2025"
	MsgHandleTooShort     = "Username must be at least 3 characters long"
	MsgHandleTaken        = "Username already exists"
	MsgPasswordRequired   = "Password is required"
	MsgInvalidCredentials = "Invalid username or password"
)

// ValidationError is a rejected input. Message is safe to show to users.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is a *ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
