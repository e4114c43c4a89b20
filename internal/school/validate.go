package school

import (
	"strings"
	"time"
)

const (
	// MinEventYear is the earliest year accepted when creating or editing events.
	MinEventYear = 2025
	// MinHandleLength is the shortest accepted username.
	MinHandleLength = 3
	// DateLayout is the accepted event date input shape.
	DateLayout = "2006-01-02T15:04"
)

// ParseEventDate parses YYYY-MM-DDTHH:MM as wall-clock time in loc.
func ParseEventDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, invalid("date", MsgInvalidDate)
	}
	if t.Year() < MinEventYear {
		return time.Time{}, invalid("date", MsgYearTooEarly)
	}
	return t, nil
}

// ValidateHandle checks the length rule; uniqueness is checked against storage.
func ValidateHandle(handle string) error {
	if len([]rune(handle)) < MinHandleLength {
		return invalid("username", MsgHandleTooShort)
	}
	return nil
}
