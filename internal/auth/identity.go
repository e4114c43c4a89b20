package auth

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"schoolevents/internal/school"
)

// Session keys holding the logged-in identity.
const (
	sessionUserID = "user_id"
	sessionHandle = "handle"
	sessionRole   = "role"
)

const contextKey = "identity"

// Identity is who a request acts as.
type Identity struct {
	UserID int64       `json:"user_id"`
	Handle string      `json:"username"`
	Role   school.Role `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == school.RoleAdmin }

// UserLookup resolves a stored user by id. *school.Service satisfies it.
type UserLookup interface {
	User(ctx context.Context, id int64) (school.User, error)
}

// FromUser builds the identity of a stored user.
func FromUser(u school.User) Identity {
	return Identity{UserID: u.ID, Handle: u.Handle, Role: u.Role}
}

// SetSession logs the identity into the cookie session.
func SetSession(c *gin.Context, id Identity) error {
	session := sessions.Default(c)
	session.Set(sessionUserID, id.UserID)
	session.Set(sessionHandle, id.Handle)
	session.Set(sessionRole, string(id.Role))
	return session.Save()
}

// ClearSession logs the session out. Pending flashes are dropped with it.
func ClearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// sessionUser returns the user id stored in the session. Handle and role in
// the cookie are informational only; the stored user is authoritative.
func sessionUser(c *gin.Context) (int64, bool) {
	uid, ok := sessions.Default(c).Get(sessionUserID).(int64)
	return uid, ok && uid > 0
}

// Current returns the identity resolved by Identify, if any.
func Current(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
