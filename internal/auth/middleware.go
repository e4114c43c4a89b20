package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"schoolevents/internal/school"
)

// MsgLoginRequired is flashed when an anonymous visitor hits a protected page.
const MsgLoginRequired = "Please log in to access this page."

// Identify resolves the caller from the cookie session, falling back to a
// bearer JWT signed with HS256. Either way the user is re-read through users
// on every request, so a deleted user is anonymous and a role change applies
// at once. A present but invalid bearer token is rejected.
func Identify(users UserLookup, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if uid, ok := sessionUser(c); ok {
			u, err := users.User(ctx, uid)
			switch {
			case err == nil:
				c.Set(contextKey, FromUser(u))
				c.Next()
				return
			case errors.Is(err, school.ErrNotFound):
				_ = ClearSession(c)
			default:
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
				return
			}
		}
		authz := c.GetHeader("Authorization")
		if authz == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		u, err := users.User(ctx, claims.UserID)
		switch {
		case errors.Is(err, school.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		case err != nil:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.Set(contextKey, FromUser(u))
		c.Next()
	}
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// RequireLogin lets identified callers through. Pages redirect to /login,
// API routes answer 401.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Current(c); ok {
			c.Next()
			return
		}
		if isAPI(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		session := sessions.Default(c)
		session.AddFlash(MsgLoginRequired)
		_ = session.Save()
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// RequireAdmin sends non-admins back to the index without touching anything.
// Anonymous callers get the login redirect first.
func RequireAdmin() gin.HandlerFunc {
	login := RequireLogin()
	return func(c *gin.Context) {
		id, ok := Current(c)
		if !ok {
			login(c)
			return
		}
		if !id.IsAdmin() {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdminJSON is RequireAdmin for JSON endpoints.
func RequireAdminJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Current(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		if !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
