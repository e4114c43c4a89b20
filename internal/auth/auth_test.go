package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"schoolevents/internal/school"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "schoolevents-test"
)

// userTable is an in-memory UserLookup.
type userTable map[int64]school.User

func (t userTable) User(_ context.Context, id int64) (school.User, error) {
	u, ok := t[id]
	if !ok {
		return school.User{}, school.ErrNotFound
	}
	return u, nil
}

func knownUsers() userTable {
	return userTable{
		student.UserID: {ID: student.UserID, Handle: student.Handle, Role: student.Role},
		admin.UserID:   {ID: admin.UserID, Handle: admin.Handle, Role: admin.Role},
	}
}

func setupRouter() *gin.Engine {
	return setupRouterWith(knownUsers())
}

func setupRouterWith(users UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("testsession", cookie.NewStore([]byte("test-secret"))))
	router.Use(Identify(users, testKey, testIssuer))

	router.GET("/whoami", func(c *gin.Context) {
		id, ok := Current(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "user_id": id.UserID, "admin": id.IsAdmin()})
	})
	router.GET("/students", RequireLogin(), func(c *gin.Context) { c.String(http.StatusOK, "students") })
	router.GET("/api/students", RequireAdminJSON(), func(c *gin.Context) { c.String(http.StatusOK, "api students") })
	router.GET("/admin/events", RequireAdmin(), func(c *gin.Context) { c.String(http.StatusOK, "admin events") })
	return router
}

// loginAs stores id in the session through a helper route and returns the cookie.
func loginAs(t *testing.T, router *gin.Engine, id Identity) *http.Cookie {
	t.Helper()
	route := "/test-login/" + strconv.FormatInt(id.UserID, 10)
	router.GET(route, func(c *gin.Context) {
		require.NoError(t, SetSession(c, id))
		c.String(http.StatusOK, "ok")
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, route, nil))
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "testsession" {
			return ck
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func get(router *gin.Engine, path string, mod func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mod != nil {
		mod(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withCookie(ck *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(ck) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

var (
	student = Identity{UserID: 7, Handle: "ana", Role: school.RoleStudent}
	admin   = Identity{UserID: 1, Handle: "admin", Role: school.RoleAdmin}
)

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("student123")
	require.NoError(t, err)
	assert.NotEqual(t, "student123", hash)
	assert.True(t, h.Compare(hash, "student123"))
	assert.False(t, h.Compare(hash, "student124"))
	assert.False(t, h.Compare("not-a-hash", "student123"))

	again, err := h.Hash("student123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted")
	assert.True(t, CheckPassword(again, "student123"))
}

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue(admin, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, admin, claims.Identity())
	assert.Equal(t, "1", claims.Subject)

	_, err = Parse(tok.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(tok.AccessToken, testKey, "someone-else")
	assert.Error(t, err)

	expired, err := Issue(admin, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestIdentifyFromSession(t *testing.T) {
	router := setupRouter()
	ck := loginAs(t, router, student)

	w := get(router, "/whoami", withCookie(ck))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"user_id":7,"admin":false}`, w.Body.String())

	w = get(router, "/whoami", nil)
	assert.JSONEq(t, `{"ok":false,"user_id":0,"admin":false}`, w.Body.String())
}

func TestIdentifyFromBearer(t *testing.T) {
	router := setupRouter()
	tok, err := Issue(admin, testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	w := get(router, "/api/students", withBearer(tok.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/api/students", withBearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(router, "/whoami", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireLogin(t *testing.T) {
	router := setupRouter()

	w := get(router, "/students", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fstudents", w.Header().Get("Location"))

	ck := loginAs(t, router, student)
	w = get(router, "/students", withCookie(ck))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	router := setupRouter()

	w := get(router, "/admin/events", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login")

	w = get(router, "/admin/events", withCookie(loginAs(t, router, student)))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "admin events")
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	router := setupRouter()
	w := get(router, "/admin/events", withCookie(loginAs(t, router, admin)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin events", w.Body.String())
}

func TestRequireAdminJSON(t *testing.T) {
	router := setupRouter()

	w := get(router, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(router, "/api/students", withCookie(loginAs(t, router, student)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestClearSession(t *testing.T) {
	router := setupRouter()
	ck := loginAs(t, router, student)
	router.GET("/test-logout", func(c *gin.Context) {
		require.NoError(t, ClearSession(c))
		c.String(http.StatusOK, "bye")
	})

	w := get(router, "/test-logout", withCookie(ck))
	require.Equal(t, http.StatusOK, w.Code)
	var cleared *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "testsession" {
			cleared = c
		}
	}
	require.NotNil(t, cleared)

	w = get(router, "/whoami", withCookie(cleared))
	assert.JSONEq(t, `{"ok":false,"user_id":0,"admin":false}`, w.Body.String())
}

func TestRequireLoginKeepsFullQueryInNext(t *testing.T) {
	router := setupRouter()

	w := get(router, "/students?query=a&event=3", nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/students?query=a&event=3", loc.Query().Get("next"))
	assert.Empty(t, loc.Query().Get("event"))
}

func TestIdentifyRereadsStoredUser(t *testing.T) {
	users := knownUsers()
	router := setupRouterWith(users)
	adminCookie := loginAs(t, router, admin)
	studentCookie := loginAs(t, router, student)

	promoted := users[student.UserID]
	promoted.Role = school.RoleAdmin
	users[student.UserID] = promoted
	w := get(router, "/whoami", withCookie(studentCookie))
	assert.JSONEq(t, `{"ok":true,"user_id":7,"admin":true}`, w.Body.String(), "role comes from the store")

	delete(users, admin.UserID)
	w = get(router, "/admin/events", withCookie(adminCookie))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login")
	assert.NotContains(t, w.Body.String(), "admin events")

	w = get(router, "/whoami", withCookie(adminCookie))
	assert.JSONEq(t, `{"ok":false,"user_id":0,"admin":false}`, w.Body.String())

	tok, err := Issue(admin, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	w = get(router, "/api/students", withBearer(tok.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type brokenLookup struct{}

func (brokenLookup) User(context.Context, int64) (school.User, error) {
	return school.User{}, errors.New("database is down")
}

func TestIdentifyLookupFailure(t *testing.T) {
	session := setupRouter()
	ck := loginAs(t, session, student)

	router := setupRouterWith(brokenLookup{})
	w := get(router, "/whoami", withCookie(ck))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = get(router, "/whoami", nil)
	assert.Equal(t, http.StatusOK, w.Code, "anonymous requests never hit the store")
}
