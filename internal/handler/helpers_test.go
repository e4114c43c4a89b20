package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"schoolevents/internal/auth"
	"schoolevents/internal/httpmiddleware"
	"schoolevents/internal/school"
	"schoolevents/internal/seed"
	"schoolevents/internal/store/storetest"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "school-events-test"
)

var refNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	engine *gin.Engine
	svc    *school.Service
	repo   *school.Repository
	seeder *seed.Seeder
}

func newTestEnv(t *testing.T, limiter httpmiddleware.Limiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := storetest.NewDB(t)
	repo := school.NewRepository(db)
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	svc := school.NewService(repo, hasher,
		school.WithLocation(time.UTC),
		school.WithClock(func() time.Time { return refNow }),
	)
	seeder := seed.New(repo, hasher, time.UTC, zerolog.Nop())
	h := New(Deps{
		Service: svc,
		Seeder:  seeder,
		DB:      db,
		Limiter: limiter,
		Log:     zerolog.Nop(),
	}, Config{
		SessionSecret: "test-secret",
		JWTIssuer:     testIssuer,
		JWTSigningKey: testSigningKey,
		AccessTTL:     time.Minute,
	})
	return &testEnv{engine: h.Engine(), svc: svc, repo: repo, seeder: seeder}
}

// client carries cookies between requests like a browser would.
type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
	header  http.Header
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, h: e.engine, cookies: map[string]*http.Cookie{}, header: http.Header{}}
}

func (cl *client) do(method, path string, form url.Values, hdr map[string]string) *httptest.ResponseRecorder {
	cl.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	cl.h.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(cl.cookies, ck.Name)
			continue
		}
		cl.cookies[ck.Name] = ck
	}
	return w
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(http.MethodGet, path, nil, nil)
}

func (cl *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return cl.do(http.MethodPost, path, form, nil)
}

func (cl *client) login(handle, password string) {
	cl.t.Helper()
	w := cl.post("/login", url.Values{"username": {handle}, "password": {password}})
	require.Equal(cl.t, http.StatusFound, w.Code, w.Body.String())
}

// page decodes a page document.
func page(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	return doc
}

func flashes(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	raw, _ := page(t, w)["flashes"].([]any)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		out = append(out, f.(string))
	}
	return out
}

func (e *testEnv) admin(t *testing.T) *client {
	t.Helper()
	_, err := e.seeder.EnsureAdmin(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	cl := e.client(t)
	cl.login("admin", "admin123")
	return cl
}

func (e *testEnv) student(t *testing.T, handle, name string) (*client, school.User) {
	t.Helper()
	u, err := e.svc.SignUp(context.Background(), handle, "secret", name)
	require.NoError(t, err)
	cl := e.client(t)
	cl.login(handle, "secret")
	return cl, u
}

func (e *testEnv) event(t *testing.T, title, date string) school.Event {
	t.Helper()
	ev, err := e.svc.CreateEvent(context.Background(), title, date, title+" details")
	require.NoError(t, err)
	return ev
}
