// Package handler wires the HTTP surface: HTML-less page documents for the
// browser flows, admin tools and the JSON API.
package handler

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"schoolevents/internal/auth"
	"schoolevents/internal/httpmiddleware"
	"schoolevents/internal/logging"
	"schoolevents/internal/school"
	"schoolevents/internal/seed"
	"schoolevents/internal/store"
)

// Config carries the HTTP-facing settings.
type Config struct {
	SessionName   string
	SessionSecret string
	SecureCookies bool
	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
}

// Handler serves every route of the application.
type Handler struct {
	svc     *school.Service
	seeder  *seed.Seeder
	db      *store.DB
	redis   *store.Redis
	limiter httpmiddleware.Limiter
	cfg     Config
	log     zerolog.Logger
	newRand func() *rand.Rand
}

// Deps are the collaborators a Handler needs. Redis may be nil.
type Deps struct {
	Service *school.Service
	Seeder  *seed.Seeder
	DB      *store.DB
	Redis   *store.Redis
	// Limiter throttles credential endpoints.
	Limiter httpmiddleware.Limiter
	Log     zerolog.Logger
}

// New creates a Handler.
func New(deps Deps, cfg Config) *Handler {
	if cfg.SessionName == "" {
		cfg.SessionName = "school_events"
	}
	return &Handler{
		svc:     deps.Service,
		seeder:  deps.Seeder,
		db:      deps.DB,
		redis:   deps.Redis,
		limiter: deps.Limiter,
		cfg:     cfg,
		log:     deps.Log,
		newRand: func() *rand.Rand { return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) },
	}
}

// Engine builds the gin engine with the middleware stack and all routes.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(logging.GinLogger(h.log, httpmiddleware.GetRequestID, "/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())

	cs := cookie.NewStore([]byte(h.cfg.SessionSecret))
	cs.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(h.cfg.SessionName, cs))
	r.Use(auth.Identify(h.svc, h.cfg.JWTSigningKey, h.cfg.JWTIssuer))

	h.Routes(r)
	return r
}

// Routes registers every route on r. Sessions and Identify must already be
// installed.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.healthz)
	r.GET("/metrics", metricsHandler())

	throttle := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if h.limiter == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{httpmiddleware.RateLimit(h.limiter, h.log), fn}
	}

	r.GET("/", h.index)
	r.GET("/login", h.loginPage)
	r.POST("/login", throttle(h.login)...)
	r.GET("/register", h.signUpPage)
	r.POST("/register", throttle(h.signUp)...)
	r.GET("/event/:id", h.eventDetails)

	member := r.Group("", auth.RequireLogin())
	member.GET("/logout", h.logout)
	member.GET("/students", h.students)
	member.GET("/event/:id/register", h.registerForEvent)

	admin := r.Group("/admin", auth.RequireAdmin())
	admin.GET("/events", h.adminEvents)
	admin.POST("/events/create", h.createEvent)
	admin.GET("/events/:id/edit", h.editEventPage)
	admin.POST("/events/:id/edit", h.editEvent)
	admin.POST("/events/:id/delete", h.deleteEvent)
	admin.GET("/registrations", h.registrations)
	admin.GET("/toggle_attendance/:id", h.toggleAttendance)
	admin.POST("/create_sample_data", h.createSampleData)
	admin.POST("/create_previous_data", h.createPreviousData)
	admin.POST("/generate_events", h.generateEvents)

	api := r.Group("/api")
	api.GET("/events", h.apiEvents)
	api.GET("/students", auth.RequireAdminJSON(), h.apiStudents)
	api.POST("/token", throttle(h.issueToken)...)
}

func (h *Handler) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.db.Healthy(ctx)
	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if !h.redis.Healthy(ctx) {
			redisStatus = "down"
		}
	}
	status := http.StatusOK
	if !dbHealthy || redisStatus == "down" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"db": dbHealthy, "redis": redisStatus})
}

// ---------- response helpers ----------

func addFlash(c *gin.Context, msg string) {
	session := sessions.Default(c)
	session.AddFlash(msg)
	_ = session.Save()
}

func popFlashes(c *gin.Context) []string {
	session := sessions.Default(c)
	raw := session.Flashes()
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	if len(raw) > 0 {
		_ = session.Save()
	}
	return out
}

// page renders a named page document with the pending flashes and the
// current identity.
func (h *Handler) page(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["page"] = name
	data["flashes"] = popFlashes(c)
	if id, ok := auth.Current(c); ok {
		data["current_user"] = id
	} else {
		data["current_user"] = nil
	}
	c.JSON(status, data)
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not Found"})
}

// fail maps an unexpected service error onto a response.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, school.ErrNotFound) {
		notFound(c)
		return
	}
	h.log.Error().Err(err).
		Str("path", c.Request.URL.Path).
		Str("request_id", httpmiddleware.GetRequestID(c)).
		Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}

// idParam parses a positive integer path parameter. Anything else is a 404
// like an unmatched route.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(c)
		return 0, false
	}
	return id, true
}

// localPath keeps only the path and query of target so redirects never
// leave the site. It returns fallback when target is empty or unusable.
func localPath(target, fallback string) string {
	if target == "" {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Path == "" || u.Path[0] != '/' || (len(u.Path) > 1 && u.Path[1] == '/') {
		return fallback
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

func isXHR(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

func (h *Handler) eventDoc(e school.Event) gin.H {
	return gin.H{
		"id":             e.ID,
		"title":          e.Title,
		"description":    e.Description,
		"date":           e.Date,
		"formatted_date": e.FormattedDate(h.svc.Location()),
	}
}

func (h *Handler) eventDocs(events []school.Event) []gin.H {
	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, h.eventDoc(e))
	}
	return out
}
