package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolevents/internal/auth"
	"schoolevents/internal/school"
)

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// apiEvents lists events split around now. is_registered is only computed
// for logged-in students.
func (h *Handler) apiEvents(c *gin.Context) {
	var viewer int64
	if who, ok := auth.Current(c); ok && !who.IsAdmin() {
		viewer = who.UserID
	}
	current, previous, err := h.svc.EventSummaries(c.Request.Context(), h.svc.Now(), viewer)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": current, "previous": previous})
}

func (h *Handler) apiStudents(c *gin.Context) {
	students, err := h.svc.StudentSummaries(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

type tokenRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// issueToken exchanges credentials for a bearer token usable on /api routes.
func (h *Handler) issueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	u, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, school.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": school.MsgInvalidCredentials})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	tok, err := auth.Issue(auth.FromUser(u), h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tok)
}
