package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolevents/internal/auth"
	"schoolevents/internal/school"
)

const (
	msgSignedUp          = "Registration successful! Please login."
	msgRegistered        = "Successfully registered for the event!"
	msgAlreadyRegistered = "You are already registered for this event!"
)

func (h *Handler) index(c *gin.Context) {
	p, err := h.svc.ListPartitioned(c.Request.Context(), h.svc.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "index", gin.H{
		"current_events":  h.eventDocs(p.Scheduled),
		"previous_events": h.eventDocs(p.Elapsed),
	})
}

func (h *Handler) loginPage(c *gin.Context) {
	h.page(c, http.StatusOK, "login", gin.H{"next": c.Query("next")})
}

func (h *Handler) login(c *gin.Context) {
	u, err := h.svc.Authenticate(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if errors.Is(err, school.ErrInvalidCredentials) {
		addFlash(c, school.MsgInvalidCredentials)
		h.page(c, http.StatusOK, "login", gin.H{"next": c.PostForm("next")})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := auth.SetSession(c, auth.FromUser(u)); err != nil {
		h.fail(c, err)
		return
	}
	redirect(c, localPath(c.DefaultPostForm("next", c.Query("next")), "/"))
}

func (h *Handler) signUpPage(c *gin.Context) {
	h.page(c, http.StatusOK, "register", nil)
}

func (h *Handler) signUp(c *gin.Context) {
	_, err := h.svc.SignUp(c.Request.Context(), c.PostForm("username"), c.PostForm("password"), c.PostForm("name"))
	if v, ok := school.IsValidation(err); ok {
		addFlash(c, v.Message)
		h.page(c, http.StatusOK, "register", gin.H{
			"username": c.PostForm("username"),
			"name":     c.PostForm("name"),
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	addFlash(c, msgSignedUp)
	redirect(c, "/login")
}

func (h *Handler) logout(c *gin.Context) {
	if err := auth.ClearSession(c); err != nil {
		h.fail(c, err)
		return
	}
	redirect(c, "/")
}

func (h *Handler) eventDetails(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	e, err := h.svc.Event(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	data := gin.H{"event": h.eventDoc(e), "is_registered": false}
	if who, ok := auth.Current(c); ok {
		registered, err := h.svc.IsRegistered(ctx, who.UserID, e.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		data["is_registered"] = registered
	}
	h.page(c, http.StatusOK, "event_details", data)
}

func (h *Handler) registerForEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	who, _ := auth.Current(c)
	_, err := h.svc.Register(c.Request.Context(), who.UserID, id)
	switch {
	case errors.Is(err, school.ErrAlreadyRegistered):
		addFlash(c, msgAlreadyRegistered)
	case err != nil:
		h.fail(c, err)
		return
	default:
		addFlash(c, msgRegistered)
	}
	redirect(c, "/event/"+strconv.FormatInt(id, 10))
}

func (h *Handler) students(c *gin.Context) {
	report, err := h.svc.AttendanceMatrix(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	students := make([]gin.H, 0, len(report.Students))
	for _, u := range report.Students {
		students = append(students, gin.H{
			"id":           u.ID,
			"username":     u.Handle,
			"display_name": u.DisplayName(),
		})
	}
	h.page(c, http.StatusOK, "students", gin.H{
		"students":       students,
		"events":         h.eventDocs(report.Events),
		"student_matrix": report.Matrix,
	})
}
