package handler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolevents/internal/school"
	"schoolevents/internal/seed"
)

const (
	msgEventCreated = "Event created successfully!"
	msgEventUpdated = "Event updated successfully!"
	msgEventDeleted = "Event deleted successfully!"
)

// eventTitle accepts the title under either form field name.
func eventTitle(c *gin.Context) string {
	if t := c.PostForm("title"); t != "" {
		return t
	}
	return c.PostForm("name")
}

func (h *Handler) adminEvents(c *gin.Context) {
	p, err := h.svc.ListPartitioned(c.Request.Context(), h.svc.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "admin_events", gin.H{
		"current_events":  h.eventDocs(p.Scheduled),
		"previous_events": h.eventDocs(p.Elapsed),
	})
}

func (h *Handler) createEvent(c *gin.Context) {
	_, err := h.svc.CreateEvent(c.Request.Context(), eventTitle(c), c.PostForm("date"), c.PostForm("description"))
	if v, ok := school.IsValidation(err); ok {
		addFlash(c, v.Message)
		redirect(c, "/admin/events")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	addFlash(c, msgEventCreated)
	redirect(c, "/admin/events")
}

func (h *Handler) editForm(e school.Event) gin.H {
	doc := h.eventDoc(e)
	doc["date_input"] = e.Date.In(h.svc.Location()).Format(school.DateLayout)
	return doc
}

func (h *Handler) editEventPage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	e, err := h.svc.Event(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "edit_event", gin.H{"event": h.editForm(e)})
}

func (h *Handler) editEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current, err := h.svc.Event(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	_, err = h.svc.EditEvent(ctx, id, eventTitle(c), c.PostForm("date"), c.PostForm("description"))
	if v, ok := school.IsValidation(err); ok {
		addFlash(c, v.Message)
		form := h.editForm(current)
		form["title"] = eventTitle(c)
		form["date_input"] = c.PostForm("date")
		h.page(c, http.StatusOK, "edit_event", gin.H{"event": form})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	addFlash(c, msgEventUpdated)
	redirect(c, "/admin/events")
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteEvent(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	addFlash(c, msgEventDeleted)
	redirect(c, "/admin/events")
}

func (h *Handler) registrations(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("query")
	selected := c.Query("event")

	views, err := h.svc.SearchRegistrations(ctx, query, selected)
	if err != nil {
		h.fail(c, err)
		return
	}
	events, err := h.svc.Events(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	// filter dropdown lists the newest events first
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })

	rows := make([]gin.H, 0, len(views))
	for _, v := range views {
		rows = append(rows, gin.H{
			"id":                v.ID,
			"attended":          v.Attended,
			"registration_date": v.RegisteredAt,
			"user": gin.H{
				"id":           v.User.ID,
				"username":     v.User.Handle,
				"display_name": v.User.DisplayName(),
			},
			"event": h.eventDoc(v.Event),
		})
	}
	h.page(c, http.StatusOK, "admin_registrations", gin.H{
		"registrations":  rows,
		"query":          query,
		"events":         h.eventDocs(events),
		"selected_event": selected,
	})
}

func (h *Handler) toggleAttendance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	attended, err := h.svc.ToggleAttendance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if isXHR(c) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "attended": attended})
		return
	}
	redirect(c, localPath(c.GetHeader("Referer"), "/students"))
}

func (h *Handler) seedAndRedirect(c *gin.Context, what string, run func(ctx context.Context, rng *rand.Rand) (seed.Report, error)) {
	rep, err := run(c.Request.Context(), h.newRand())
	if err != nil {
		h.log.Error().Err(err).Str("kind", what).Msg("seeding failed")
		addFlash(c, fmt.Sprintf("Error creating %s. Nothing was changed.", what))
		redirect(c, "/admin/events")
		return
	}
	addFlash(c, fmt.Sprintf("Created %s: %d events, %d students, %d registrations.",
		what, rep.Events, rep.Students, rep.Registrations))
	redirect(c, "/admin/events")
}

func (h *Handler) createSampleData(c *gin.Context) {
	h.seedAndRedirect(c, "sample data", h.seeder.SampleData)
}

func (h *Handler) createPreviousData(c *gin.Context) {
	h.seedAndRedirect(c, "previous events", h.seeder.PreviousData)
}

func (h *Handler) generateEvents(c *gin.Context) {
	n := 0
	if v := c.PostForm("count"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 100 {
			addFlash(c, "Count must be a number between 0 and 100")
			redirect(c, "/admin/events")
			return
		}
		n = parsed
	}
	h.seedAndRedirect(c, "upcoming events", func(ctx context.Context, rng *rand.Rand) (seed.Report, error) {
		return h.seeder.GenerateEvents(ctx, rng, n)
	})
}
