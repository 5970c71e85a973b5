package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/appshell/internal/controller"
	"github.com/roach88/appshell/internal/render"
	"github.com/roach88/appshell/internal/store"
)

const (
	eventsTable   = "events"
	eventTemplate = "/template/event.ics"

	// ContentTypeCalendar is the content type of exported events.
	ContentTypeCalendar = "text/calendar;charset=UTF-8"
)

// Events exports a single event as an iCalendar file at /event/<id>.ics.
type Events struct {
	routes
	ctrl *controller.Controller
}

// NewEvents builds the event export handler.
func NewEvents(c *controller.Controller) controller.Handler {
	h := &Events{routes: newRoutes(), ctrl: c}
	h.router.Path("/event/{id}.ics").Methods(http.MethodGet).Name("event")
	return h
}

// Name implements the controller's handler naming.
func (h *Events) Name() string { return "events" }

// Handle implements controller.Handler. The calendar file is returned as a
// native response, so it skips localization.
func (h *Events) Handle(r *http.Request) (controller.Result, error) {
	ctx := r.Context()
	_, vars := h.match(r)
	id := vars["id"]

	ev, err := h.ctrl.Store().Get(ctx, eventsTable, id)
	if errors.Is(err, store.ErrNotFound) {
		return controller.NewResponse(http.StatusNotFound, "text/plain;charset=UTF-8", []byte("event not found\n")), nil
	}
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}

	tmpl, err := h.ctrl.Resolver().Resolve(ctx, eventTemplate)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	ics, err := render.Text(eventTemplate, string(tmpl), ev)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}

	// iCalendar content lines end in CRLF.
	ics = strings.ReplaceAll(strings.ReplaceAll(ics, "\r\n", "\n"), "\n", "\r\n")
	resp := controller.NewResponse(http.StatusOK, ContentTypeCalendar, []byte(ics))
	resp.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="event-%s.ics"`, id))
	return resp, nil
}
