package handlers

import (
	"fmt"
	"net/http"

	"github.com/roach88/appshell/internal/controller"
)

const (
	shellTemplate = "/template/shell.html"
	loginTemplate = "/template/login.html"
)

// Launch serves the app shell at / (or the login page while the device is
// not registered) and the launcher pages below /launcher/.
type Launch struct {
	routes
	ctrl *controller.Controller
}

// NewLaunch builds the launch handler.
func NewLaunch(c *controller.Controller) controller.Handler {
	h := &Launch{routes: newRoutes(), ctrl: c}
	h.router.Path("/").Methods(http.MethodGet).Name("shell")
	h.router.Path("/launcher/{file}").Methods(http.MethodGet).Name("launcher")
	return h
}

// Name implements the controller's handler naming.
func (h *Launch) Name() string { return "launch" }

// Handle implements controller.Handler.
func (h *Launch) Handle(r *http.Request) (controller.Result, error) {
	ctx := r.Context()
	data := map[string]any{"version": h.ctrl.Resolver().Version()}

	name, vars := h.match(r)
	if name == "launcher" {
		return h.ctrl.Render(ctx, "/launcher/"+vars["file"], data)
	}

	device, err := h.ctrl.Store().DeviceIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	if device == "" {
		return h.ctrl.Render(ctx, loginTemplate, data)
	}
	return h.ctrl.Render(ctx, shellTemplate, data)
}
