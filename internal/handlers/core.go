package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/roach88/appshell/internal/controller"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
)

// WelcomeView is the one view without a table behind it.
const WelcomeView = "welcome"

// Core renders the data views: /<table> shows every record of that table
// through /template/_<table>.html, /welcome the start page.
type Core struct {
	routes
	ctrl  *controller.Controller
	views map[string]bool
}

// NewCore builds the core handler with one view per declared table except
// the identity table.
func NewCore(c *controller.Controller) controller.Handler {
	h := &Core{routes: newRoutes(), ctrl: c, views: map[string]bool{WelcomeView: false}}
	for _, t := range c.Schema().Tables() {
		if t.Name != schema.IdentityTable {
			h.views[t.Name] = true
		}
	}
	h.router.Path("/{view}").Methods(http.MethodGet).MatcherFunc(h.isView).Name("view")
	return h
}

func (h *Core) isView(r *http.Request, _ *mux.RouteMatch) bool {
	_, ok := h.views[strings.TrimPrefix(r.URL.Path, "/")]
	return ok
}

// Name implements the controller's handler naming.
func (h *Core) Name() string { return "core" }

// Handle implements controller.Handler. Without a registered device the
// request is sent back to the launch page.
func (h *Core) Handle(r *http.Request) (controller.Result, error) {
	ctx := r.Context()
	_, vars := h.match(r)
	view := vars["view"]

	device, err := h.ctrl.Store().DeviceIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("core %s: %w", view, err)
	}
	if device == "" {
		return controller.Redirect("/"), nil
	}

	records := []store.Record{}
	if h.views[view] {
		all, err := h.ctrl.Store().All(ctx, view)
		if err != nil {
			return nil, fmt.Errorf("core %s: %w", view, err)
		}
		if all != nil {
			records = all
		}
	}

	return h.ctrl.Render(ctx, ViewTemplate(view), map[string]any{
		"view":    view,
		"records": records,
	})
}

// ViewTemplate is the template path of a view.
func ViewTemplate(view string) string {
	return "/template/_" + view + ".html"
}
