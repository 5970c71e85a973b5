package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/roach88/appshell/internal/controller"
)

// API actions used by Auth.
const (
	ActionLogin = "login"
)

// Auth handles the session: POST /login registers the device with the
// user's credentials and runs a first refresh, GET /logout clears the local
// store, GET /refresh resyncs on demand.
type Auth struct {
	routes
	ctrl *controller.Controller
}

// NewAuth builds the auth handler.
func NewAuth(c *controller.Controller) controller.Handler {
	h := &Auth{routes: newRoutes(), ctrl: c}
	h.router.Path("/login").Methods(http.MethodPost).Name("login")
	h.router.Path("/logout").Methods(http.MethodGet).Name("logout")
	h.router.Path("/refresh").Methods(http.MethodGet).Name("refresh")
	return h
}

// Name implements the controller's handler naming.
func (h *Auth) Name() string { return "auth" }

// Handle implements controller.Handler.
func (h *Auth) Handle(r *http.Request) (controller.Result, error) {
	name, _ := h.match(r)
	switch name {
	case "login":
		return h.login(r)
	case "logout":
		if err := h.ctrl.Logout(r.Context()); err != nil {
			return nil, err
		}
		return controller.Redirect("/"), nil
	case "refresh":
		if _, err := h.ctrl.Refresh(r.Context()); err != nil {
			return nil, faultFor(h.ctrl, err)
		}
		return controller.Redirect("/"), nil
	}
	return nil, nil
}

func (h *Auth) login(r *http.Request) (controller.Result, error) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		return nil, controller.NewFault(controller.FaultInvalidCredentials, nil)
	}

	res, err := h.ctrl.Remote().Call(ctx, ActionLogin, url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return nil, faultFor(h.ctrl, err)
	}

	device, _ := res["device"].(string)
	if device == "" {
		return nil, controller.NewFault(controller.FaultInvalidDevice, nil)
	}
	if err := h.ctrl.Store().SetDeviceIdentity(ctx, device); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if _, err := h.ctrl.Refresh(ctx); err != nil {
		return nil, faultFor(h.ctrl, err)
	}
	return controller.Redirect("/"), nil
}
