package handlers

import "github.com/roach88/appshell/internal/controller"

// Chain returns the handler factories in priority order.
func Chain() []func(*controller.Controller) controller.Handler {
	return []func(*controller.Controller) controller.Handler{
		NewLaunch,
		NewCore,
		NewAuth,
		NewEvents,
	}
}
