package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/appshell/internal/controller"
	"github.com/roach88/appshell/internal/remote"
)

// routes is the claiming half of a handler: a request is claimed when one of
// the handler's routes matches it.
type routes struct {
	router *mux.Router
}

func newRoutes() routes {
	return routes{router: mux.NewRouter()}
}

// Claims implements controller.Handler.
func (rs routes) Claims(r *http.Request) bool {
	var m mux.RouteMatch
	return rs.router.Match(r, &m)
}

// match returns the name and variables of the route matching r.
func (rs routes) match(r *http.Request) (string, map[string]string) {
	var m mux.RouteMatch
	if !rs.router.Match(r, &m) || m.Route == nil {
		return "", nil
	}
	return m.Route.GetName(), m.Vars
}

// faultFor turns a remote error whose detail names a registered fault into
// that fault. Everything else is returned as is.
func faultFor(c *controller.Controller, err error) error {
	var re *remote.RemoteError
	if !errors.As(err, &re) {
		return err
	}
	if _, ok := c.Schema().Fault(re.Detail); !ok {
		return err
	}
	return &controller.Fault{ID: re.Detail, Err: err}
}
