package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/appshell/internal/cache"
	"github.com/roach88/appshell/internal/remote"
	"github.com/roach88/appshell/internal/render"
	"github.com/roach88/appshell/internal/resync"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
)

// Handler answers a subset of intercepted requests.
type Handler interface {
	// Claims reports whether the handler answers r.
	Claims(r *http.Request) bool

	// Handle produces the result for a claimed request. A returned *Fault
	// is translated into an error page; any other error is fatal for the
	// request.
	Handle(r *http.Request) (Result, error)
}

// Config holds the collaborators of a Controller. Schema, Store, Resolver
// and Remote are required.
type Config struct {
	Schema   *schema.Schema
	Store    *store.Store
	Resolver *cache.Resolver
	Remote   *remote.Client

	// Language is the fallback for requests without a matching
	// Accept-Language. Defaults to the manifest's first language.
	Language string

	Logger     *slog.Logger
	Metrics    *Metrics           // optional
	RequestIDs RequestIDGenerator // defaults to UUIDv7Generator
}

// Controller mediates every intercepted request between the resource cache,
// the local store and the remote API.
//
// The handler chain and the schema are fixed at construction. A Controller
// is safe for concurrent use; the store it owns is released by Close.
type Controller struct {
	schema    *schema.Schema
	store     *store.Store
	resolver  *cache.Resolver
	remote    *remote.Client
	resync    *resync.Engine
	localizer *render.Localizer
	handlers  []Handler

	logger  *slog.Logger
	metrics *Metrics
	ids     RequestIDGenerator
}

// New builds a controller. Each factory is called once, in order, to build
// the handler chain; earlier handlers take priority.
func New(cfg Config, factories ...func(*Controller) Handler) (*Controller, error) {
	switch {
	case cfg.Schema == nil:
		return nil, errors.New("controller: schema is required")
	case cfg.Store == nil:
		return nil, errors.New("controller: store is required")
	case cfg.Resolver == nil:
		return nil, errors.New("controller: resolver is required")
	case cfg.Remote == nil:
		return nil, errors.New("controller: remote client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ids := cfg.RequestIDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}

	langs, err := fallbackFirst(cfg.Schema.Languages(), cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	loc, err := render.NewLocalizer(cfg.Resolver, langs)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	c := &Controller{
		schema:    cfg.Schema,
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		remote:    cfg.Remote,
		resync:    resync.New(cfg.Remote, cfg.Store, cfg.Schema, resync.WithLogger(logger)),
		localizer: loc,
		logger:    logger,
		metrics:   cfg.Metrics,
		ids:       ids,
	}
	for _, f := range factories {
		c.handlers = append(c.handlers, f(c))
	}
	return c, nil
}

// fallbackFirst moves the fallback language to the front of langs.
func fallbackFirst(langs []string, fallback string) ([]string, error) {
	if fallback == "" {
		return langs, nil
	}
	out := []string{fallback}
	found := false
	for _, l := range langs {
		if l == fallback {
			found = true
			continue
		}
		out = append(out, l)
	}
	if !found {
		return nil, fmt.Errorf("language %q is not available (have %s)", fallback, strings.Join(langs, ", "))
	}
	return out, nil
}

// Close releases the store.
func (c *Controller) Close() error {
	return c.store.Close()
}

// Schema returns the compiled manifest.
func (c *Controller) Schema() *schema.Schema {
	return c.schema
}

// Store returns the local record store.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Resolver returns the resource resolver of the active cache version.
func (c *Controller) Resolver() *cache.Resolver {
	return c.resolver
}

// Remote returns the API client.
func (c *Controller) Remote() *remote.Client {
	return c.remote
}

// Logger returns the controller's logger.
func (c *Controller) Logger() *slog.Logger {
	return c.logger
}

// Handlers returns the handler chain in priority order.
func (c *Controller) Handlers() []Handler {
	return append([]Handler(nil), c.handlers...)
}

// Dispatch routes r to the first handler claiming it and composes the
// handler's result into a response.
//
// Registered faults come back as rendered error pages. An unclaimed request
// fails with ErrUnhandledRequest and any other handler error with
// ErrUnregisteredFault; neither is meant to be recovered from.
func (c *Controller) Dispatch(r *http.Request) (resp *Response, err error) {
	ctx := r.Context()
	if RequestIDFrom(ctx) == "" {
		ctx = WithRequestID(ctx, c.ids.Generate())
	}
	ctx = render.WithLanguage(ctx, r.Header.Get("Accept-Language"))
	r = r.WithContext(ctx)

	h := c.match(r)
	name := "none"
	if h != nil {
		name = handlerName(h)
	}
	defer func() {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		c.metrics.request(name, status)
		c.logger.Debug("dispatch",
			"request_id", RequestIDFrom(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"handler", name,
			"status", status)
	}()

	if h == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrUnhandledRequest, r.Method, r.URL.RequestURI())
	}

	res, err := h.Handle(r)
	if err != nil {
		if !c.registered(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnregisteredFault, name, err)
		}
		res, err = c.Translate(ctx, err)
		if err != nil {
			return nil, err
		}
	}
	return c.Compose(ctx, res)
}

// ServeHTTP implements http.Handler on top of Dispatch.
//
// Unhandled requests and unregistered faults abort the connection after
// logging. Other failures, e.g. a language dictionary missing while the page
// is composed, get the generic error response.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := c.ids.Generate()
	r = r.WithContext(WithRequestID(r.Context(), id))
	w.Header().Set("X-Request-Id", id)

	resp, err := c.Dispatch(r)
	switch {
	case errors.Is(err, ErrUnhandledRequest), errors.Is(err, ErrUnregisteredFault):
		c.logger.Error("request aborted", "request_id", id, "path", r.URL.Path, "error", err)
		panic(http.ErrAbortHandler)
	case err != nil:
		c.logger.Error("request failed", "request_id", id, "path", r.URL.Path, "error", err)
		resp = ErrorResponse()
	}

	if err := resp.Write(w); err != nil {
		c.logger.Debug("write response", "request_id", id, "error", err)
	}
}

func (c *Controller) match(r *http.Request) Handler {
	for _, h := range c.handlers {
		if h.Claims(r) {
			return h
		}
	}
	return nil
}

func handlerName(h Handler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	name := fmt.Sprintf("%T", h)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Refresh runs one resync pass. Overlapping calls share a pass.
func (c *Controller) Refresh(ctx context.Context) (resync.Summary, error) {
	start := time.Now()
	sum, err := c.resync.Refresh(ctx)
	c.metrics.refresh(err, time.Since(start))
	if err != nil {
		c.logger.Warn("refresh failed", "error", err)
	}
	return sum, err
}

// Logout clears every declared table, the identity table included, so the
// next session has to register the device again. All tables are attempted;
// failures are joined.
func (c *Controller) Logout(ctx context.Context) error {
	var errs []error
	for _, t := range c.schema.Tables() {
		if err := c.store.Clear(ctx, t.Name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("logout: %w", errors.Join(errs...))
	}
	c.logger.Info("logged out", "tables", len(c.schema.Tables()))
	return nil
}
