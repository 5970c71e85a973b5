package controller

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/appshell/internal/render"
)

// ErrorTemplate is the resource rendered for registered faults.
const ErrorTemplate = "/template/error.html"

// Compose turns a handler result into a response. A *Response passes
// through, a non-empty Page is localized and wrapped as a 200 HTML page, a
// *TemplatePage is localized and then rendered against its data, and
// anything else yields ErrorResponse.
//
// The dictionary follows the language preference stored in ctx by Dispatch.
func (c *Controller) Compose(ctx context.Context, res Result) (*Response, error) {
	switch r := res.(type) {
	case *Response:
		if r != nil {
			return r, nil
		}
	case Page:
		if r != "" {
			markup, err := c.Localize(ctx, string(r))
			if err != nil {
				return nil, fmt.Errorf("compose: %w", err)
			}
			return HTMLResponse(markup), nil
		}
	case *TemplatePage:
		if r != nil && r.Source != "" {
			source, err := c.Localize(ctx, r.Source)
			if err != nil {
				return nil, fmt.Errorf("compose: %w", err)
			}
			markup, err := render.Structure(r.Path, source, r.Data)
			if err != nil {
				return nil, fmt.Errorf("compose: %w", err)
			}
			return HTMLResponse(markup), nil
		}
	}
	return ErrorResponse(), nil
}

// Localize replaces [[ ]] placeholders in markup from the active dictionary.
func (c *Controller) Localize(ctx context.Context, markup string) (string, error) {
	dict, err := c.localizer.Dictionary(ctx, render.LanguageFrom(ctx))
	if err != nil {
		return "", err
	}
	return render.Localize(markup, dict)
}

// Render resolves a template resource and pairs it with data. Rendering
// happens in Compose, after localization.
func (c *Controller) Render(ctx context.Context, path string, data any) (Result, error) {
	tmpl, err := c.resolver.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return &TemplatePage{Path: path, Source: string(tmpl), Data: data}, nil
}

// Translate maps a registered fault to the error page. Errors that are not
// registered faults are returned unchanged. Session-invalidating faults log
// out before the page is rendered.
//
// The template sees the registry detail, overridden by the fault's own
// detail, plus the fault ID as "fault".
func (c *Controller) Translate(ctx context.Context, err error) (Result, error) {
	var f *Fault
	if !errors.As(err, &f) {
		return nil, err
	}
	entry, ok := c.schema.Fault(f.ID)
	if !ok {
		return nil, err
	}

	c.logger.Info("internal fault", "fault", f.ID, "request_id", RequestIDFrom(ctx))
	c.metrics.fault(f.ID)

	if entry.InvalidatesSession {
		if lerr := c.Logout(ctx); lerr != nil {
			return nil, fmt.Errorf("translate %s: %w", f.ID, lerr)
		}
	}

	data := maps.Clone(entry.Detail)
	if data == nil {
		data = map[string]any{}
	}
	maps.Copy(data, f.Detail)
	data["fault"] = f.ID

	res, rerr := c.Render(ctx, ErrorTemplate, data)
	if rerr != nil {
		return nil, fmt.Errorf("translate %s: %w", f.ID, rerr)
	}
	return res, nil
}

func (c *Controller) registered(err error) bool {
	var f *Fault
	if !errors.As(err, &f) {
		return false
	}
	_, ok := c.schema.Fault(f.ID)
	return ok
}
