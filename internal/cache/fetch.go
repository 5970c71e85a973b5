package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// ErrResourceUnavailable is returned when neither the cache nor the network
// yields a resource.
var ErrResourceUnavailable = errors.New("resource unavailable")

// Fetcher retrieves a resource by logical path from outside the cache.
type Fetcher interface {
	Fetch(ctx context.Context, p string) (content []byte, contentType string, err error)
}

// HTTPFetcher fetches resources relative to a base URL.
type HTTPFetcher struct {
	Base   *url.URL
	Client *http.Client
}

// NewHTTPFetcher parses base, treating it as a directory, and returns a
// fetcher using http.DefaultClient.
func NewHTTPFetcher(base string) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTTPFetcher{Base: u, Client: http.DefaultClient}, nil
}

// Fetch performs a GET for p below the base URL; logical paths are
// absolute, so "/template/x" under "https://host/app/" is
// "https://host/app/template/x". Any transport failure or non-2xx status is
// reported as ErrResourceUnavailable.
func (f *HTTPFetcher) Fetch(ctx context.Context, p string) ([]byte, string, error) {
	ref, err := url.Parse(strings.TrimPrefix(p, "/"))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, p, err)
	}
	target := f.Base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, p, err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s: status %d", ErrResourceUnavailable, p, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, p, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// FSFetcher serves resources from a file system, e.g. the bundled assets or
// an assets directory. The query string of a path is ignored.
type FSFetcher struct {
	FS fs.FS
}

// Fetch reads p from the file system.
func (f FSFetcher) Fetch(_ context.Context, p string) ([]byte, string, error) {
	name := strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if !fs.ValidPath(name) {
		return nil, "", fmt.Errorf("%w: %s: invalid path", ErrResourceUnavailable, p)
	}

	content, err := fs.ReadFile(f.FS, name)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, p, err)
	}
	return content, mime.TypeByExtension(path.Ext(name)), nil
}

// FetcherChain tries each fetcher in order and returns the first success.
type FetcherChain []Fetcher

// Fetch returns the first fetcher's result that succeeds.
func (c FetcherChain) Fetch(ctx context.Context, p string) ([]byte, string, error) {
	var errs []error
	for _, f := range c {
		content, ct, err := f.Fetch(ctx, p)
		if err == nil {
			return content, ct, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, "", fmt.Errorf("%w: %s: no fetchers", ErrResourceUnavailable, p)
	}
	return nil, "", errors.Join(errs...)
}
