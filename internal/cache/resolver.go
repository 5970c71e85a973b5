package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Resolver resolves a logical resource path against the active cache version
// and falls back to a live fetch of the same path.
//
// App resources are addressed by their path inside the app, e.g.
// /template/error.html. An embedded or offline shell cannot always fetch those
// over the network, but they are in the cache when the install step listed
// them. Callers must only resolve paths that are in the manifest or routinely
// reachable over the network.
type Resolver struct {
	store   *Store
	version string
	fetcher Fetcher
	logger  *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for cache misses.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver returns a resolver over store for the given active version.
// fetcher may be nil, in which case misses fail.
func NewResolver(store *Store, version string, fetcher Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:   store,
		version: version,
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Version returns the active cache version.
func (r *Resolver) Version() string {
	return r.version
}

// Resolve returns the content for path: the cached bytes when the active
// version has them, otherwise the fetched bytes.
func (r *Resolver) Resolve(ctx context.Context, path string) ([]byte, error) {
	e, ok, err := r.store.Match(ctx, r.version, path)
	if err != nil {
		return nil, err
	}
	if ok {
		return e.Content, nil
	}

	r.logger.Debug("cache miss", "path", path, "version", r.version)

	if r.fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceUnavailable, path)
	}
	content, _, err := r.fetcher.Fetch(ctx, path)
	if err != nil {
		if errors.Is(err, ErrResourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, path, err)
	}
	return content, nil
}

// InstallResult summarizes an Install run.
type InstallResult struct {
	Version string `json:"version"`
	Stored  int    `json:"stored"`
	Pruned  int64  `json:"pruned"`
}

// Install populates the cache for version with every path in paths, then
// drops all other versions. If any path cannot be fetched nothing is pruned
// and the previous version stays usable.
func Install(ctx context.Context, store *Store, version string, paths []string, fetcher Fetcher) (InstallResult, error) {
	res := InstallResult{Version: version}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		content, ct, err := fetcher.Fetch(ctx, p)
		if err != nil {
			return res, fmt.Errorf("install %s: %w", version, err)
		}
		entries = append(entries, Entry{Version: version, Path: p, ContentType: ct, Content: content})
	}

	for _, e := range entries {
		if err := store.Put(ctx, e); err != nil {
			return res, fmt.Errorf("install %s: %w", version, err)
		}
		res.Stored++
	}

	pruned, err := store.Prune(ctx, version)
	if err != nil {
		return res, fmt.Errorf("install %s: %w", version, err)
	}
	res.Pruned = pruned
	return res, nil
}
