package cli

import (
	"context"
	"log/slog"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roach88/appshell/internal/assets"
	"github.com/roach88/appshell/internal/cache"
	"github.com/roach88/appshell/internal/config"
	"github.com/roach88/appshell/internal/controller"
	"github.com/roach88/appshell/internal/handlers"
	"github.com/roach88/appshell/internal/remote"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
)

// app is a fully wired shell: config, store, cache, remote client and the
// controller with the production handler chain.
type app struct {
	cfg      *config.Config
	schema   *schema.Schema
	store    *store.Store
	cache    *cache.Store
	fetcher  cache.Fetcher
	ctrl     *controller.Controller
	registry *prometheus.Registry
	logger   *slog.Logger
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	return cfg, nil
}

// loadSchema compiles the configured manifest, or the embedded one.
func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.CompileFile(path)
}

// newFetcher chains the resource sources: the assets directory if
// configured, the bundled assets, then the server.
func newFetcher(cfg *config.Config) (cache.Fetcher, error) {
	var chain cache.FetcherChain
	if cfg.AssetsDir != "" {
		chain = append(chain, cache.FSFetcher{FS: os.DirFS(cfg.AssetsDir)})
	}
	chain = append(chain, cache.FSFetcher{FS: assets.FS()})

	network, err := cache.NewHTTPFetcher(cfg.Server)
	if err != nil {
		return nil, err
	}
	return append(chain, network), nil
}

// newConnectivity probes the configured address, or the server's host.
func newConnectivity(cfg *config.Config) (remote.Connectivity, error) {
	if cfg.Connectivity.Probe != "" {
		return &remote.Probe{Addr: cfg.Connectivity.Probe, Timeout: cfg.Connectivity.Timeout}, nil
	}
	return remote.ProbeFor(cfg.Server, cfg.Connectivity.Timeout)
}

// openApp wires every component from the config. A failure is returned as
// an ExitError already reported through the command's formatter.
func openApp(ctx context.Context, opts *RootOptions, f *OutputFormatter, logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	sch, err := loadSchema(cfg.Manifest)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, "failed to compile manifest", err)
	}

	logger.Debug("opening database", "driver", cfg.Database.Driver, "path", cfg.Database.Path)
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, sch)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}

	a, err := wire(ctx, cfg, sch, st, logger)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
		return nil, f.Fail(ExitCommandError, CodeConfig, "failed to start", err)
	}
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, sch *schema.Schema, st *store.Store, logger *slog.Logger) (*app, error) {
	cs, err := cache.NewStore(ctx, st.DB())
	if err != nil {
		return nil, err
	}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := newConnectivity(cfg)
	if err != nil {
		return nil, err
	}
	client, err := remote.New(cfg.Server, conn, st, remote.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := controller.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	ctrl, err := controller.New(controller.Config{
		Schema:   sch,
		Store:    st,
		Resolver: cache.NewResolver(cs, cfg.CacheVersion, fetcher, cache.WithLogger(logger)),
		Remote:   client,
		Language: cfg.Language,
		Logger:   logger,
		Metrics:  metrics,
	}, handlers.Chain()...)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		schema:   sch,
		store:    st,
		cache:    cs,
		fetcher:  fetcher,
		ctrl:     ctrl,
		registry: registry,
		logger:   logger,
	}, nil
}

// install populates the cache for the configured version and drops every
// other version.
func (a *app) install(ctx context.Context) (cache.InstallResult, error) {
	return cache.Install(ctx, a.cache, a.cfg.CacheVersion, a.schema.CachedFiles(), a.fetcher)
}

// installed reports whether the configured version is in the cache.
func (a *app) installed(ctx context.Context) (bool, error) {
	versions, err := a.cache.Versions(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(versions, a.cfg.CacheVersion), nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.ctrl.Close()
}
