package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appshell/internal/cache"
	"github.com/roach88/appshell/internal/remote"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
)

const testCacheVersion = "test-v1"

// testAssets is a minimal resource set for the cache.
func testAssets() fstest.MapFS {
	return fstest.MapFS{
		"template/error.html": {Data: []byte(`<h1>[[.error_title]]</h1><p>{{.message}}</p>`)},
		"lang/de.json": {Data: []byte(`{
			"error_title": "Fehler",
			"error_invalid_device": "Gerät ungültig",
			"error_invalid_credentials": "Zugangsdaten ungültig",
			"greeting": "Hallo"
		}`)},
		"lang/en.json": {Data: []byte(`{
			"error_title": "Error",
			"error_invalid_device": "Invalid device",
			"error_invalid_credentials": "Invalid credentials",
			"greeting": "Hello"
		}`)},
	}
}

type fixture struct {
	ctrl     *Controller
	store    *store.Store
	registry *prometheus.Registry
	api      *httptest.Server
}

type fixtureOptions struct {
	assets   fstest.MapFS
	apiBody  string
	online   bool
	handlers []func(*Controller) Handler
	ids      RequestIDGenerator
}

// newFixture wires a controller over a temp database, a cache installed from
// opts.assets and a fake API answering every call with opts.apiBody.
func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()

	sch, err := schema.Default()
	require.NoError(t, err)

	st, err := store.Open(ctx, store.DriverCGO, filepath.Join(t.TempDir(), "test.db"), sch)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cs, err := cache.NewStore(ctx, st.DB())
	require.NoError(t, err)

	assets := opts.assets
	if assets == nil {
		assets = testAssets()
	}
	var paths []string
	for name := range assets {
		paths = append(paths, "/"+name)
	}
	sort.Strings(paths)
	_, err = cache.Install(ctx, cs, testCacheVersion, paths, cache.FSFetcher{FS: assets})
	require.NoError(t, err)

	body := opts.apiBody
	if body == "" {
		body = `{"status":"OK"}`
	}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(api.Close)

	client, err := remote.New(api.URL+"/", remote.NewStatic(opts.online), st)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	ctrl, err := New(Config{
		Schema:     sch,
		Store:      st,
		Resolver:   cache.NewResolver(cs, testCacheVersion, nil),
		Remote:     client,
		Metrics:    metrics,
		RequestIDs: opts.ids,
	}, opts.handlers...)
	require.NoError(t, err)

	return &fixture{ctrl: ctrl, store: st, registry: reg, api: api}
}

// stubHandler claims requests by path and returns a fixed result.
type stubHandler struct {
	name   string
	path   string
	result Result
	err    error
	calls  int
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) Claims(r *http.Request) bool {
	return h.path == "" || r.URL.Path == h.path
}

func (h *stubHandler) Handle(*http.Request) (Result, error) {
	h.calls++
	return h.result, h.err
}

func use(h Handler) func(*Controller) Handler {
	return func(*Controller) Handler { return h }
}

func seedAllTables(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, tbl := range st.Schema().Tables() {
		rec := store.Record{"title": "x"}
		if tbl.Key == schema.KeyField {
			rec[tbl.KeyField] = "k1"
		}
		_, err := st.Put(ctx, tbl.Name, rec)
		require.NoError(t, err)
	}
}

func tableCount(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	n, err := st.Count(context.Background(), table)
	require.NoError(t, err)
	return n
}

// fstestWithout returns a copy of fsys without the named files.
func fstestWithout(fsys fstest.MapFS, names ...string) fstest.MapFS {
	out := fstest.MapFS{}
	for k, v := range fsys {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}
