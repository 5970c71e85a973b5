package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appshell/internal/assets"
	"github.com/roach88/appshell/internal/cache"
	"github.com/roach88/appshell/internal/controller"
	"github.com/roach88/appshell/internal/remote"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
	"github.com/roach88/appshell/internal/testutil"
)

const testVersion = "v-test"

type fixture struct {
	ctrl   *controller.Controller
	store  *store.Store
	api    *testutil.FakeAPI
	online *remote.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sch, err := schema.Default()
	require.NoError(t, err)
	st, err := store.Open(ctx, store.DriverCGO, filepath.Join(t.TempDir(), "test.db"), sch)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cs, err := cache.NewStore(ctx, st.DB())
	require.NoError(t, err)
	_, err = cache.Install(ctx, cs, testVersion, sch.CachedFiles(), cache.FSFetcher{FS: assets.FS()})
	require.NoError(t, err)

	api := testutil.NewFakeAPI(t)
	online := remote.NewStatic(true)
	client, err := remote.New(api.URL(), online, st)
	require.NoError(t, err)

	ctrl, err := controller.New(controller.Config{
		Schema:     sch,
		Store:      st,
		Resolver:   cache.NewResolver(cs, testVersion, nil),
		Remote:     client,
		RequestIDs: testutil.NewConstantRequestID(""),
	}, Chain()...)
	require.NoError(t, err)

	return &fixture{ctrl: ctrl, store: st, api: api, online: online}
}

func (f *fixture) register(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.SetDeviceIdentity(context.Background(), "dev-1"))
}

func (f *fixture) get(t *testing.T, path string) *controller.Response {
	t.Helper()
	resp, err := f.ctrl.Dispatch(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func (f *fixture) login(t *testing.T, form url.Values) *controller.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.ctrl.Dispatch(req)
	require.NoError(t, err)
	return resp
}

func TestChainOrder(t *testing.T) {
	f := newFixture(t)
	var names []string
	for _, h := range f.ctrl.Handlers() {
		names = append(names, h.(interface{ Name() string }).Name())
	}
	assert.Equal(t, []string{"launch", "core", "auth", "events"}, names)
}

func TestLaunch_LoginWithoutDevice(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.Status)
	body := string(resp.Body)
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, "<h1>Anmelden</h1>")
	assert.NotContains(t, body, "[[")
}

func TestLaunch_ShellWithDevice(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	body := string(f.get(t, "/").Body)
	assert.Contains(t, body, `<a href="/exams">Prüfungen</a>`)
	assert.Contains(t, body, `data-version="v-test"`)
}

func TestLaunch_LauncherMeta(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/launcher/meta.html")
	goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden")).
		Assert(t, "launcher_meta", resp.Body)
}

func TestCore_RendersTable(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	_, err := f.store.Put(context.Background(), "exams", store.Record{"title": "Algebra", "room": "2/101"})
	require.NoError(t, err)

	body := string(f.get(t, "/exams").Body)
	assert.Contains(t, body, "<h1>Prüfungen</h1>")
	assert.Contains(t, body, "<td>Algebra</td><td></td><td>2/101</td>")
}

func TestCore_BracketedRecordsAreNotLocalized(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()
	_, err := f.store.Put(ctx, "tips", store.Record{"title": "Use [[ for arrays", "text": "x"})
	require.NoError(t, err)
	_, err = f.store.Put(ctx, "tips", store.Record{"title": "[[.nav_exams]] injected", "text": "y"})
	require.NoError(t, err)

	resp := f.get(t, "/tips")
	require.Equal(t, http.StatusOK, resp.Status)
	body := string(resp.Body)
	assert.Contains(t, body, "<td>Use [[ for arrays</td>")
	assert.Contains(t, body, "<td>[[.nav_exams]] injected</td>")
	assert.NotContains(t, body, "Prüfungen injected")
}

func TestCore_EmptyTableAndWelcome(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	assert.Contains(t, string(f.get(t, "/meals").Body), "Keine Einträge vorhanden.")
	assert.Contains(t, string(f.get(t, "/welcome").Body), "<h1>Willkommen</h1>")
}

func TestCore_RedirectsWithoutDevice(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/exams")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestCore_DoesNotClaimUnknownViews(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	for _, path := range []string{"/server", "/unknown", "/exams/1"} {
		_, err := f.ctrl.Dispatch(httptest.NewRequest(http.MethodGet, path, nil))
		assert.ErrorIs(t, err, controller.ErrUnhandledRequest, path)
	}
}

func TestAuth_LoginRegistersAndRefreshes(t *testing.T) {
	f := newFixture(t)
	f.api.Respond(ActionLogin, `{"status":"OK","device":"dev-9"}`)
	f.api.Respond("refresh", `{"status":"OK","exams":[{"title":"Algebra"}]}`)

	resp := f.login(t, url.Values{"username": {"alice"}, "password": {"secret"}})
	assert.Equal(t, http.StatusSeeOther, resp.Status)

	device, err := f.store.DeviceIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev-9", device)

	n, err := f.store.Count(context.Background(), "exams")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	calls := f.api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ActionLogin, calls[0].Action)
	assert.Equal(t, "alice", calls[0].Form.Get("username"))
	assert.Equal(t, "", calls[0].Form.Get("device"))
	assert.Equal(t, "refresh", calls[1].Action)
	assert.Equal(t, "dev-9", calls[1].Form.Get("device"))
}

func TestAuth_InvalidCredentialsRendersErrorPage(t *testing.T) {
	f := newFixture(t)
	f.api.Respond(ActionLogin, `{"status":"ERROR","error":"InvalidCredentials"}`)

	resp := f.login(t, url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.Body), "Benutzername oder Passwort ist falsch.")
	assert.Contains(t, string(resp.Body), `data-fault="InvalidCredentials"`)
}

func TestAuth_MissingFieldsIsInvalidCredentials(t *testing.T) {
	f := newFixture(t)

	resp := f.login(t, url.Values{"username": {"alice"}})
	assert.Contains(t, string(resp.Body), "Benutzername oder Passwort ist falsch.")
	assert.Empty(t, f.api.Calls())
}

func TestAuth_RefreshInvalidDeviceLogsOut(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	_, err := f.store.Put(context.Background(), "tips", store.Record{"text": "x"})
	require.NoError(t, err)
	f.api.Respond("refresh", `{"status":"ERROR","error":"InvalidDevice"}`)

	resp := f.get(t, "/refresh")
	assert.Contains(t, string(resp.Body), "Dieses Gerät ist nicht mehr angemeldet.")

	device, err := f.store.DeviceIdentity(context.Background())
	require.NoError(t, err)
	assert.Empty(t, device)
	n, err := f.store.Count(context.Background(), "tips")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuth_RefreshOfflineIsUnregistered(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.online.Set(false)

	_, err := f.ctrl.Dispatch(httptest.NewRequest(http.MethodGet, "/refresh", nil))
	require.ErrorIs(t, err, controller.ErrUnregisteredFault)
	assert.ErrorIs(t, err, remote.ErrOffline)
	assert.Empty(t, f.api.Calls())
}

func TestAuth_Logout(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	resp := f.get(t, "/logout")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	device, err := f.store.DeviceIdentity(context.Background())
	require.NoError(t, err)
	assert.Empty(t, device)
}

func TestEvents_Export(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Put(context.Background(), "events", store.Record{
		"id":    "e1",
		"title": "Algebra, Klausur",
		"start": time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		"end":   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	resp := f.get(t, "/event/e1.ics")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, ContentTypeCalendar, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="event-e1.ics"`)
	goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden")).
		Assert(t, "event_e1", resp.Body)
}

func TestEvents_NotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/event/missing.ics")
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
