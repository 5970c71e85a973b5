package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/roach88/appshell/internal/assets"
	"github.com/roach88/appshell/internal/cache"
	"github.com/roach88/appshell/internal/controller"
	"github.com/roach88/appshell/internal/handlers"
	"github.com/roach88/appshell/internal/remote"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
	"github.com/roach88/appshell/internal/testutil"
)

// CacheVersion is the cache version scenarios run against.
const CacheVersion = "harness"

// faultAttr finds the fault ID on a rendered error page.
var faultAttr = regexp.MustCompile(`data-fault="([^"]*)"`)

// Harness holds one wired shell for a scenario run.
type Harness struct {
	ctrl   *controller.Controller
	store  *store.Store
	api    *testutil.FakeAPI
	online *remote.Static
	lang   string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh database in tb's temp directory and a
// fake remote API that is shut down when tb ends.
//
// Execution flow:
// 1. Install the bundled assets into the cache and script the API
// 2. Store the preset device and the setup records
// 3. Dispatch every flow request, checking its expect clause
// 4. Evaluate the assertions against the final state
func Run(tb testing.TB, scenario *Scenario) (*Result, error) {
	tb.Helper()
	ctx := context.Background()

	h, err := newHarness(ctx, tb, scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	if scenario.Device != "" {
		if err := h.store.SetDeviceIdentity(ctx, scenario.Device); err != nil {
			return nil, fmt.Errorf("failed to set device: %w", err)
		}
	}
	for i, step := range scenario.Setup {
		if _, err := h.store.Put(ctx, step.Table, step.Record); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	result.Remote = append(result.Remote, h.api.Actions()...)

	actx := &AssertionContext{Ctx: ctx, Store: h.store, Calls: h.api.Calls()}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, tb testing.TB, s *Scenario) (*Harness, error) {
	sch, err := schema.Default()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, store.DriverCGO, filepath.Join(tb.TempDir(), "harness.db"), sch)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	h, err := wireHarness(ctx, tb, s, sch, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return h, nil
}

func wireHarness(ctx context.Context, tb testing.TB, s *Scenario, sch *schema.Schema, st *store.Store) (*Harness, error) {
	cs, err := cache.NewStore(ctx, st.DB())
	if err != nil {
		return nil, err
	}
	if _, err := cache.Install(ctx, cs, CacheVersion, sch.CachedFiles(), cache.FSFetcher{FS: assets.FS()}); err != nil {
		return nil, fmt.Errorf("failed to install assets: %w", err)
	}

	api := testutil.NewFakeAPI(tb)
	for action, body := range s.API {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api %s: %w", action, err)
		}
		api.Respond(action, string(b))
	}

	online := remote.NewStatic(!s.Offline)
	client, err := remote.New(api.URL(), online, st)
	if err != nil {
		return nil, err
	}

	ctrl, err := controller.New(controller.Config{
		Schema:     sch,
		Store:      st,
		Resolver:   cache.NewResolver(cs, CacheVersion, nil),
		Remote:     client,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		RequestIDs: testutil.NewConstantRequestID(s.RequestID),
	}, handlers.Chain()...)
	if err != nil {
		return nil, err
	}

	return &Harness{ctrl: ctrl, store: st, api: api, online: online, lang: s.AcceptLanguage}, nil
}

// executeStep dispatches one request and records it in the trace.
// Expectation mismatches are added to the result; only harness failures
// are returned.
func (h *Harness) executeStep(seq int, step FlowStep, result *Result) error {
	if step.Online != nil {
		h.online.Set(*step.Online)
	}

	var body io.Reader
	if step.Form != nil {
		form := url.Values{}
		for k, v := range step.Form {
			form.Set(k, v)
		}
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(step.Method(), step.Path(), body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	lang := step.AcceptLanguage
	if lang == "" {
		lang = h.lang
	}
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}

	event := TraceEvent{Seq: seq, Method: step.Method(), Path: step.Path()}
	resp, err := h.ctrl.Dispatch(req)
	switch {
	case errors.Is(err, controller.ErrUnhandledRequest):
		event.Error = ErrorUnhandled
	case errors.Is(err, controller.ErrUnregisteredFault):
		event.Error = ErrorUnregistered
	case err != nil:
		return err
	default:
		event.Status = resp.Status
		event.Location = resp.Header.Get("Location")
		if m := faultAttr.FindSubmatch(resp.Body); m != nil {
			event.Fault = string(m[1])
		}
	}
	result.Trace = append(result.Trace, event)

	if step.Expect != nil {
		for _, msg := range checkExpect(step, event, resp) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", seq, step.Request, msg))
		}
	}
	return nil
}

func checkExpect(step FlowStep, event TraceEvent, resp *controller.Response) []string {
	e := step.Expect
	var errs []string
	if event.Error != e.Error {
		errs = append(errs, fmt.Sprintf("expected error %q, got %q", e.Error, event.Error))
	}
	if event.Error != "" {
		return errs
	}
	if e.Status != 0 && event.Status != e.Status {
		errs = append(errs, fmt.Sprintf("expected status %d, got %d", e.Status, event.Status))
	}
	if e.Location != "" && event.Location != e.Location {
		errs = append(errs, fmt.Sprintf("expected location %q, got %q", e.Location, event.Location))
	}
	if event.Fault != e.Fault {
		errs = append(errs, fmt.Sprintf("expected fault %q, got %q", e.Fault, event.Fault))
	}
	for _, want := range e.Contains {
		if !strings.Contains(string(resp.Body), want) {
			errs = append(errs, fmt.Sprintf("body does not contain %q", want))
		}
	}
	return errs
}
