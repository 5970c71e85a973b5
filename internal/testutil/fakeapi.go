package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// APICall is one request received by a FakeAPI.
type APICall struct {
	Action string
	Form   url.Values
}

// FakeAPI is an in-process stand-in for the remote api.php endpoint. Each
// action answers with a canned JSON body; unknown actions answer with an
// error status.
type FakeAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]string
	calls     []APICall
}

// NewFakeAPI starts a fake API that is shut down when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	f := &FakeAPI{responses: map[string]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL is the server root to hand to remote.New.
func (f *FakeAPI) URL() string {
	return f.server.URL + "/"
}

// Respond sets the body returned for action.
func (f *FakeAPI) Respond(action, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[action] = body
}

// Calls returns the calls received so far.
func (f *FakeAPI) Calls() []APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]APICall(nil), f.calls...)
}

// Actions returns the action of every call received so far.
func (f *FakeAPI) Actions() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Action
	}
	return out
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/api.php" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	action := r.URL.Query().Get("action")

	f.mu.Lock()
	f.calls = append(f.calls, APICall{Action: action, Form: r.PostForm})
	body, ok := f.responses[action]
	f.mu.Unlock()

	if !ok {
		body = `{"status":"ERROR","error":"UnknownAction"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}
