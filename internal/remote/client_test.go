package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedIdentity string

func (f fixedIdentity) DeviceIdentity(context.Context) (string, error) {
	return string(f), nil
}

type failingIdentity struct{}

func (failingIdentity) DeviceIdentity(context.Context) (string, error) {
	return "", errors.New("db closed")
}

// apiServer answers every request with body and records the last request.
func apiServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32, *http.Request, *url.Values) {
	t.Helper()
	var hits atomic.Int32
	var lastReq http.Request
	var lastForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NoError(t, r.ParseForm())
		lastReq = *r
		lastForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, &lastReq, &lastForm
}

func TestCall_Success(t *testing.T) {
	srv, hits, req, form := apiServer(t, `{"status":"OK","exams":[{"id":1,"title":"Algebra"}]}`)

	c, err := New(srv.URL+"/", NewStatic(true), fixedIdentity("dev-123"))
	require.NoError(t, err)

	data := url.Values{"username": {"alice"}}
	res, err := c.Call(context.Background(), "refresh", data)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api.php", req.URL.Path)
	assert.Equal(t, "refresh", req.URL.Query().Get("action"))
	assert.Equal(t, "dev-123", form.Get("device"))
	assert.Equal(t, "alice", form.Get("username"))
	assert.Empty(t, data.Get("device"), "caller data must not be modified")

	assert.Equal(t, "OK", res["status"])
	exams, ok := res["exams"].([]any)
	require.True(t, ok)
	require.Len(t, exams, 1)
	assert.Equal(t, json.Number("1"), exams[0].(map[string]any)["id"])
}

func TestCall_ServerSubpath(t *testing.T) {
	srv, _, req, _ := apiServer(t, `{"status":"OK"}`)

	c, err := New(srv.URL+"/app", NewStatic(true), fixedIdentity(""))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/app/api.php", c.Endpoint())

	_, err = c.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "/app/api.php", req.URL.Path)
}

func TestCall_OfflineFailsFast(t *testing.T) {
	srv, hits, _, _ := apiServer(t, `{"status":"OK"}`)

	c, err := New(srv.URL, NewStatic(false), fixedIdentity("dev"))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "refresh", nil)
	require.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCall_RemoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"error field", `{"status":"ERROR","error":"InvalidDevice"}`, "InvalidDevice"},
		{"no status", `{"error":"InvalidCredentials"}`, "InvalidCredentials"},
		{"missing error", `{"status":"ERROR"}`, UnknownError},
		{"empty error", `{"status":"ERROR","error":""}`, UnknownError},
		{"non-string error", `{"status":"ERROR","error":42}`, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _, _ := apiServer(t, tt.body)
			c, err := New(srv.URL, NewStatic(true), fixedIdentity("dev"))
			require.NoError(t, err)

			_, err = c.Call(context.Background(), "refresh", nil)
			var remoteErr *RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, "refresh", remoteErr.Action)
			assert.Equal(t, tt.detail, remoteErr.Detail)
		})
	}
}

func TestCall_MalformedBody(t *testing.T) {
	srv, _, _, _ := apiServer(t, `<html>maintenance</html>`)
	c, err := New(srv.URL, NewStatic(true), fixedIdentity("dev"))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "refresh", nil)
	require.Error(t, err)
	var remoteErr *RemoteError
	assert.False(t, errors.As(err, &remoteErr))
	assert.Contains(t, err.Error(), "decode response")
}

func TestCall_IdentityFailure(t *testing.T) {
	srv, hits, _, _ := apiServer(t, `{"status":"OK"}`)
	c, err := New(srv.URL, NewStatic(true), failingIdentity{})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "refresh", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db closed")
	assert.Equal(t, int32(0), hits.Load())
}

func TestCall_TransportFailure(t *testing.T) {
	srv, _, _, _ := apiServer(t, `{"status":"OK"}`)
	c, err := New(srv.URL, NewStatic(true), fixedIdentity("dev"))
	require.NoError(t, err)
	srv.Close()

	_, err = c.Call(context.Background(), "refresh", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOffline)
}

func TestNew_InvalidServer(t *testing.T) {
	_, err := New("not a url", NewStatic(true), fixedIdentity(""))
	require.Error(t, err)

	_, err = New("/relative/", NewStatic(true), fixedIdentity(""))
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := NewStatic(false)
	assert.False(t, s.Online(context.Background()))
	s.Set(true)
	assert.True(t, s.Online(context.Background()))
}

func TestProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := &Probe{Addr: ln.Addr().String(), Timeout: time.Second}
	assert.True(t, p.Online(context.Background()))

	require.NoError(t, ln.Close())
	assert.False(t, p.Online(context.Background()))
}

func TestProbeFor(t *testing.T) {
	p, err := ProbeFor("https://server.example.org/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "server.example.org:443", p.Addr)

	p, err = ProbeFor("http://localhost:8080/app/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", p.Addr)

	_, err = ProbeFor("/no-host", time.Second)
	require.Error(t, err)
}
