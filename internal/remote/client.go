package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/appshell/internal/schema"
)

// ErrOffline is returned by Call when the connectivity check fails. No
// network I/O is attempted in that case.
var ErrOffline = errors.New("offline")

// UnknownError is the detail of a RemoteError whose response carried no
// usable error field.
const UnknownError = "unknown error"

// StatusOK is the status discriminator of a successful API response.
const StatusOK = "OK"

// RemoteError is a non-OK response from the API.
type RemoteError struct {
	Action string
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Action, e.Detail)
}

// Result is the decoded body of a successful API response. Numbers are
// kept as json.Number.
type Result map[string]any

// IdentitySource yields the device token injected into every call.
// *store.Store satisfies it.
type IdentitySource interface {
	DeviceIdentity(ctx context.Context) (string, error)
}

// Client performs request/response exchanges with the remote API.
type Client struct {
	endpoint *url.URL
	conn     Connectivity
	identity IdentitySource
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New returns a client for the API rooted at server, e.g.
// "https://server.example.org/". The API endpoint is api.php relative to it.
func New(server string, conn Connectivity, identity IdentitySource, opts ...Option) (*Client, error) {
	base, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q: must be absolute", server)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		endpoint: base.ResolveReference(&url.URL{Path: "api.php"}),
		conn:     conn,
		identity: identity,
		http:     http.DefaultClient,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the API endpoint without the action parameter.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Call sends action with data to the API and returns the decoded body when
// its status is OK. data is not modified. There are no retries.
func (c *Client) Call(ctx context.Context, action string, data url.Values) (Result, error) {
	if c.conn != nil && !c.conn.Online(ctx) {
		return nil, fmt.Errorf("remote %s: %w", action, ErrOffline)
	}

	form := url.Values{}
	for k, v := range data {
		form[k] = append([]string(nil), v...)
	}
	device, err := c.identity.DeviceIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", action, err)
	}
	form.Set(schema.DeviceKey, device)

	target := *c.endpoint
	target.RawQuery = url.Values{"action": {action}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("remote call", "action", action)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", action, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body Result
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("remote %s: decode response (HTTP %d): %w", action, resp.StatusCode, err)
	}

	if status, _ := body["status"].(string); status == StatusOK {
		return body, nil
	}

	detail := UnknownError
	if v, ok := body["error"]; ok && schema.Truthy(v) {
		if s, ok := v.(string); ok {
			detail = s
		} else {
			detail = fmt.Sprint(v)
		}
	}
	c.logger.Debug("remote call failed", "action", action, "detail", detail)
	return nil, &RemoteError{Action: action, Detail: detail}
}
