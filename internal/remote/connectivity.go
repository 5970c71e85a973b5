package remote

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
	"time"
)

// Connectivity reports whether the remote API is reachable at all. The answer
// is advisory: the state may change between the check and the request.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Static is a connectivity flag set by the surrounding runtime.
type Static struct {
	online atomic.Bool
}

// NewStatic returns a flag with the given initial state.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Set changes the state.
func (s *Static) Set(online bool) {
	s.online.Store(online)
}

// Online implements Connectivity.
func (s *Static) Online(context.Context) bool {
	return s.online.Load()
}

// Probe checks connectivity by opening a TCP connection to Addr.
type Probe struct {
	Addr    string
	Timeout time.Duration
}

// ProbeFor returns a probe for the host of a server URL. Missing ports
// default to the scheme's port.
func ProbeFor(server string, timeout time.Duration) (*Probe, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("server url %q: no host", server)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return &Probe{Addr: net.JoinHostPort(u.Hostname(), port), Timeout: timeout}, nil
}

// Online implements Connectivity.
func (p *Probe) Online(ctx context.Context) bool {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
