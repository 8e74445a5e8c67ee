package dialer

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/nao1215/exitswitch/internal/model"
)

// TransportSource is what Ambient needs from a Factory.
type TransportSource interface {
	TransportFor(ctx context.Context, tier model.Tier) (*http.Transport, error)
	ProxyURL(ctx context.Context, tier model.Tier) (*url.URL, error)
}

// Ambient is the process-wide proxy configuration. It is configured once at
// startup; request handlers never change it.
type Ambient struct {
	mu         sync.Mutex
	source     TransportSource
	tier       model.Tier
	configured bool
	installed  bool

	// The transport is reused while the proxy URL (which embeds the paid
	// session token) is unchanged.
	cachedKey       string
	cachedTransport *http.Transport
}

// DefaultAmbient is the process-wide instance.
var DefaultAmbient = &Ambient{}

// Configure sets the source and tier. A second call returns
// ErrAmbientConfigured.
func (a *Ambient) Configure(source TransportSource, tier model.Tier) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.configured {
		return ErrAmbientConfigured
	}
	a.source = source
	a.tier = tier
	a.configured = true
	return nil
}

// Tier returns the configured tier.
func (a *Ambient) Tier() (model.Tier, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.configured {
		return 0, ErrAmbientNotConfigured
	}
	return a.tier, nil
}

// RoundTripper returns a transport that resolves the proxy on every request,
// so a rotated session token takes effect on the next request.
func (a *Ambient) RoundTripper() http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		transport, err := a.transport(req.Context())
		if err != nil {
			return nil, err
		}
		return transport.RoundTrip(req)
	})
}

// Client returns a client using RoundTripper.
func (a *Ambient) Client() *http.Client {
	return &http.Client{Transport: a.RoundTripper()}
}

// InstallDefault replaces http.DefaultTransport with RoundTripper so code
// that uses http.DefaultClient cannot bypass the proxy. It must be called
// once, at startup, after Configure.
func (a *Ambient) InstallDefault() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.configured {
		return ErrAmbientNotConfigured
	}
	if a.installed {
		return ErrDefaultInstalled
	}
	http.DefaultTransport = a.RoundTripper()
	a.installed = true
	return nil
}

func (a *Ambient) transport(ctx context.Context) (*http.Transport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.configured {
		return nil, ErrAmbientNotConfigured
	}
	proxyURL, err := a.source.ProxyURL(ctx, a.tier)
	if err != nil {
		return nil, err
	}
	key := proxyURL.String()
	if a.cachedTransport != nil && a.cachedKey == key {
		return a.cachedTransport, nil
	}

	transport, err := a.source.TransportFor(ctx, a.tier)
	if err != nil {
		return nil, err
	}
	if a.cachedTransport != nil {
		a.cachedTransport.CloseIdleConnections()
	}
	a.cachedKey = key
	a.cachedTransport = transport
	return transport, nil
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
