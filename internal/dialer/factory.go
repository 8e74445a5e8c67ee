package dialer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/session"
)

// DefaultClientTimeout is the overall timeout of clients built by Factory.
const DefaultClientTimeout = 30 * time.Second

// HTTPClientProvider is implemented by anything that can hand out a client
// for a tier. Collaborators accept this instead of a concrete Factory.
type HTTPClientProvider interface {
	ClientFor(ctx context.Context, tier model.Tier) (*http.Client, error)
}

// TokenSource returns the session token paid usernames are built from.
// *session.Rotator satisfies it.
type TokenSource interface {
	Current(ctx context.Context) string
}

// Factory builds per-tier clients from proxy descriptors.
type Factory struct {
	descriptors map[model.Tier]model.ProxyDescriptor
	credentials session.Credentials
	tokens      TokenSource
	timeout     time.Duration
}

// Option configures a Factory.
type Option func(*Factory)

// WithDescriptor registers the proxy for d.Tier.
func WithDescriptor(d model.ProxyDescriptor) Option {
	return func(f *Factory) {
		f.descriptors[d.Tier] = d
	}
}

// WithCredentials sets the paid provider account.
func WithCredentials(creds session.Credentials) Option {
	return func(f *Factory) {
		f.credentials = creds
	}
}

// WithTokenSource sets where paid session tokens come from.
func WithTokenSource(tokens TokenSource) Option {
	return func(f *Factory) {
		f.tokens = tokens
	}
}

// WithClientTimeout sets the overall timeout of built clients.
func WithClientTimeout(timeout time.Duration) Option {
	return func(f *Factory) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// NewFactory creates a Factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		descriptors: make(map[model.Tier]model.ProxyDescriptor),
		timeout:     DefaultClientTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Descriptor returns the descriptor registered for tier.
func (f *Factory) Descriptor(tier model.Tier) (model.ProxyDescriptor, bool) {
	d, ok := f.descriptors[tier]
	return d, ok
}

// ClientFor builds a new client that sends every request through tier's
// proxy. The paid username embeds the token current at this moment.
func (f *Factory) ClientFor(ctx context.Context, tier model.Tier) (*http.Client, error) {
	transport, err := f.TransportFor(ctx, tier)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: f.timeout}, nil
}

// DirectClient returns a client that bypasses every proxy. It is used to
// learn the host's own address for comparison.
func (f *Factory) DirectClient() *http.Client {
	transport := baseTransport()
	transport.Proxy = nil
	return &http.Client{Transport: transport, Timeout: f.timeout}
}

// TransportFor builds a new transport for tier.
func (f *Factory) TransportFor(ctx context.Context, tier model.Tier) (*http.Transport, error) {
	d, ok := f.descriptors[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTierNotConfigured, tier)
	}
	user, err := f.userinfo(ctx, d)
	if err != nil {
		return nil, err
	}

	transport := baseTransport()
	switch d.Protocol {
	case model.ProtocolSOCKS5:
		var auth *proxy.Auth
		if user != nil {
			password, _ := user.Password()
			auth = &proxy.Auth{User: user.Username(), Password: password}
		}
		// Hostnames are passed to the proxy unresolved, so Tor resolves
		// names at the exit and no DNS query leaks locally.
		socks, err := proxy.SOCKS5("tcp", d.Address(), auth, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: SOCKS5 dialer does not support contexts", ErrUnsupportedProtocol)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
	case model.ProtocolHTTP:
		transport.Proxy = http.ProxyURL(&url.URL{
			Scheme: string(model.ProtocolHTTP),
			User:   user,
			Host:   d.Address(),
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, d.Protocol)
	}
	return transport, nil
}

// ProxyURL returns the proxy of tier in URL form, credentials included, for
// collaborators that configure their own proxy (headless browsers, CLIs).
func (f *Factory) ProxyURL(ctx context.Context, tier model.Tier) (*url.URL, error) {
	d, ok := f.descriptors[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTierNotConfigured, tier)
	}
	if !d.Protocol.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, d.Protocol)
	}
	user, err := f.userinfo(ctx, d)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: string(d.Protocol), User: user, Host: d.Address()}, nil
}

// SessionToken returns the token a paid client would carry right now, or ""
// for tiers without sessions.
func (f *Factory) SessionToken(ctx context.Context, tier model.Tier) string {
	if tier.IsFree() || f.tokens == nil {
		return ""
	}
	return f.tokens.Current(ctx)
}

// userinfo returns the proxy credentials of d. The free tier has none.
func (f *Factory) userinfo(ctx context.Context, d model.ProxyDescriptor) (*url.Userinfo, error) {
	if d.Tier.IsFree() {
		return nil, nil
	}
	if !session.IsKnownProvider(d.Provider) {
		return nil, fmt.Errorf("%w: %s", session.ErrUnknownProvider, d.Provider)
	}
	if err := f.credentials.Validate(d.Provider); err != nil {
		return nil, err
	}
	username, err := session.Username(d.Provider, f.credentials, f.SessionToken(ctx, d.Tier))
	if err != nil {
		return nil, err
	}
	return url.UserPassword(username, f.credentials.Password), nil
}

// baseTransport mirrors http.DefaultTransport's tuning. A fresh value is
// built each time because http.DefaultTransport may be replaced by Ambient.
func baseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
