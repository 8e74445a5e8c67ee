package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/exitswitch/internal/dialer"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/rotation"
)

// DefaultMaxBodySize caps how much of a page is read.
const DefaultMaxBodySize = 5 * 1024 * 1024

// userAgent is sent with every request. Some targets block empty agents
// outright, which would be misreported as an identity block.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Rotator rotates a tier's identity. *rotation.Orchestrator satisfies it.
type Rotator interface {
	Rotate(ctx context.Context, tier model.Tier, opts ...rotation.RotateOption) (*rotation.Result, error)
}

// Fetcher downloads pages through proxied clients.
type Fetcher struct {
	clients     dialer.HTTPClientProvider
	rotator     Rotator
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRotator enables rotate-and-retry on blocks.
func WithRotator(r Rotator) Option {
	return func(f *Fetcher) {
		f.rotator = r
	}
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(clients dialer.HTTPClientProvider, opts ...Option) *Fetcher {
	f := &Fetcher{
		clients:     clients,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Request describes one fetch.
type Request struct {
	URL  string
	Tier model.Tier

	// RotateOnBlock rotates the tier's identity once and retries when the
	// first attempt is blocked.
	RotateOnBlock bool
}

// Response is the outcome of a fetch.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Truncated   bool
	Attempts    int

	// Rotation is set when a rotation was attempted after a block.
	Rotation *rotation.Result
	Elapsed  time.Duration
}

// Fetch retrieves req.URL through the tier's proxy. A blocked answer is
// returned together with an error matching ErrUpstreamBlocked.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, req.URL)
	}

	start := time.Now()
	resp, err := f.attempt(ctx, req.Tier, target.String())
	if err != nil {
		return nil, err
	}
	resp.Attempts = 1
	if !IsBlocked(resp.StatusCode) {
		resp.Elapsed = time.Since(start)
		return resp, nil
	}

	blocked := fmt.Errorf("%w: %s answered HTTP %d", ErrUpstreamBlocked, target.Host, resp.StatusCode)
	if !req.RotateOnBlock || f.rotator == nil {
		resp.Elapsed = time.Since(start)
		return resp, blocked
	}

	f.logger.Info("target blocked the current identity, rotating",
		"tier", req.Tier.String(), "host", target.Host, "status", resp.StatusCode)
	result, rotErr := f.rotator.Rotate(ctx, req.Tier)
	if rotErr != nil {
		resp.Rotation = result
		resp.Elapsed = time.Since(start)
		return resp, fmt.Errorf("%w (rotation failed: %w)", blocked, rotErr)
	}

	retry, err := f.attempt(ctx, req.Tier, target.String())
	if err != nil {
		return nil, err
	}
	retry.Attempts = 2
	retry.Rotation = result
	retry.Elapsed = time.Since(start)
	if IsBlocked(retry.StatusCode) {
		return retry, fmt.Errorf("%w: %s answered HTTP %d after rotation", ErrUpstreamBlocked, target.Host, retry.StatusCode)
	}
	return retry, nil
}

func (f *Fetcher) attempt(ctx context.Context, tier model.Tier, target string) (*Response, error) {
	client, err := f.clients.ClientFor(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s client: %w", tier, err)
	}
	defer client.CloseIdleConnections()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, f.maxBodySize+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	return &Response{
		URL:         target,
		FinalURL:    httpResp.Request.URL.String(),
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// IsBlocked reports whether status signals an IP block or throttle.
func IsBlocked(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}
