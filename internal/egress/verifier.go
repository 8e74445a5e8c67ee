package egress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/nao1215/exitswitch/internal/model"
)

const (
	// DefaultEndpoint is the IP-echo service queried by default.
	DefaultEndpoint = "https://httpbin.org/ip"

	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of the echo response is read.
	maxBodySize = 64 * 1024
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Verifier looks up egress IP addresses.
type Verifier struct {
	endpoint string
	timeout  time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEndpoint sets the IP-echo URL.
func WithEndpoint(endpoint string) Option {
	return func(v *Verifier) {
		if endpoint != "" {
			v.endpoint = endpoint
		}
	}
}

// WithTimeout sets the per-lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(v *Verifier) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// NewVerifier creates a Verifier with DefaultEndpoint and DefaultTimeout
// unless overridden.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		endpoint: DefaultEndpoint,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Endpoint returns the configured IP-echo URL.
func (v *Verifier) Endpoint() string {
	return v.endpoint
}

// CurrentIP issues one GET to the echo endpoint through client and returns
// the address it reports. The result is never cached. Failures are returned
// as *VerificationError; there is no retry.
func (v *Verifier) CurrentIP(ctx context.Context, tier model.Tier, client Doer) (model.EgressSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return model.EgressSnapshot{}, v.fail(0, fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return model.EgressSnapshot{}, v.fail(0, fmt.Errorf("%w after %s", ErrVerificationTimeout, v.timeout))
		}
		return model.EgressSnapshot{}, v.fail(0, fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.EgressSnapshot{}, v.fail(resp.StatusCode, ErrUnexpectedStatus)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if isTimeout(ctx, err) {
			return model.EgressSnapshot{}, v.fail(resp.StatusCode, fmt.Errorf("%w after %s", ErrVerificationTimeout, v.timeout))
		}
		return model.EgressSnapshot{}, v.fail(resp.StatusCode, fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}

	ip, err := ParseIP(body)
	if err != nil {
		return model.EgressSnapshot{}, v.fail(resp.StatusCode, err)
	}
	return model.NewEgressSnapshot(tier, ip), nil
}

func (v *Verifier) fail(status int, err error) *VerificationError {
	return &VerificationError{Endpoint: v.endpoint, StatusCode: status, Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// echoBody covers the JSON shapes returned by common IP-echo services.
type echoBody struct {
	Origin string `json:"origin"`
	IP     string `json:"ip"`
}

// ParseIP extracts an IP address from an echo response. It accepts
// {"origin": "a, b"} (first entry wins), {"ip": "a"} or a bare address.
func ParseIP(body []byte) (netip.Addr, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty body", ErrUnparsableBody)
	}

	candidate := text
	if strings.HasPrefix(text, "{") {
		var decoded echoBody
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %w", ErrUnparsableBody, err)
		}
		switch {
		case decoded.Origin != "":
			candidate = decoded.Origin
		case decoded.IP != "":
			candidate = decoded.IP
		default:
			return netip.Addr{}, fmt.Errorf("%w: no origin or ip field", ErrUnparsableBody)
		}
	}

	first, _, _ := strings.Cut(candidate, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrUnparsableBody, err)
	}
	return addr.Unmap(), nil
}
