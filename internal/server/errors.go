package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/fetch"
	"github.com/nao1215/exitswitch/internal/rotation"
	"github.com/nao1215/exitswitch/internal/tor"
)

// Error kinds reported in the "kind" field of error bodies.
const (
	KindCooldownActive       = "cooldown_active"
	KindAuthenticationFailed = "authentication_failed"
	KindRotationIO           = "rotation_io"
	KindControlUnreachable   = "control_unreachable"
	KindTimeout              = "timeout"
	KindTierNotConfigured    = "tier_not_configured"
	KindUpstreamBlocked      = "upstream_blocked"
	KindProxyFailed          = "proxy_failed"
	KindInvalidRequest       = "invalid_request"
	KindUnauthorized         = "unauthorized"
	KindInternal             = "internal"
)

// ErrInvalidParameter is returned for a malformed query parameter.
var ErrInvalidParameter = errors.New("invalid query parameter")

// classifyError maps an error onto an HTTP status and a kind.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, cooldown.ErrCooldownActive):
		return http.StatusTooManyRequests, KindCooldownActive
	case errors.Is(err, fetch.ErrUpstreamBlocked):
		return http.StatusTooManyRequests, KindUpstreamBlocked
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, fetch.ErrInvalidURL):
		return http.StatusBadRequest, KindInvalidRequest
	case errors.Is(err, rotation.ErrTierNotConfigured):
		return http.StatusBadRequest, KindTierNotConfigured
	case errors.Is(err, rotation.ErrAuthenticationFailed):
		return http.StatusInternalServerError, KindAuthenticationFailed
	case isTimeout(err):
		return http.StatusGatewayTimeout, KindTimeout
	case errors.Is(err, tor.ErrControlUnreachable):
		return http.StatusServiceUnavailable, KindControlUnreachable
	case errors.Is(err, rotation.ErrRotationIO):
		return http.StatusBadGateway, KindRotationIO
	case errors.Is(err, context.Canceled):
		// The client went away; the status is only logged.
		return http.StatusServiceUnavailable, KindInternal
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, tor.ErrProxyTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
