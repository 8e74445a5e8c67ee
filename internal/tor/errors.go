package tor

import "errors"

// Control-port errors.
// Callers match these with errors.Is to separate misconfiguration
// (authentication) from transient transport faults (signal, unreachable).
var (
	// ErrAuthenticationFailed is returned when the daemon rejects the
	// AUTHENTICATE command. Retrying will not help until the secret or cookie
	// path is fixed.
	ErrAuthenticationFailed = errors.New("tor control port authentication failed")

	// ErrSignalFailed is returned when a SIGNAL or GETINFO command is rejected,
	// times out, or the connection drops mid-exchange.
	ErrSignalFailed = errors.New("tor control port signal failed")

	// ErrControlUnreachable is returned when no TCP connection to the control
	// port can be established.
	ErrControlUnreachable = errors.New("cannot connect to tor control port")

	// ErrMalformedReply is returned alongside ErrSignalFailed when a reply
	// line does not follow the "NNN<sep>text" format.
	ErrMalformedReply = errors.New("malformed tor control reply")

	// ErrInvalidControlAddress is returned when the control address is not
	// in "host:port" format.
	ErrInvalidControlAddress = errors.New("invalid control address format: expected host:port")
)

// SOCKS proxy errors.
var (
	// ErrProxyNotSOCKS5 is returned when the configured address answers but
	// does not speak unauthenticated SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not an unauthenticated SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor SOCKS proxy")

	// ErrProxyTimeout is returned when the proxy handshake times out.
	ErrProxyTimeout = errors.New("timeout connecting to Tor SOCKS proxy")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// ProxyStatus is the result of probing the Tor SOCKS port.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy completed a SOCKS5 exchange.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates something answered that is not Tor's SOCKS port.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates the TCP connection failed.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the handshake did not finish in time.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the matching sentinel error, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
